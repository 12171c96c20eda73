package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/backend/internal/models"
)

const testSecret = "testsecret"

type testClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func signTestToken(role string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, testClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, _ := tok.SignedString([]byte(testSecret))
	return s
}

func testAuthenticator(ctx context.Context, token string) (*Identity, error) {
	var claims testClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		return nil, errors.New("invalid token")
	}
	return &Identity{AdminID: uuid.MustParse(claims.Subject), Email: "admin@example.com", Role: claims.Role}, nil
}

func buildTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	admin := r.Group("/api/admin", JWT(testAuthenticator))
	admin.GET("/settings", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentIdentity(c).Email)
	})
	admin.GET("/news", RequireRole(models.RoleAdmin, models.RoleEditor), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminRBAC(t *testing.T) {
	r := buildTestRouter()

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/admin/settings", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/admin/settings", "garbage").Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/api/admin/settings", signTestToken("editor")).Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/admin/news", signTestToken("editor")).Code)

	w := get(r, "/api/admin/settings", signTestToken("admin"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin@example.com", w.Body.String())
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	r := buildTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/news", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/contacts", RateLimit(NewIPRateLimiter(1, 2)), func(c *gin.Context) { c.Status(http.StatusCreated) })

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/contacts", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusCreated, post("10.0.0.1"))
	assert.Equal(t, http.StatusCreated, post("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1"))
	assert.Equal(t, http.StatusCreated, post("10.0.0.2"), "budgets are per IP")
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lim := NewIPRateLimiter(1, 1)
	r := gin.New()
	require.NoError(t, TrustProxies(r, nil))
	r.POST("/contacts", RateLimit(lim), func(c *gin.Context) { c.Status(http.StatusCreated) })

	passed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/contacts", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code == http.StatusCreated {
			passed++
		}
	}
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, lim.Visitors())
}

func TestTrustedProxyForwardsClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	require.NoError(t, TrustProxies(r, []string{"10.0.0.0/8"}))
	r.GET("/ip", func(c *gin.Context) { c.String(http.StatusOK, c.ClientIP()) })

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "203.0.113.9", w.Body.String())

	req.RemoteAddr = "198.51.100.7:5000"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "198.51.100.7", w.Body.String())
}

func TestRateLimiterIsBounded(t *testing.T) {
	lim := newIPRateLimiter(1, 1, 8)
	for i := 0; i < 100; i++ {
		lim.Allow(fmt.Sprintf("203.0.113.%d", i))
	}
	assert.Equal(t, 8, lim.Visitors())
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("https://site.example, https://admin.example/"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://admin.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
