package videos

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/communityhub/backend/internal/models"
)

var (
	ErrInvalidToken     = errors.New("invalid video token")
	ErrTokenExpired     = errors.New("video token expired")
	ErrViewLimitReached = errors.New("video token view limit reached")
	ErrIPMismatch       = errors.New("video token bound to another address")
)

// Claims are carried by a video access token. The registered ID (jti) is the
// token row id and the subject is the video id.
type Claims struct {
	CourseID    uuid.UUID `json:"course_id"`
	ViewerEmail string    `json:"viewer_email"`
	ViewerID    string    `json:"viewer_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 video tokens.
type TokenIssuer struct {
	secret   []byte
	ttl      time.Duration
	maxViews int
	bindIP   bool
}

// NewTokenIssuer creates an issuer. ttlMinutes and maxViews fall back to 120 and 3.
func NewTokenIssuer(secret string, ttlMinutes, maxViews int, bindIP bool) *TokenIssuer {
	if ttlMinutes <= 0 {
		ttlMinutes = 120
	}
	if maxViews <= 0 {
		maxViews = 3
	}
	return &TokenIssuer{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, maxViews: maxViews, bindIP: bindIP}
}

// MaxViews is the view budget of each new token.
func (i *TokenIssuer) MaxViews() int { return i.maxViews }

// NewRecord builds the server-side row for a token minted now.
func (i *TokenIssuer) NewRecord(video *models.CourseVideo, email, viewerID, ip string, now time.Time) *models.VideoAccessToken {
	rec := &models.VideoAccessToken{
		ID:          uuid.New(),
		VideoID:     video.ID,
		CourseID:    video.CourseID,
		ViewerEmail: email,
		ViewerID:    viewerID,
		MaxViews:    i.maxViews,
		ExpiresAt:   now.Add(i.ttl),
		CreatedAt:   now,
	}
	if i.bindIP {
		rec.IPAddress = ip
	}
	return rec
}

// Sign returns the JWT for a token record.
func (i *TokenIssuer) Sign(rec *models.VideoAccessToken) (string, error) {
	claims := &Claims{
		CourseID:    rec.CourseID,
		ViewerEmail: rec.ViewerEmail,
		ViewerID:    rec.ViewerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        rec.ID.String(),
			Subject:   rec.VideoID.String(),
			IssuedAt:  jwt.NewNumericDate(rec.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies the signature and expiry at now and returns the token row id and video id.
func (i *TokenIssuer) Parse(token string, now time.Time) (tokenID, videoID uuid.UUID, err error) {
	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	tokenID, err = uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	videoID, err = uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	return tokenID, videoID, nil
}

// CheckRecord applies the server-side limits of a token row: expiry, view budget and,
// when an address was captured, the caller address.
func CheckRecord(rec *models.VideoAccessToken, ip string, now time.Time) error {
	if !now.Before(rec.ExpiresAt) {
		return ErrTokenExpired
	}
	if rec.CurrentViews >= rec.MaxViews {
		return ErrViewLimitReached
	}
	if rec.IPAddress != "" && rec.IPAddress != ip {
		return ErrIPMismatch
	}
	return nil
}
