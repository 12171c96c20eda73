package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/backend/pkg/validation"
)

type fakeBucket struct {
	objects map[string][]byte
	deleted []string
}

func (f *fakeBucket) GeneratePresignedUploadURL(ctx context.Context, key, contentType string) (string, error) {
	return "https://bucket.example/" + key + "?X-Amz-Signature=abc", nil
}

func (f *fakeBucket) PresignExpire() time.Duration { return 15 * time.Minute }

func (f *fakeBucket) PublicObjectURL(key string) string { return "https://cdn.example/" + key }

func (f *fakeBucket) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.objects[key] = b
	return f.PublicObjectURL(key), nil
}

func (f *fakeBucket) DeleteObject(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func router(store Storage) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validation.RegisterGin()
	h := NewHandler(store, nil)
	h.now = func() time.Time { return time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC) }
	r := gin.New()
	r.POST("/api/admin/uploads/presign", h.Presign)
	r.POST("/api/admin/uploads", h.Upload)
	r.DELETE("/api/admin/uploads", h.Delete)
	return r
}

func jsonCall(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPresignWithoutStorage(t *testing.T) {
	r := router(nil)
	w := jsonCall(r, http.MethodPost, "/api/admin/uploads/presign", `{"filename":"a.png","folder":"events"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPresign(t *testing.T) {
	r := router(&fakeBucket{objects: map[string][]byte{}})

	w := jsonCall(r, http.MethodPost, "/api/admin/uploads/presign", `{"filename":"Poster.PNG","content_type":"image/png","folder":"events"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			UploadURL string `json:"upload_url"`
			Key       string `json:"key"`
			PublicURL string `json:"public_url"`
			ExpiresIn int    `json:"expires_in"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.Data.Key, "events/2026/04/"), body.Data.Key)
	assert.Equal(t, "https://cdn.example/"+body.Data.Key, body.Data.PublicURL)
	assert.Equal(t, 900, body.Data.ExpiresIn)

	assert.Equal(t, http.StatusBadRequest, jsonCall(r, http.MethodPost, "/api/admin/uploads/presign", `{"filename":"x.svg","folder":"events"}`).Code)
	assert.Equal(t, http.StatusBadRequest, jsonCall(r, http.MethodPost, "/api/admin/uploads/presign", `{"filename":"x.png","folder":"secrets"}`).Code)
	assert.Equal(t, http.StatusBadRequest, jsonCall(r, http.MethodPost, "/api/admin/uploads/presign", `{"filename":"x.png","folder":"news","file_size":9999999}`).Code)
}

func TestMultipartUpload(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}}
	r := router(bucket)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("folder", "news"))
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="cover.jpg"`)
	hdr.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, bucket.objects, 1)
	for key, b := range bucket.objects {
		assert.True(t, strings.HasPrefix(key, "news/"))
		assert.Equal(t, "jpeg-bytes", string(b))
	}
}

func TestDeleteChecksKey(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}}
	r := router(bucket)
	assert.Equal(t, http.StatusNoContent, jsonCall(r, http.MethodDelete, "/api/admin/uploads", `{"key":"events/2026/04/a.png"}`).Code)
	assert.Equal(t, http.StatusBadRequest, jsonCall(r, http.MethodDelete, "/api/admin/uploads", `{"key":"backups/db.sql"}`).Code)
	assert.Equal(t, http.StatusBadRequest, jsonCall(r, http.MethodDelete, "/api/admin/uploads", `{"key":"events/../backups/db.sql"}`).Code)
	assert.Equal(t, []string{"events/2026/04/a.png"}, bucket.deleted)
}
