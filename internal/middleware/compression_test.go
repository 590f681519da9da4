package middleware

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ZanzyTHEbar/devmine/internal/errors"
)

func newRouter(cm *CompressionMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/large", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(`{"data":"`+strings.Repeat("a", 4096)+`"}`))
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/binary", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/octet-stream", make([]byte, 4096))
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r http.Handler, path string, gzipOK bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if gzipOK {
		req.Header.Set("Accept-Encoding", "gzip, deflate")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCompressionLargeJSON(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	w := get(newRouter(cm), "/large", true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), `{"data":"aaa`))
	assert.Len(t, body, 4096+11)

	stats := cm.GetStats()
	assert.Equal(t, int64(1), stats["compressed_requests"])
	assert.Less(t, stats["compression_ratio"].(float64), 1.0)
}

func TestCompressionSkipped(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		gzipOK bool
		status int
	}{
		{name: "client without gzip", path: "/large", gzipOK: false, status: http.StatusOK},
		{name: "below min size", path: "/small", gzipOK: true, status: http.StatusOK},
		{name: "binary content", path: "/binary", gzipOK: true, status: http.StatusOK},
		{name: "empty body", path: "/empty", gzipOK: true, status: http.StatusNoContent},
	}

	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := newRouter(cm)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.path, tt.gzipOK)
			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, w.Header().Get("Content-Encoding"))
		})
	}

	assert.Equal(t, int64(0), cm.GetStats()["compressed_requests"])
}

func TestCompressionPreservesStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/missing", func(c *gin.Context) {
		c.Data(http.StatusNotFound, "text/plain", []byte(strings.Repeat("x", 2048)))
	})

	w := get(r, "/missing", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestCompressionLeavesDeferredErrorsToOuterHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.Use(cm.Handler())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := get(r, "/fail", true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"category"`)
}
