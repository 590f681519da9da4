// Package middleware holds HTTP middleware that is not tied to a single
// feature package.
package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // smallest body worth compressing, in bytes
	CompressionLevel int      // gzip level, 1 (fastest) to 9 (smallest)
	ContentTypes     []string // compressible content type prefixes
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
		},
	}
}

// CompressionMiddleware gzips response bodies for clients that accept it
type CompressionMiddleware struct {
	config CompressionConfig
	pool   sync.Pool

	total      int64
	compressed int64
	bytesIn    int64
	bytesOut   int64
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	return &CompressionMiddleware{
		config: config,
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
	}
}

// Handler buffers the response and compresses it once the handler chain
// has finished
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		original := c.Writer
		bw := &bufferedWriter{ResponseWriter: original}
		c.Writer = bw
		defer func() { c.Writer = original }()

		c.Next()

		atomic.AddInt64(&cm.total, 1)
		body := bw.buf.Bytes()

		// Empty bodies leave the status pending for outer middleware.
		if len(body) == 0 {
			return
		}

		if len(body) < cm.config.MinSize || !cm.shouldCompress(original.Header().Get("Content-Type")) {
			if _, err := original.Write(body); err != nil {
				slog.Debug("Failed to write response", "error", err)
			}
			return
		}

		var out bytes.Buffer
		gz := cm.pool.Get().(*gzip.Writer)
		gz.Reset(&out)
		_, err := gz.Write(body)
		if err == nil {
			err = gz.Close()
		}
		cm.pool.Put(gz)

		if err != nil {
			slog.Warn("Gzip failed, sending uncompressed response", "error", err)
			_, _ = original.Write(body)
			return
		}

		h := original.Header()
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		h.Set("Content-Length", strconv.Itoa(out.Len()))

		atomic.AddInt64(&cm.compressed, 1)
		atomic.AddInt64(&cm.bytesIn, int64(len(body)))
		atomic.AddInt64(&cm.bytesOut, int64(out.Len()))

		if _, err := original.Write(out.Bytes()); err != nil {
			slog.Debug("Failed to write response", "error", err)
		}
	}
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	in := atomic.LoadInt64(&cm.bytesIn)
	out := atomic.LoadInt64(&cm.bytesOut)

	ratio := 0.0
	if in > 0 {
		ratio = float64(out) / float64(in)
	}

	return map[string]interface{}{
		"total_requests":      atomic.LoadInt64(&cm.total),
		"compressed_requests": atomic.LoadInt64(&cm.compressed),
		"bytes_in":            in,
		"bytes_out":           out,
		"compression_ratio":   ratio,
	}
}

// bufferedWriter holds the body until the handler chain returns. Status
// and headers still go to the wrapped writer, which sends them lazily.
type bufferedWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	return w.buf.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Written() bool {
	return w.buf.Len() > 0 || w.ResponseWriter.Written()
}

func (w *bufferedWriter) Size() int {
	return w.buf.Len()
}
