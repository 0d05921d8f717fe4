package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/timmy/clearcut/internal/config"
	"github.com/timmy/clearcut/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCORS(t *testing.T) {
	testCases := []struct {
		name       string
		cfg        config.CORSConfig
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{name: "allow all", cfg: config.CORSConfig{AllowAllOrigins: true}, method: http.MethodGet, origin: "https://a.example.com", wantOrigin: "*", wantStatus: http.StatusOK},
		{name: "listed origin", cfg: config.CORSConfig{AllowedOrigins: []string{"https://a.example.com"}}, method: http.MethodGet, origin: "https://A.example.com", wantOrigin: "https://A.example.com", wantStatus: http.StatusOK},
		{name: "unlisted origin", cfg: config.CORSConfig{AllowedOrigins: []string{"https://a.example.com"}}, method: http.MethodGet, origin: "https://evil.example.com", wantOrigin: "", wantStatus: http.StatusOK},
		{name: "preflight", cfg: config.CORSConfig{AllowAllOrigins: true}, method: http.MethodOptions, origin: "https://a.example.com", wantOrigin: "*", wantStatus: http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tc.cfg))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tc.method, "/x", nil)
			req.Header.Set("Origin", tc.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tc.wantOrigin)
			}
		})
	}
}

func TestLoggerMiddlewareRequestID(t *testing.T) {
	r := gin.New()
	r.Use(LoggerMiddleware())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = logger.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seen != "req-42" || w.Header().Get(RequestIDHeader) != "req-42" {
		t.Errorf("request id = %q, header = %q", seen, w.Header().Get(RequestIDHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("generated request id missing")
	}
}
