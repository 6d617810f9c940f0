package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securedRouter(opt SecurityOptions, pre gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := securedRouter(SecurityOptions{}, RequestID())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %v", h)
	}
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" || h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("optional headers must be off: %v", h)
	}
	if h.Get("Access-Control-Expose-Headers") != "X-Request-ID" {
		t.Fatalf("expose header = %q", h.Get("Access-Control-Expose-Headers"))
	}
}

func TestSecurityHeaders_ExposeAppendsOnce(t *testing.T) {
	pre := func(c *gin.Context) {
		c.Header("X-Request-ID", "rid")
		c.Header("Access-Control-Expose-Headers", "ETag")
		c.Next()
	}
	w := httptest.NewRecorder()
	securedRouter(SecurityOptions{}, pre).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "ETag, X-Request-ID" {
		t.Fatalf("expose = %q", got)
	}

	pre2 := func(c *gin.Context) {
		c.Header("X-Request-ID", "rid")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, ETag")
		c.Next()
	}
	w = httptest.NewRecorder()
	securedRouter(SecurityOptions{}, pre2).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID, ETag" {
		t.Fatalf("expose duplicated: %q", got)
	}
}

func TestSecurityHeaders_OptionalHeaders(t *testing.T) {
	r := securedRouter(SecurityOptions{NoStore: true, EnablePolicy: true}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	h := w.Header()
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("no-store headers missing: %v", h)
	}
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %v", h)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	r := securedRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains; preload" {
		t.Fatalf("HSTS via proxy = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.TLS = &tls.ConnectionState{}
	w = httptest.NewRecorder()
	securedRouter(SecurityOptions{EnableHSTS: true}, nil).ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("HSTS default max-age = %q", got)
	}
}
