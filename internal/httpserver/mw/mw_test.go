package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"board.example.com", "board.example.com", true},
		{"Board.Example.com", "board.example.com", true},
		{"api.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"evil.com", "*.example.com", false},
		{"other.example.org", "board.example.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchHost(tt.host, tt.pattern), tt.host+" vs "+tt.pattern)
	}
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"*.example.com"}, logger.Nop())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Host = "ops.example.com:3001"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.Host = "attacker.test"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Forbidden"}`, rec.Body.String())
}

func TestAllowOnlyCIDRS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		trustProxy bool
		remote     string
		xff        string
		want       int
	}{
		{name: "empty list passes", remote: "203.0.113.9:1", want: http.StatusOK},
		{name: "cidr match", allowed: []string{"10.0.0.0/8"}, remote: "10.1.2.3:5555", want: http.StatusOK},
		{name: "exact ip", allowed: []string{"127.0.0.1"}, remote: "127.0.0.1:1", want: http.StatusOK},
		{name: "rejected", allowed: []string{"10.0.0.0/8"}, remote: "203.0.113.9:1", want: http.StatusForbidden},
		{name: "xff ignored without proxy trust", allowed: []string{"10.0.0.0/8"}, remote: "203.0.113.9:1", xff: "10.0.0.1", want: http.StatusForbidden},
		{name: "xff honored with proxy trust", allowed: []string{"10.0.0.0/8"}, trustProxy: true, remote: "127.0.0.1:1", xff: "10.0.0.1, 127.0.0.1", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRS(tt.allowed, tt.trustProxy, logger.Nop())(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimitPerIP(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 1})(okHandler)

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/ideas", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1:1").Code)
	assert.Equal(t, http.StatusOK, send("198.51.100.1:2").Code)
	rec := send("198.51.100.1:3")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("198.51.100.2:1").Code, "other clients have their own bucket")
}

func TestLimiterRefills(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 60})
	now := time.Now()

	ok, _, _ := l.allow("a", now)
	assert.True(t, ok)
	ok, _, retry := l.allow("a", now)
	assert.False(t, ok)
	assert.Equal(t, 1, retry)
	ok, _, _ = l.allow("a", now.Add(time.Second))
	assert.True(t, ok)
}

func TestLimiterDropsIdleBuckets(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 1, IdleTTL: time.Minute, MaxEntries: 2})
	now := time.Now()

	l.allow("a", now)
	l.allow("b", now)
	l.allow("c", now.Add(2*time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "c")
}

func TestRateLimitReportsRemaining(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := RateLimit(RateLimitConfig{Burst: 3, RefillPerIPPerMin: 1, Now: func() time.Time { return clock }})(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/render/add", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
}

type httpSample struct {
	method, route, status string
}

type sampleRecorder struct{ got []httpSample }

func (s *sampleRecorder) RecordHTTPRequest(method, route, status string, _ time.Duration) {
	s.got = append(s.got, httpSample{method, route, status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	rec := &sampleRecorder{}
	r := chi.NewRouter()
	r.Use(Metrics(rec))
	r.Get("/api/ideas/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/api/ideas/1", "/api/ideas/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []httpSample{
		{http.MethodGet, "/api/ideas/{id}", "418"},
		{http.MethodGet, "/api/ideas/{id}", "418"},
		{http.MethodGet, "unmatched", "404"},
	}, rec.got)
}

func TestCORSHeadersOnEveryResponse(t *testing.T) {
	h := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ideas", nil)
	req.Header.Set("Origin", "https://board.example.com")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/whatever", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORSFixedHeadersWithoutOriginAndOnPreflight(t *testing.T) {
	h := CORS()(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ideas", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), "no Origin header")
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	req := httptest.NewRequest(http.MethodOptions, "/api/ideas", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"), "not just the requested method")
	assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
}
