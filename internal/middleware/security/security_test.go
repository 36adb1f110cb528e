package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"direct", "203.0.113.9:5555", nil, "203.0.113.9"},
		{"untrusted proxy ignored", "203.0.113.9:5555", map[string]string{"X-Forwarded-For": "1.1.1.1"}, "203.0.113.9"},
		{"trusted proxy xff", "10.0.0.2:80", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2"}, "198.51.100.7"},
		{"trusted proxy real ip", "127.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.8"}, "198.51.100.8"},
		{"trusted proxy bad header", "192.168.1.1:80", map[string]string{"X-Forwarded-For": "nope"}, "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
	if d.GetMetrics().InvalidIPAttempts != 1 {
		t.Errorf("InvalidIPAttempts = %d, want 1", d.GetMetrics().InvalidIPAttempts)
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector()
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/.env", http.StatusOK},
		{"TRACE", "/", http.StatusMethodNotAllowed},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(c.method, c.target, nil))
		if rr.Code != c.want {
			t.Errorf("%s %s = %d, want %d", c.method, c.target, rr.Code, c.want)
		}
	}
	if got := d.GetMetrics().SuspiciousRequests; got != 2 {
		t.Errorf("SuspiciousRequests = %d, want 2", got)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	cfg := DefaultHeadersConfig()
	cfg.ReferrerPolicy = ""
	h := NewHeadersMiddleware(cfg).Middleware(NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", rr.Header().Get("X-Frame-Options"))
	}
	if _, ok := rr.Header()["Referrer-Policy"]; ok {
		t.Error("empty header value should not be sent")
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS sent over plain http")
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", rr.Header().Get("Strict-Transport-Security"))
	}
}
