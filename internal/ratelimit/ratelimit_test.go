package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowBurstThenReject(t *testing.T) {
	l := New(6, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d within burst was rejected", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("expected request after burst to be rejected")
	}
	if !l.Allow("5.6.7.8") {
		t.Error("expected a different client to have its own bucket")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New(60, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	if !l.Allow("c") {
		t.Fatal("first request rejected")
	}
	if l.Allow("c") {
		t.Fatal("second immediate request allowed")
	}
	now = now.Add(1100 * time.Millisecond)
	if !l.Allow("c") {
		t.Error("expected a token after one second at 60/min")
	}
}

func TestCleanupStaleVisitors(t *testing.T) {
	l := New(6, 3)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(2 * time.Minute)
	l.Allow("recent")
	now = now.Add(90 * time.Second)

	l.cleanupStaleVisitors()
	if l.Len() != 1 {
		t.Fatalf("expected 1 visitor left, got %d", l.Len())
	}
	if _, ok := l.visitors["recent"]; !ok {
		t.Error("expected recent visitor to be kept")
	}
}

func TestMiddleware(t *testing.T) {
	l := New(6, 1)
	var served int
	h := l.Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { served++ }),
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
	)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: expected %d, got %d", i+1, want, rec.Code)
		}
	}
	if served != 1 {
		t.Errorf("expected 1 request served, got %d", served)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Errorf("expected 192.0.2.1, got %q", got)
	}

	// API Gateway source IP set by the Lambda adapter, no port.
	req.RemoteAddr = "198.51.100.7"
	if got := ClientIP(req); got != "198.51.100.7" {
		t.Errorf("expected 198.51.100.7, got %q", got)
	}
}

func TestMiddlewareIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	l := New(6, 1)
	var served int
	h := l.Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { served++ }),
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
	)

	rejected := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = "192.0.2.50:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected++
		}
	}
	if served != 1 || rejected != 9 {
		t.Errorf("expected 1 served and 9 rejected, got %d served, %d rejected", served, rejected)
	}
	if l.Len() != 1 {
		t.Errorf("expected one tracked client, got %d", l.Len())
	}
}

func TestClientKeyTrustedProxy(t *testing.T) {
	l := New(6, 1)
	if err := l.TrustProxies([]string{"10.0.0.0/8", "192.0.2.1"}); err != nil {
		t.Fatalf("TrustProxies() error = %v", err)
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"untrusted peer", "198.51.100.1:1", "203.0.113.9", "198.51.100.1"},
		{"trusted peer, single hop", "192.0.2.1:1", "203.0.113.9", "203.0.113.9"},
		{"forged left entry", "10.1.1.1:1", "1.2.3.4, 203.0.113.9", "203.0.113.9"},
		{"trusted chain", "10.1.1.1:1", "203.0.113.9, 10.2.2.2", "203.0.113.9"},
		{"no header", "10.1.1.1:1", "", "10.1.1.1"},
		{"only trusted hops", "10.1.1.1:1", "10.3.3.3", "10.1.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := l.ClientKey(req); got != tt.want {
				t.Errorf("ClientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrustProxiesInvalid(t *testing.T) {
	if err := New(6, 1).TrustProxies([]string{"not-an-ip"}); err == nil {
		t.Error("expected error for invalid proxy address")
	}
}
