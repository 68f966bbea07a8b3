package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckLogin_Lockout(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		MaxAttempts:  3,
		Lockout:      15 * time.Minute,
		MaxIPPerHour: 100,
		Clock:        clock,
	})
	defer limiter.Close()

	ip := "203.0.113.10"
	for i := 1; i <= 2; i++ {
		if result := limiter.CheckLogin("admin", ip); !result.Allowed {
			t.Fatalf("attempt %d should be allowed, got blocked: %s", i, result.Reason)
		}
		if limiter.RecordLoginFailure("admin", ip) {
			t.Fatalf("attempt %d should not trigger lockout", i)
		}
	}

	if !limiter.RecordLoginFailure("admin", ip) {
		t.Fatal("third failure should trigger lockout")
	}

	clock.Advance(5 * time.Minute)
	result := limiter.CheckLogin("admin", ip)
	if result.Allowed {
		t.Fatal("login during lockout should be blocked")
	}
	if result.Reason != "lockout" {
		t.Errorf("Expected reason 'lockout', got '%s'", result.Reason)
	}
	if result.RetryAfter != 10*time.Minute {
		t.Errorf("Expected RetryAfter 10m, got %v", result.RetryAfter)
	}

	clock.Advance(11 * time.Minute)
	if result := limiter.CheckLogin("admin", ip); !result.Allowed {
		t.Errorf("login after lockout should be allowed, got blocked: %s", result.Reason)
	}

	// a failure after an expired lockout starts a new window
	if limiter.RecordLoginFailure("admin", ip) {
		t.Error("first failure of a new window should not lock out")
	}
	if result := limiter.CheckLogin("admin", ip); !result.Allowed {
		t.Errorf("expected fresh window, got blocked: %s", result.Reason)
	}
}

func TestCheckLogin_ResetOnSuccess(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{MaxAttempts: 3, Lockout: time.Minute, MaxIPPerHour: 100, Clock: clock})
	defer limiter.Close()

	limiter.RecordLoginFailure("admin", "203.0.113.10")
	limiter.RecordLoginFailure("admin", "203.0.113.10")
	limiter.ResetLogin("admin")

	limiter.RecordLoginFailure("admin", "203.0.113.10")
	limiter.RecordLoginFailure("admin", "203.0.113.10")
	if result := limiter.CheckLogin("admin", "203.0.113.10"); !result.Allowed {
		t.Errorf("reset should clear previous failures, got blocked: %s", result.Reason)
	}
}

func TestCheckLogin_IdentifierNormalization(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{MaxAttempts: 2, Lockout: time.Minute, MaxIPPerHour: 100, Clock: clock})
	defer limiter.Close()

	limiter.RecordLoginFailure("Admin", "203.0.113.1")
	limiter.RecordLoginFailure("  ADMIN ", "203.0.113.2")

	if result := limiter.CheckLogin("admin", "203.0.113.3"); result.Allowed {
		t.Error("case and whitespace variants should share one counter")
	}
}

func TestCheckLogin_IPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{MaxAttempts: 100, Lockout: time.Minute, MaxIPPerHour: 3, Clock: clock})
	defer limiter.Close()

	ip := "203.0.113.10"
	for _, user := range []string{"a", "b", "c"} {
		limiter.RecordLoginFailure(user, ip)
	}

	result := limiter.CheckLogin("d", ip)
	if result.Allowed {
		t.Fatal("IP over hourly limit should be blocked")
	}
	if result.Reason != "ip_hourly_limit" {
		t.Errorf("Expected reason 'ip_hourly_limit', got '%s'", result.Reason)
	}

	if result := limiter.CheckLogin("d", "203.0.113.11"); !result.Allowed {
		t.Error("other IPs should be unaffected")
	}

	clock.Advance(time.Hour)
	if result := limiter.CheckLogin("d", ip); !result.Allowed {
		t.Error("IP window should expire after an hour")
	}
}

func TestGetClientIP_TrustProxy(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expected   string
	}{
		{
			name:       "TrustProxy=true, XFF rightmost public IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.50",
		},
		{
			name:       "TrustProxy=true, XFF all private",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "10.0.0.1",
		},
		{
			name:       "TrustProxy=true, X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.51",
		},
		{
			name:       "TrustProxy=false, ignores XFF",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50"},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
		{
			name:       "RemoteAddr without port",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			got := GetClientIP(r, tt.trustProxy)
			if got != tt.expected {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := map[string]bool{
		"10.1.2.3":           true,
		"172.16.0.1":         true,
		"192.168.0.1":        true,
		"127.0.0.1":          true,
		"::1":                true,
		"::ffff:192.168.1.1": true,
		"203.0.113.5":        false,
		"2001:db8::1":        false,
		"not-an-ip":          false,
	}
	for ip, want := range tests {
		if got := isPrivateIP(ip); got != want {
			t.Errorf("isPrivateIP(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.Lockout != 15*time.Minute {
		t.Errorf("Lockout = %v, want 15m", cfg.Lockout)
	}
	if cfg.MaxIPPerHour != 30 {
		t.Errorf("MaxIPPerHour = %d, want 30", cfg.MaxIPPerHour)
	}
}

func TestConcurrentAccess(t *testing.T) {
	limiter := New(nil)
	defer limiter.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ip := "203.0.113." + string(rune('0'+i%10))
			limiter.CheckLogin("admin", ip)
			limiter.RecordLoginFailure("admin", ip)
		}(i)
	}
	wg.Wait()
}

func TestThrottle(t *testing.T) {
	throttle := NewThrottle(2)
	defer throttle.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if ok, _ := throttle.Allow("203.0.113.10", now); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	ok, wait := throttle.Allow("203.0.113.10", now)
	if ok {
		t.Fatal("third request in the same instant should be throttled")
	}
	if wait <= 0 || wait > 30*time.Second {
		t.Errorf("unexpected wait %v", wait)
	}

	if ok, _ := throttle.Allow("203.0.113.11", now); !ok {
		t.Error("other clients should have their own bucket")
	}

	if ok, _ := throttle.Allow("203.0.113.10", now.Add(30*time.Second)); !ok {
		t.Error("a token should refill after 30s")
	}
}

func TestThrottleDisabled(t *testing.T) {
	throttle := NewThrottle(0)
	defer throttle.Close()

	now := time.Now()
	for i := 0; i < 1000; i++ {
		if ok, _ := throttle.Allow("x", now); !ok {
			t.Fatalf("disabled throttle rejected request %d", i)
		}
	}
}

func TestThrottleEvictsIdleClients(t *testing.T) {
	throttle := NewThrottle(10)
	defer throttle.Close()

	now := time.Now()
	throttle.Allow("a", now)
	throttle.Allow("b", now.Add(9*time.Minute))
	throttle.evictIdle(now.Add(11*time.Minute), 10*time.Minute)

	throttle.mu.Lock()
	defer throttle.mu.Unlock()
	if _, ok := throttle.clients["a"]; ok {
		t.Error("idle client should be evicted")
	}
	if _, ok := throttle.clients["b"]; !ok {
		t.Error("recent client should be kept")
	}
}
