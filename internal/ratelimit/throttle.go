package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a per-client token bucket for admin mutations.
type Throttle struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*throttleClient

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

type throttleClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle allows perMinute requests per client, bursting to the same
// amount. perMinute <= 0 disables throttling.
func NewThrottle(perMinute int) *Throttle {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Throttle{
		limit:         limit,
		burst:         burst,
		clients:       make(map[string]*throttleClient),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Allow consumes one token for key at now. When the bucket is empty it
// returns false and the wait until the next token.
func (t *Throttle) Allow(key string, now time.Time) (bool, time.Duration) {
	t.startCleanup()

	t.mu.Lock()
	c := t.clients[key]
	if c == nil {
		c = &throttleClient{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[key] = c
	}
	c.lastSeen = now
	t.mu.Unlock()

	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// Close stops the cleanup goroutine.
func (t *Throttle) Close() {
	t.cleanupCancel()
	t.cleanupWg.Wait()
}

func (t *Throttle) startCleanup() {
	t.cleanupOnce.Do(func() {
		t.cleanupWg.Add(1)
		go func() {
			defer t.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-t.cleanupCtx.Done():
					return
				case now := <-ticker.C:
					t.evictIdle(now, 10*time.Minute)
				}
			}
		}()
	})
}

func (t *Throttle) evictIdle(now time.Time, idle time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, c := range t.clients {
		if now.Sub(c.lastSeen) > idle {
			delete(t.clients, key)
		}
	}
}
