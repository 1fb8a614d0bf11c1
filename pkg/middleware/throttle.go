package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// DefaultThrottleIdleTimeout is how long a key's limiter is kept after its last request
const DefaultThrottleIdleTimeout = 10 * time.Minute

// ThrottleConfig configures the Throttle middleware
type ThrottleConfig struct {
	// Rate is the number of requests allowed per Per for one key
	Rate int

	// Per is the period Rate applies to. Defaults to one second.
	Per time.Duration

	// Slack is the number of unused slots a quiet key may bank for a later burst.
	// Zero disables banking.
	Slack int

	// MaxQueue bounds how many requests of one key may wait for a slot at the same time.
	// A request arriving while MaxQueue others wait is answered with 429 Too Many Requests
	// without taking a slot. Zero means no bound.
	MaxQueue int

	// IdleTimeout is how long a key's limiter is kept after its last request.
	// Defaults to DefaultThrottleIdleTimeout and is never shorter than Per.
	IdleTimeout time.Duration

	// KeyFunc returns the key requests are paced by. Defaults to ClientIP, then RemoteAddr.
	KeyFunc func(*http.Request) string
}

// throttleEntry is the limiter of one key and the requests waiting on it
type throttleEntry struct {
	limiter  ratelimit.Limiter
	waiting  int
	lastSeen time.Time
}

// throttler holds the per-key limiters. Memory is bounded by the number of keys seen
// within IdleTimeout.
type throttler struct {
	config    ThrottleConfig
	logger    *zap.Logger
	mu        sync.Mutex
	entries   map[string]*throttleEntry
	lastSweep time.Time
}

func newThrottler(config ThrottleConfig, logger *zap.Logger) *throttler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Per <= 0 {
		config.Per = time.Second
	}
	if config.Rate <= 0 {
		config.Rate = 1
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultThrottleIdleTimeout
	}
	if config.IdleTimeout < config.Per {
		config.IdleTimeout = config.Per
	}
	if config.KeyFunc == nil {
		config.KeyFunc = throttleKey
	}

	return &throttler{
		config:    config,
		logger:    logger,
		entries:   make(map[string]*throttleEntry),
		lastSweep: time.Now(),
	}
}

// Throttle creates a middleware that paces requests per key with a leaky bucket.
// Requests wait for their slot instead of being rejected outright, unless the key
// already has MaxQueue requests waiting.
func Throttle(config ThrottleConfig, logger *zap.Logger) Middleware {
	return newThrottler(config, logger).middleware
}

func (t *throttler) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := t.config.KeyFunc(r)

		entry, queued, ok := t.acquire(key)
		if !ok {
			t.logger.Warn("Throttle queue full", requestFields(r,
				zap.String("key", key),
				zap.Int("waiting", queued),
			)...)
			w.Header().Set("Retry-After", strconv.Itoa(t.retryAfter(queued)))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		entry.limiter.Take()
		t.release(entry)

		if r.Context().Err() != nil {
			t.logger.Debug("Request canceled while throttled", requestFields(r, zap.String("key", key))...)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// acquire registers a waiter on key's limiter. It reports false, along with the number
// of requests already waiting, when the queue is full.
func (t *throttler) acquire(key string) (*throttleEntry, int, bool) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) >= t.config.IdleTimeout {
		t.sweep(now)
	}

	entry, ok := t.entries[key]
	if !ok {
		opt := ratelimit.WithoutSlack
		if t.config.Slack > 0 {
			opt = ratelimit.WithSlack(t.config.Slack)
		}
		entry = &throttleEntry{
			limiter: ratelimit.New(t.config.Rate, ratelimit.Per(t.config.Per), opt),
		}
		t.entries[key] = entry
	}
	entry.lastSeen = now

	if t.config.MaxQueue > 0 && entry.waiting >= t.config.MaxQueue {
		return nil, entry.waiting, false
	}
	entry.waiting++
	return entry, entry.waiting, true
}

func (t *throttler) release(entry *throttleEntry) {
	t.mu.Lock()
	entry.waiting--
	entry.lastSeen = time.Now()
	t.mu.Unlock()
}

// sweep drops limiters idle for longer than IdleTimeout. Callers hold t.mu.
func (t *throttler) sweep(now time.Time) {
	for key, entry := range t.entries {
		if entry.waiting == 0 && now.Sub(entry.lastSeen) >= t.config.IdleTimeout {
			delete(t.entries, key)
		}
	}
	t.lastSweep = now
}

// size returns the number of keys with a live limiter
func (t *throttler) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// waiting returns the number of requests of key waiting for a slot
func (t *throttler) waiting(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[key]; ok {
		return entry.waiting
	}
	return 0
}

// retryAfter returns, in whole seconds, how long the queued requests plus one more take to drain
func (t *throttler) retryAfter(queued int) int {
	wait := time.Duration(queued+1) * t.config.Per / time.Duration(t.config.Rate)
	return int((wait + time.Second - 1) / time.Second)
}

func throttleKey(r *http.Request) string {
	if ip := ClientIP(r); ip != "" {
		return ip
	}
	return stripPort(r.RemoteAddr)
}
