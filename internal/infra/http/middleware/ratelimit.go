package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dealroom/api/internal/config"
	"github.com/dealroom/api/pkg/apierror"
	"github.com/dealroom/api/pkg/logger"
)

const visitorIdleTimeout = 3 * time.Minute

// RateLimiter is a per-client-IP token bucket limiter.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	log      *logger.Logger
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup loop.
func NewRateLimiter(cfg *config.RateLimitConfig, log *logger.Logger) *RateLimiter {
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(cfg.RequestsPerSec),
		burst:    cfg.Burst,
		cleanup:  cleanup,
		log:      log,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go rl.cleanupVisitors()
	return rl
}

// Stop stops the cleanup loop and waits for it to exit. Safe to call twice.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
	<-rl.stopped
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	defer close(rl.stopped)

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > visitorIdleTimeout {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			limiter := rl.getVisitor(ip)

			remaining := int(math.Max(0, math.Floor(limiter.Tokens())-1))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !limiter.Allow() {
				rl.log.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				apierror.RateLimitExceeded().WriteJSONWithRequestID(w, GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit creates the rate limiting middleware and its stop function.
// A disabled config yields a pass-through middleware.
func RateLimit(cfg *config.RateLimitConfig, log *logger.Logger) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, func() {}
	}
	rl := NewRateLimiter(cfg, log)
	return rl.Middleware(), rl.Stop
}

// clientIP returns the caller address. chi's RealIP middleware has already
// folded X-Real-IP / X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
