package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/auditable/pkg/httputil"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns default rate limit settings
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// Limiter decides whether one more request for key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps one token bucket per key in process
type MemoryLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates an in-process limiter
func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	if config.RequestsPerWindow <= 0 || config.WindowDuration <= 0 {
		config = DefaultRateLimitConfig()
	}
	return &MemoryLimiter{config: config, buckets: make(map[string]*memoryBucket)}
}

// Allow implements Limiter
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		every := l.config.WindowDuration / time.Duration(l.config.RequestsPerWindow)
		b = &memoryBucket{limiter: rate.NewLimiter(rate.Every(every), l.config.RequestsPerWindow+l.config.BurstSize)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow(), nil
}

// Cleanup drops buckets idle for two windows
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-2 * l.config.WindowDuration)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup every window until ctx is done
func (l *MemoryLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RedisLimiter counts requests in redis, so the limit is shared across
// daemon instances. Every request pushes the window expiry forward.
type RedisLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	prefix string
}

// NewRedisLimiter creates a redis backed limiter
func NewRedisLimiter(client *redis.Client, config RateLimitConfig, prefix string) *RedisLimiter {
	if config.RequestsPerWindow <= 0 || config.WindowDuration <= 0 {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "audit:ratelimit"
	}
	return &RedisLimiter{redis: client, config: config, prefix: prefix}
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	return incr.Val() <= int64(l.config.RequestsPerWindow+l.config.BurstSize), nil
}

// RateLimitMiddleware limits requests per token owner, or per client IP for
// anonymous callers. Limiter errors fail open.
type RateLimitMiddleware struct {
	limiter Limiter
	window  time.Duration
	log     logrus.FieldLogger
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter, window time.Duration, log logrus.FieldLogger) *RateLimitMiddleware {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimitMiddleware{limiter: limiter, window: window, log: log}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := m.limiter.Allow(r.Context(), rateLimitKey(r))
		if err != nil {
			m.log.WithError(err).Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", m.window.Seconds()))
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitKey(r *http.Request) string {
	if authCtx := GetAuthContext(r); authCtx != nil && authCtx.Token != nil {
		return fmt.Sprintf("user:%d", authCtx.Token.UserID)
	}
	return "ip:" + getClientIP(r)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
