package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vyapar-labs/b2b-platform/internal/core/port"
	appLogger "github.com/vyapar-labs/b2b-platform/internal/infra/logger"
)

const rateLimitProblemType = "https://api.vyapar-labs.example.com/errors/rate-limit-exceeded"

// IdentifierFunc derives the rate-limit key from an incoming request.
type IdentifierFunc func(c *gin.Context) (string, bool)

// ClientIPIdentifier keys the limit on the caller's IP address.
func ClientIPIdentifier(scope string) IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return scope + ":" + ip, true
	}
}

// RateLimitRule describes a sliding-window limit for a route.
type RateLimitRule struct {
	Name        string
	MaxAttempts int
	Window      time.Duration
	Identifier  IdentifierFunc
}

// ProblemDetails is the RFC 9457 body returned when a limit is exceeded.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// RateLimiter enforces sliding-window limits backed by a shared store.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

func NewRateLimiter(store port.RateLimitStore, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the limiter's time source. Intended for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// Limit returns a middleware that enforces the supplied rule.
// When the backing store is unavailable the request is allowed through;
// availability outranks strictness for an ingress limiter.
func (rl *RateLimiter) Limit(rule RateLimitRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.store == nil || rule.MaxAttempts <= 0 {
			c.Next()
			return
		}

		identifier, ok := rule.Identifier(c)
		if !ok {
			c.Next()
			return
		}

		allowed, retryAfter, err := rl.evaluateRule(c, rule, identifier)
		if err != nil {
			rl.logger.Warn("rate limit store unavailable, allowing request",
				zap.String("rule", rule.Name),
				zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !allowed {
			rl.reject(c, rule, retryAfter)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) evaluateRule(c *gin.Context, rule RateLimitRule, identifier string) (bool, time.Duration, error) {
	ctx := c.Request.Context()
	reference := rl.now()

	if err := rl.store.TrimWindow(ctx, identifier, rule.Window, reference); err != nil {
		return false, 0, fmt.Errorf("trim window: %w", err)
	}

	count, err := rl.store.CountAttempts(ctx, identifier, rule.Window, reference)
	if err != nil {
		return false, 0, fmt.Errorf("count attempts: %w", err)
	}

	if count >= rule.MaxAttempts {
		oldest, found, err := rl.store.OldestAttempt(ctx, identifier, rule.Window, reference)
		if err != nil {
			return false, 0, fmt.Errorf("oldest attempt: %w", err)
		}

		retryAfter := rule.Window
		if found {
			retryAfter = oldest.Add(rule.Window).Sub(reference)
		}
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter, nil
	}

	if err := rl.store.RecordAttempt(ctx, identifier, reference); err != nil {
		return false, 0, fmt.Errorf("record attempt: %w", err)
	}

	remaining := rule.MaxAttempts - count - 1
	applyRateHeaders(c, rule.MaxAttempts, max(remaining, 0), reference.Add(rule.Window))
	return true, 0, nil
}

func (rl *RateLimiter) reject(c *gin.Context, rule RateLimitRule, retryAfter time.Duration) {
	seconds := int(retryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}

	rl.logger.Info("rate limit exceeded",
		zap.String("rule", rule.Name),
		zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		zap.Int("retry_after_seconds", seconds),
	)

	applyRateHeaders(c, rule.MaxAttempts, 0, rl.now().Add(retryAfter))
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("Content-Type", "application/problem+json")

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      "Rate limit exceeded",
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Please retry after %d seconds.", seconds),
		Instance:   c.FullPath(),
		RetryAfter: seconds,
	})
}

func applyRateHeaders(c *gin.Context, limit, remaining int, reset time.Time) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}
