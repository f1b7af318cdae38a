package ratelimiter

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides request rate limiting using the token bucket algorithm.
//
// Tokens are added at a constant rate; each request consumes one. Burst is
// the bucket capacity, so short spikes above the sustained rate are served
// while the bucket has tokens.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter.
//
// Parameters:
//   - requestsPerSecond: Maximum sustained rate. 0 disables limiting.
//   - burst: Bucket capacity. 0 uses requestsPerSecond.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = requestsPerSecond
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Unlimited reports whether the limiter lets every request through.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow consumes a token if one is available, without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// retryAfter returns the whole seconds until the next token, at least 1.
func (r *RateLimiter) retryAfter() int {
	limit := float64(r.limiter.Limit())
	if limit <= 0 {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/limit)))
}

// Middleware rejects requests above the limit with 429 Too Many Requests and
// a Retry-After header. An unlimited limiter returns next unchanged.
func Middleware(r *RateLimiter, next http.Handler) http.Handler {
	if r == nil || r.Unlimited() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(r.retryAfter()))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// defaultWait bounds Wait in WaitMiddleware when the request has no deadline.
const defaultWait = 5 * time.Second

// WaitMiddleware throttles instead of rejecting: requests wait for a token
// up to their deadline (or five seconds), then get 429.
func WaitMiddleware(r *RateLimiter, next http.Handler) http.Handler {
	if r == nil || r.Unlimited() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultWait)
			defer cancel()
		}
		if err := r.Wait(ctx); err != nil {
			w.Header().Set("Retry-After", strconv.Itoa(r.retryAfter()))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}
