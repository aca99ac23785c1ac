package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// StatusError is an HTTP failure reported by a provider API
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// guard throttles provider calls and retries transient failures that
// happen before the first chunk was delivered.
type guard struct {
	provider    string
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *zap.Logger
}

func newGuard(provider string, opts Options, logger *zap.Logger) *guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &guard{
		provider:    provider,
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		logger:      logger,
	}
}

// stream runs attempt until it succeeds, fails after output started,
// fails permanently, or runs out of retries.
func (g *guard) stream(ctx context.Context, onChunk ChunkFunc, attempt func(ctx context.Context, emit ChunkFunc) error) error {
	var lastErr error
	for i := 0; i <= g.maxRetries; i++ {
		if i > 0 {
			backoff := g.baseBackoff * time.Duration(1<<(i-1))
			g.logger.Warn("retrying provider call",
				zap.String("provider", g.provider),
				zap.Int("attempt", i),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		started := false
		err := attempt(ctx, func(chunk string) error {
			if chunk == "" {
				return nil
			}
			started = true
			return onChunk(chunk)
		})
		if err == nil {
			return nil
		}
		if started || ctx.Err() != nil || !IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// call throttles and retries a non-streaming call
func (g *guard) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.stream(ctx, func(string) error { return nil }, func(ctx context.Context, _ ChunkFunc) error {
		return fn(ctx)
	})
}

var statusCodeRe = regexp.MustCompile(`status code:? (\d{3})`)

// IsRetryable reports whether err is a transient provider failure:
// rate limiting, a 5xx response, or a network timeout.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatus(se.StatusCode)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// langchaingo reports HTTP failures as formatted text
	if m := statusCodeRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return retryableStatus(code)
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
