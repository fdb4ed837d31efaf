package model

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const defaultBackoff = 300 * time.Millisecond

// RetryCompleter retries failed completions with a linear backoff of
// attempt*backoff between tries.
type RetryCompleter struct {
	next        Completer
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

func WithRetry(next Completer, maxAttempts int, logger *slog.Logger) *RetryCompleter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryCompleter{
		next:        next,
		maxAttempts: maxAttempts,
		backoff:     defaultBackoff,
		logger:      logger,
	}
}

func (r *RetryCompleter) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		out, err := r.next.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == r.maxAttempts {
			break
		}

		r.logger.Warn("[LLM] completion failed, retrying", "model", req.Model, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
	if r.maxAttempts == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", r.maxAttempts, lastErr)
}

// LimitedCompleter throttles calls to the underlying provider.
type LimitedCompleter struct {
	next    Completer
	limiter *rate.Limiter
}

func WithRateLimit(next Completer, rps float64, burst int) *LimitedCompleter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &LimitedCompleter{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (l *LimitedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Complete(ctx, req)
}
