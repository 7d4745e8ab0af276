// Package resolver turns a source reference (a track page URL) into a
// directly downloadable media URL. The concrete resolver drives a headless
// browser; decorators add caching and bounded retries.
package resolver

import (
	"context"

	apperrors "reelpress/internal/pkg/errors"
	"reelpress/internal/pkg/logger"
)

// Resolver resolves a source reference to a downloadable media URL.
type Resolver interface {
	Resolve(ctx context.Context, sourceRef string) (string, error)
}

// Func adapts a function to the Resolver interface.
type Func func(ctx context.Context, sourceRef string) (string, error)

func (f Func) Resolve(ctx context.Context, sourceRef string) (string, error) {
	return f(ctx, sourceRef)
}

type retryResolver struct {
	inner    Resolver
	attempts int
	log      *logger.Logger
}

// WithRetry wraps a resolver with extraAttempts additional tries after the
// first. An empty URL counts as a failure. The returned error after the last
// attempt carries the resolution failure code.
func WithRetry(inner Resolver, extraAttempts int, log *logger.Logger) Resolver {
	if extraAttempts < 0 {
		extraAttempts = 0
	}
	return &retryResolver{
		inner:    inner,
		attempts: extraAttempts + 1,
		log:      log.WithComponent("resolver"),
	}
}

func (r *retryResolver) Resolve(ctx context.Context, sourceRef string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		// Cancellation is an interruption of this run, never a resolution
		// verdict; it must not count against the retry budget.
		if err := ctx.Err(); err != nil {
			return "", apperrors.WrapWithCode(err, apperrors.CodeInternal, "resolver.Resolve", "resolution interrupted")
		}

		url, err := r.inner.Resolve(ctx, sourceRef)
		if err == nil && url != "" {
			if attempt > 1 {
				r.log.Info("resolution succeeded after retry", "source_ref", sourceRef, "attempt", attempt)
			}
			return url, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", apperrors.WrapWithCode(ctxErr, apperrors.CodeInternal, "resolver.Resolve", "resolution interrupted")
		}
		if err == nil {
			err = apperrors.New(apperrors.CodeResolution, "resolver returned an empty URL")
		}
		lastErr = err
		r.log.Warn("resolution attempt failed",
			"source_ref", sourceRef,
			"attempt", attempt,
			"attempts", r.attempts,
			"error", err,
		)
	}
	return "", apperrors.WrapWithCode(lastErr, apperrors.CodeResolution, "resolver.Resolve",
		"all resolution attempts exhausted")
}
