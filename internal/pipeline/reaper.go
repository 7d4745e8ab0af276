package pipeline

import (
	"context"
	"time"

	"reelpress/internal/artifacts"
	"reelpress/internal/history"
	apperrors "reelpress/internal/pkg/errors"
	"reelpress/internal/pkg/logger"
)

// Reaper deletes objects whose uploadedTime stamp is older than the
// retention window. Terminal descriptors under the watched prefix and
// rendered videos both expire this way; nothing else removes them.
type Reaper struct {
	store     *artifacts.Store
	hist      *history.Recorder
	prefixes  []string
	retention time.Duration
	// grace pads the fallback expiry of objects missing an uploadedTime
	// stamp, judged by their native modification time instead.
	grace    time.Duration
	interval time.Duration
	log      *logger.Logger

	now func() time.Time
}

func NewReaper(store *artifacts.Store, hist *history.Recorder, prefixes []string, retention, grace, interval time.Duration, log *logger.Logger) *Reaper {
	return &Reaper{
		store:     store,
		hist:      hist,
		prefixes:  prefixes,
		retention: retention,
		grace:     grace,
		interval:  interval,
		log:       log.WithComponent("reaper"),
		now:       time.Now,
	}
}

// Run sweeps until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	r.log.Info("reaper started",
		"prefixes", r.prefixes,
		"retention", r.retention.String(),
		"interval", r.interval.String(),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cycle(ctx)
		}
	}
}

// Cycle runs one sweep over all prefixes. Per-object failures are logged and
// the object retried on the next sweep; deletion is idempotent, so two
// concurrent sweeps at worst race to remove the same key.
func (r *Reaper) Cycle(ctx context.Context) {
	for _, prefix := range r.prefixes {
		objs, err := r.store.List(ctx, prefix)
		if err != nil {
			r.log.WithError(err).Error("listing prefix failed", "prefix", prefix)
			continue
		}
		for _, obj := range objs {
			if err := ctx.Err(); err != nil {
				return
			}
			r.sweep(ctx, obj.Key)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context, key string) {
	expiry, ok := r.expiryOf(ctx, key)
	if !ok {
		return
	}
	if r.now().Before(expiry) {
		return
	}

	if err := r.store.Delete(ctx, key); err != nil {
		r.log.WithError(err).Warn("deleting expired object failed", "key", key)
		return
	}
	r.log.Info("expired object removed", "key", key, "expired_at", expiry)
	r.hist.Record(ctx, key, history.EventReaped, key)
}

// expiryOf computes when the object becomes eligible for deletion. Objects
// with a parseable uploadedTime expire retention after the stamp; objects
// without one fall back to their native modification time plus the grace
// period. Objects whose metadata cannot be read at all are skipped.
func (r *Reaper) expiryOf(ctx context.Context, key string) (time.Time, bool) {
	ts, info, err := r.store.UploadedTime(ctx, key)
	switch {
	case err == nil:
		return ts.Add(r.retention), true
	case apperrors.IsCode(err, apperrors.CodeNotFound), apperrors.IsCode(err, apperrors.CodeValidation):
		if info.Updated.IsZero() {
			r.log.Warn("object has no usable timestamp, skipping", "key", key)
			return time.Time{}, false
		}
		return info.Updated.Add(r.retention + r.grace), true
	default:
		r.log.WithError(err).Warn("reading object metadata failed", "key", key)
		return time.Time{}, false
	}
}
