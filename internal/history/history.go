// Package history records job lifecycle events in Postgres. The recorder is
// optional; a nil *Recorder is a no-op so the pipeline runs without a
// database configured.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS job_events (
//	    id          BIGSERIAL PRIMARY KEY,
//	    job_id      TEXT        NOT NULL,
//	    event       TEXT        NOT NULL,
//	    detail      TEXT        NOT NULL DEFAULT '',
//	    occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX IF NOT EXISTS job_events_job_id_idx ON job_events (job_id);
package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"reelpress/internal/pkg/logger"
)

// Event names recorded by the pipeline.
const (
	EventClaimed          = "claimed"
	EventResolved         = "resolved"
	EventResolutionFailed = "resolution_failed"
	EventRendered         = "rendered"
	EventRenderFailed     = "render_failed"
	EventRepublished      = "republished"
	EventReaped           = "reaped"
	EventDropped          = "dropped"
)

type Recorder struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// New returns a recorder backed by pool. A nil pool yields a nil recorder,
// which every method treats as a no-op.
func New(pool *pgxpool.Pool, log *logger.Logger) *Recorder {
	if pool == nil {
		return nil
	}
	return &Recorder{pool: pool, log: log.WithComponent("history")}
}

// Record inserts one event. Failures are logged, never propagated; history
// is advisory and must not affect job outcomes.
func (r *Recorder) Record(ctx context.Context, jobID, event, detail string) {
	if r == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO job_events (job_id, event, detail) VALUES ($1, $2, $3)`,
		jobID, event, detail)
	if err != nil {
		r.log.Warn("recording job event failed", "job_id", jobID, "event", event, "error", err)
	}
}

// Ping reports database reachability for the deep health check.
func (r *Recorder) Ping(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.pool.Ping(ctx)
}
