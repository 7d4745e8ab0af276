package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"reelpress/internal/artifacts"
	"reelpress/internal/httpkit"
	"reelpress/internal/job"
	"reelpress/internal/pkg/logger"
)

type handler struct {
	store          *artifacts.Store
	pool           *pgxpool.Pool
	rdb            *redis.Client
	pendingPrefix  string
	renderedPrefix string
	log            *logger.Logger
}

func newHandler(d Deps) *handler {
	return &handler{
		store:          d.Store,
		pool:           d.Pool,
		rdb:            d.RDB,
		pendingPrefix:  d.PendingPrefix,
		renderedPrefix: d.RenderedPrefix,
		log:            d.Log,
	}
}

// Health reports liveness, and dependency health when deep=true.
func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	health := map[string]any{
		"status":  "ok",
		"service": "reelpress",
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepChecks(ctx)
		health["checks"] = checks

		for _, check := range checks {
			if m, ok := check.(map[string]any); ok && m["status"] != "ok" {
				health["status"] = "degraded"
				log.Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *handler) deepChecks(ctx context.Context) map[string]any {
	checks := map[string]any{
		"storage": h.checkStorage(ctx),
	}
	if h.pool != nil {
		checks["postgres"] = h.checkPostgres(ctx)
	}
	if h.rdb != nil {
		checks["redis"] = h.checkRedis(ctx)
	}
	return checks
}

func (h *handler) checkStorage(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{
		"status":   "ok",
		"provider": h.store.Provider(),
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := h.store.List(checkCtx, h.pendingPrefix); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *handler) checkPostgres(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.pool.Ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	} else {
		stats := h.pool.Stat()
		result["total_conns"] = stats.TotalConns()
		result["idle_conns"] = stats.IdleConns()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *handler) checkRedis(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.rdb.Ping(checkCtx).Err(); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

type pendingEntry struct {
	Key   string `json:"key"`
	JobID string `json:"jobId,omitempty"`
	State string `json:"state"`
}

// ListPending returns the descriptors currently under the watched prefix,
// grouped by pipeline state.
func (h *handler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	objs, err := h.store.List(ctx, h.pendingPrefix)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	byState := make(map[string][]pendingEntry)
	total := 0
	for _, obj := range objs {
		entry := pendingEntry{Key: obj.Key, State: "unreadable"}
		if raw, err := h.store.ReadAll(ctx, obj.Key); err == nil {
			if d, err := job.Parse(raw); err == nil {
				entry.JobID = d.ID
				entry.State = d.State().String()
			} else {
				entry.State = "unparseable"
			}
		}
		byState[entry.State] = append(byState[entry.State], entry)
		total++
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"total":    total,
		"by_state": byState,
	})
}

type artifactEntry struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	UploadedTime string `json:"uploadedTime,omitempty"`
	AgeSeconds   int64  `json:"ageSeconds,omitempty"`
}

// ListArtifacts returns rendered videos with their upload stamps and ages.
func (h *handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	objs, err := h.store.List(ctx, h.renderedPrefix)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	now := time.Now()
	entries := make([]artifactEntry, 0, len(objs))
	for _, obj := range objs {
		entry := artifactEntry{Key: obj.Key, Size: obj.Size}
		if ts, _, err := h.store.UploadedTime(ctx, obj.Key); err == nil {
			entry.UploadedTime = ts.Format(artifacts.TimeFormat)
			entry.AgeSeconds = int64(now.Sub(ts).Seconds())
		}
		entries = append(entries, entry)
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"total":     len(entries),
		"artifacts": entries,
	})
}
