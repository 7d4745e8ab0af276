// Package ops exposes the operational HTTP surface: health checks and
// read-only views of pending jobs and rendered artifacts.
package ops

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"reelpress/internal/artifacts"
	"reelpress/internal/pkg/logger"
	"reelpress/internal/pkg/middleware"
)

type Deps struct {
	Store          *artifacts.Store
	Pool           *pgxpool.Pool
	RDB            *redis.Client
	PendingPrefix  string
	RenderedPrefix string
	Log            *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.Logging(d.Log))

	h := newHandler(d)

	r.Get("/healthz", h.Health)
	r.Get("/v1/pending", h.ListPending)
	r.Get("/v1/artifacts", h.ListArtifacts)

	return r
}
