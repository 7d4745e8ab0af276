package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"reelpress/internal/artifacts"
	"reelpress/internal/config"
	"reelpress/internal/history"
	"reelpress/internal/ops"
	"reelpress/internal/pipeline"
	"reelpress/internal/pkg/logger"
	"reelpress/internal/pkg/shutdown"
	"reelpress/internal/renderer"
	"reelpress/internal/resolver"
	"reelpress/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("invalid configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Format:      cfg.Service.LogFormat,
		ServiceName: "reelpress",
	})
	log.Info("starting reelpress orchestrator",
		"provider", cfg.Storage.Provider,
		"pending_prefix", cfg.Pipeline.PendingPrefix,
	)

	loc, err := cfg.Location()
	if err != nil {
		log.LogFatal("invalid reference timezone", err, "timezone", cfg.Pipeline.Timezone)
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Postgres is optional; without it job history is a no-op.
	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		log.Info("connecting to PostgreSQL")
		pool, err = pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			log.LogFatal("failed to connect to PostgreSQL", err)
		}
		if err := pool.Ping(ctx); err != nil {
			log.LogFatal("failed to ping PostgreSQL", err)
		}
		shutdownMgr.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		log.Info("PostgreSQL connected")
	}

	// Redis is optional; without it resolved URLs are not cached.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		log.Info("connecting to Redis")
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
		log.Info("Redis connected")
	}

	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	store := artifacts.NewStore(sp, loc, log)
	hist := history.New(pool, log)

	var res resolver.Resolver = resolver.NewBrowser(resolver.BrowserConfig{
		PageURL:  cfg.Resolver.PageURL,
		ExecPath: cfg.Resolver.ExecPath,
		Timeout:  cfg.Resolver.Timeout,
	}, log)
	res = resolver.WithCache(res, rdb, cfg.Resolver.CacheTTL, log)
	res = resolver.WithRetry(res, cfg.Resolver.Retries, log)

	rend := renderer.NewFFmpeg("ffmpeg", cfg.Pipeline.RenderTimeout, log)

	proc := pipeline.NewProcessor(store, res, rend, hist, pipeline.Config{
		PendingPrefix:  cfg.Pipeline.PendingPrefix,
		RenderedPrefix: cfg.Pipeline.RenderedPrefix,
		WorkDir:        cfg.Pipeline.WorkDir,
		DefaultBitrate: cfg.Pipeline.DefaultBitrate,
		RenderDuration: cfg.Pipeline.RenderDuration,
		SignedURLTTL:   cfg.Pipeline.SignedURLTTL,
	}, log)

	poller := pipeline.NewPoller(store, proc, hist, cfg.Pipeline.PendingPrefix, cfg.Pipeline.PollInterval, log)
	reaper := pipeline.NewReaper(store, hist,
		[]string{cfg.Pipeline.PendingPrefix, cfg.Pipeline.RenderedPrefix},
		cfg.Pipeline.Retention, cfg.Pipeline.ReapGrace, cfg.Pipeline.ReapInterval, log)

	loopCtx, cancelLoops := context.WithCancel(ctx)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(loopCtx)
	}()
	go reaper.Run(loopCtx)

	shutdownMgr.Register("pipeline", func(ctx context.Context) error {
		cancelLoops()
		select {
		case <-pollerDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	router := ops.NewRouter(ops.Deps{
		Store:          store,
		Pool:           pool,
		RDB:            rdb,
		PendingPrefix:  cfg.Pipeline.PendingPrefix,
		RenderedPrefix: cfg.Pipeline.RenderedPrefix,
		Log:            log,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Service.OpsPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	shutdownMgr.Register("ops-server", func(ctx context.Context) error {
		log.Info("shutting down ops server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("ops server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("ops server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
