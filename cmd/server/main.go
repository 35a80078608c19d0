package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facecapture/internal/capture"
	"facecapture/internal/control"
	"facecapture/internal/persist"
	"facecapture/internal/platform/config"
	"facecapture/internal/platform/logger"
	"facecapture/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pacing, err := capture.ParsePacing(cfg.PlaybackPacing)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	met := metrics.New()
	reg := control.NewRegistry(store, pacing, log)
	svc := control.NewService(reg, log, met)
	for _, name := range cfg.Readers {
		if _, err := svc.CreateReader(ctx, name); err != nil {
			return err
		}
	}
	h := control.NewHandler(svc, log, met)
	h.SetIngestReadLimit(int64(cfg.IngestMaxFrameBytes))

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveReaders(reg.ActiveReaderCount()) }).ServeHTTP(w, r)
	})
	h.Register(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return svc.Run(gctx, cfg.UpdateInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("server starting",
		"port", cfg.Port,
		"readers", cfg.Readers,
		"store_backend", cfg.StoreBackend,
		"playback_pacing", string(pacing),
		"update_interval", cfg.UpdateInterval.String(),
		"log_level", cfg.LogLevel,
	)

	return g.Wait()
}

// openStore builds the persistence backend named by cfg.StoreBackend.
func openStore(ctx context.Context, cfg config.Config) (persist.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return persist.NewInMemoryStore(), func() {}, nil
	case "file":
		s, err := persist.NewFileStore(cfg.StoreDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := persist.DialRedis(dialCtx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return persist.NewRedisStore(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil
	default:
		return nil, nil, errors.New("unknown STORE_BACKEND " + cfg.StoreBackend)
	}
}
