package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cdn-sim/internal/catalog"
	"cdn-sim/internal/platform/config"
	"cdn-sim/internal/platform/logger"
	"cdn-sim/internal/platform/metrics"
	"cdn-sim/internal/playback"
	"cdn-sim/internal/simulator"
	"cdn-sim/internal/uploads"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	catalogFile := config.GetEnv("CATALOG_FILE", "")
	uploadDir := config.GetEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "cdn-sim-uploads"))
	maxUpload := config.GetEnvInt64("UPLOAD_MAX_BYTES", 512<<20)
	remoteLatency := envDelay("REMOTE_LATENCY", playback.DefaultRemoteLatency)
	stallTimeout := envDelay("STALL_TIMEOUT", playback.DefaultStallTimeout)
	watchCatalog := config.GetEnvBool("CATALOG_WATCH", true)
	rateLimit := config.GetEnvInt("RATE_LIMIT_PER_MINUTE", 60)

	log := logger.New(logLevel, logFormat)

	if err := run(log, options{
		port:          port,
		catalogFile:   catalogFile,
		watchCatalog:  watchCatalog,
		uploadDir:     uploadDir,
		maxUpload:     maxUpload,
		remoteLatency: remoteLatency,
		stallTimeout:  stallTimeout,
		rateLimit:     rateLimit,
	}); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// envDelay reads a playback delay. An explicit 0 disables the delay; the
// playback options treat 0 as "use the default" and negative as none.
func envDelay(key string, fallback time.Duration) time.Duration {
	d := config.GetEnvDuration(key, fallback)
	if d == 0 {
		return -1
	}
	return d
}

type options struct {
	port          string
	catalogFile   string
	watchCatalog  bool
	uploadDir     string
	maxUpload     int64
	remoteLatency time.Duration
	stallTimeout  time.Duration
	rateLimit     int
}

func run(log *slog.Logger, opts options) error {
	videos := catalog.Default()
	if opts.catalogFile != "" {
		loaded, err := catalog.LoadFile(opts.catalogFile)
		if err != nil {
			return err
		}
		videos = loaded
	}
	cat, err := catalog.New(videos)
	if err != nil {
		return err
	}

	store, err := uploads.NewStore(afero.NewOsFs(), opts.uploadDir, "/uploads")
	if err != nil {
		return err
	}

	met := metrics.New()
	hub := simulator.NewHub(log)
	host, err := simulator.NewHost(simulator.Config{
		RemoteLatency: opts.remoteLatency,
		StallTimeout:  opts.stallTimeout,
	}, cat, hub, log, met)
	if err != nil {
		return err
	}
	hub.OnMessage(host.HandleClientMessage)
	if err := host.Start(); err != nil {
		return fmt.Errorf("initial selection: %w", err)
	}

	h := simulator.NewHandler(host, cat, store, log, opts.maxUpload)
	limit := httprate.Limit(
		opts.rateLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetActivePlayers(host.Registry().ActivePlayerCount())
			met.SetConnectedViewers(hub.Viewers())
		}).ServeHTTP(w, r)
	})
	r.Get("/catalog", h.ListCatalog)
	r.With(limit).Post("/selection", h.Select)
	r.With(limit).Post("/uploads", h.Upload)
	r.Get("/uploads/{upload_id}", h.ServeUpload)
	r.Route("/players", func(r chi.Router) {
		r.Get("/", h.ListPlayers)
		r.Get("/{player_id}", h.GetPlayer)
		r.Post("/{player_id}/events", h.ReportEvent)
	})
	r.Handle("/ws", hub)

	srv := &http.Server{Addr: ":" + opts.port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting",
			"port", opts.port,
			"remote_latency", max(opts.remoteLatency, 0).String(),
			"stall_timeout", max(opts.stallTimeout, 0).String(),
			"catalog_videos", cat.Len(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if opts.catalogFile != "" {
		watcher := catalog.NewWatcher(opts.catalogFile, cat, log)
		watcher.OnReload(func(videos []catalog.Video) {
			hub.Publish(simulator.Message{Type: simulator.MessageCatalog, Data: videos})
		})

		if opts.watchCatalog {
			g.Go(func() error {
				// The watcher is best-effort; playback keeps working without it.
				if err := watcher.Run(ctx); err != nil {
					log.Warn("catalog watcher stopped", "error", err)
				}
				return nil
			})
		}

		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hup:
					if err := watcher.Reload(); err != nil {
						log.Warn("catalog reload failed", "error", err)
						continue
					}
					log.Info("catalog reloaded", "videos", cat.Len())
				}
			}
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		hub.Close()
		_ = host.Close()
		return err
	})

	return g.Wait()
}
