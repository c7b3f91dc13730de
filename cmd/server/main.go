package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Presence/internal/adapters/auth"
	"github.com/dkeye/Presence/internal/adapters/github"
	router "github.com/dkeye/Presence/internal/adapters/http"
	"github.com/dkeye/Presence/internal/adapters/storage"
	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/app/poller"
	"github.com/dkeye/Presence/internal/app/progress"
	"github.com/dkeye/Presence/internal/config"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/metrics"
	rest "github.com/dkeye/Presence/internal/transport/http"
)

func progressConfig(cfg config.ProgressConfig) progress.Config {
	pc := progress.DefaultConfig()
	pc.Thresholds = cfg.Thresholds
	pc.Debounce = cfg.Debounce
	for name, w := range cfg.Weights {
		kind := domain.ActivityKind(name)
		if _, ok := pc.ActivityWeights[kind]; ok {
			pc.ActivityWeights[kind] = w
			continue
		}
		source := domain.ProgressSource(name)
		if _, ok := pc.SourceWeights[source]; ok {
			pc.SourceWeights[source] = w
			continue
		}
		log.Warn().Str("weight", name).Msg("unknown progress weight ignored")
	}
	return pc
}

type stores struct {
	progress    core.ProgressStore
	activity    core.ActivitySink
	credentials core.CredentialStore
	closers     []io.Closer
}

func openStores(ctx context.Context, cfg config.StoreConfig) (*stores, error) {
	db, err := storage.OpenBadger(cfg.Path)
	if err != nil {
		return nil, err
	}
	s := &stores{progress: db, activity: db, credentials: db, closers: []io.Closer{db}}
	if cfg.Driver == "redis" {
		rdb, err := storage.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.progress = storage.NewRedisProgressStore(rdb, "")
		s.closers = append(s.closers, rdb)
	}
	return s, nil
}

func setupLogging(cfg *config.Config) {
	if cfg.Mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	st, err := openStores(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range st.closers {
			if err := c.Close(); err != nil {
				log.Error().Err(err).Msg("close store")
			}
		}
	}()

	feed, err := github.NewClient(&http.Client{}, cfg.Feed.BaseURL)
	if err != nil {
		return err
	}

	clock := quartz.NewReal()
	registry := app.NewRegistry()
	rooms := app.NewRoomManager(cfg.Rooms.PoolSize, cfg.Rooms.Capacity,
		app.WithClock(clock), app.WithReservationTTL(cfg.Rooms.ReservationTTL))
	focus := app.NewFocusTracker()

	tracker := progress.NewTracker(progressConfig(cfg.Progress), st.progress, registry, clock)
	tracker.Load(ctx)

	poll := poller.New(poller.Config{
		Interval:       cfg.Feed.PollInterval,
		Backoff:        cfg.Feed.BackoffInterval,
		InitialDelay:   cfg.Feed.InitialDelay,
		RequestTimeout: cfg.Feed.RequestTimeout,
	}, feed, st.activity, clock)

	o := &orch.Orchestrator{
		Registry:    registry,
		Rooms:       rooms,
		Focus:       focus,
		Status:      focus,
		Progress:    tracker,
		Feed:        poll,
		Credentials: st.credentials,
	}
	poll.OnActivity(o.HandleActivity)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch: o,
		Handlers: &rest.Handlers{
			Rooms:       rooms,
			Progress:    tracker,
			Credentials: st.credentials,
		},
		Auth:     auth.NewAuthenticator(cfg.Secret, cfg.TokenTTL),
		Gatherer: reg,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Presence server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		poll.Close()
		rooms.Close()
		if err := tracker.Flush(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("flush progress")
		}
		return nil
	})
	return g.Wait()
}
