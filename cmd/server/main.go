package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"checkout/internal/challenge/service"
	"checkout/internal/challenge/store"
	"checkout/internal/clientaction"
	"checkout/internal/engine"
	engineMetrics "checkout/internal/engine/metrics"
	"checkout/internal/engine/ports"
	"checkout/internal/flights"
	jwttoken "checkout/internal/jwt_token"
	"checkout/internal/pidl/override"
	"checkout/internal/pidl/postprocess"
	"checkout/internal/pidl/repository"
	"checkout/internal/platform/config"
	"checkout/internal/platform/httpserver"
	"checkout/internal/platform/logger"
	"checkout/internal/platform/metrics"
	"checkout/internal/platform/postgres"
	"checkout/internal/platform/redis"
	"checkout/internal/redirect"
	"checkout/internal/settings"
	httptransport "checkout/internal/transport/http"
	"checkout/pkg/platform/circuit"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	repo, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("catalog loaded", "catalog_dir", cfg.CatalogDir)

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	provider, err := buildSettings(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	evaluator := flights.New(nil, flights.WithLogger(log))
	if cfg.FlightsDir != "" {
		if evaluator, err = flights.Load(os.DirFS(cfg.FlightsDir), flights.WithLogger(log)); err != nil {
			return err
		}
		log.Info("flight rollouts loaded", "flights", evaluator.Flights())
	}

	pipeline, err := engine.NewPipeline(repo,
		override.New(repo, evaluator, override.WithLogger(log)),
		postprocess.New(postprocess.WithLogger(log), postprocess.WithSubmitBase(cfg.SubmitBase)),
		provider, log)
	if err != nil {
		return err
	}

	signer := jwttoken.NewLinkTokenService(cfg.Redirect.QRSigningKey, cfg.Redirect.QRIssuer, cfg.Redirect.QRAudience)
	selector, err := redirect.New(repo,
		redirect.WithLogger(log),
		redirect.WithBaseURL(cfg.Redirect.BaseURL),
		redirect.WithStatusBaseURL(cfg.Redirect.StatusBaseURL),
		redirect.WithLinkSigner(signer, cfg.Redirect.QRTokenTTL),
	)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()
	engMetrics := engineMetrics.New(registry)

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	checks := map[string]httptransport.HealthChecker{}
	var sessions service.Store
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient
		sessions = store.NewRedis(redisClient.Client, store.WithRedisRetention(cfg.Challenge.Retention))
		log.Info("challenge sessions stored in redis")
	} else {
		memory := store.NewMemory(store.WithMemoryRetention(cfg.Challenge.Retention))
		go memory.RunJanitor(ctx, cfg.Challenge.JanitorInterval)
		sessions = memory
		log.Info("challenge sessions stored in memory")
	}
	if db != nil {
		checks["postgres"] = dbHealth{db}
	}

	challenges, err := service.New(sessions, pipeline,
		service.WithLogger(log),
		service.WithTTL(cfg.Challenge.TTL),
		service.WithDefaultAttempts(cfg.Challenge.DefaultAttempts),
		service.WithStepBase(cfg.Challenge.StepBase),
		service.WithEmbedder(selector),
		service.WithRecorder(engMetrics),
	)
	if err != nil {
		return err
	}

	eng, err := engine.New(pipeline, selector, clientaction.New(clientaction.WithLogger(log)),
		engine.WithLogger(log),
		engine.WithMetrics(engMetrics),
		engine.WithChallenges(challenges),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.New(eng, log), httptransport.RouterConfig{
		Metrics: metrics.Handler(registry),
		Checks:  checks,
		Links:   httptransport.NewLinkHandler(signer, log),
	}, log)
	srv := httpserver.New(cfg.Addr, router,
		httpserver.WithWriteTimeout(cfg.WriteTimeout),
		httpserver.WithErrorLog(log),
	)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting checkout server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadCatalog(ctx context.Context, cfg config.Config) (*repository.Repository, error) {
	if cfg.CatalogDir == "" {
		return repository.Default()
	}
	return repository.Load(ctx, os.DirFS(cfg.CatalogDir))
}

// buildSettings chains the database ahead of the settings files, so a
// checked-in file overrides the database for the same scope. Database
// lookups go through a circuit breaker.
func buildSettings(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger) (ports.SettingsProvider, error) {
	var providers []ports.SettingsProvider
	if db != nil {
		pg := settings.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		providers = append(providers, settings.NewGuarded(pg, circuit.New("settings-postgres"), log))
	}
	if cfg.SettingsDir != "" {
		static, err := settings.LoadStatic(os.DirFS(cfg.SettingsDir))
		if err != nil {
			return nil, err
		}
		providers = append(providers, static)
	}
	return settings.NewChain(providers...), nil
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
