package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exterminador_backend/internal/adapters"
	"exterminador_backend/internal/archive"
	"exterminador_backend/internal/crm/classifier"
	"exterminador_backend/internal/crm/repository"
	"exterminador_backend/internal/dispatch"
	"exterminador_backend/internal/followup"
	apphttp "exterminador_backend/internal/http"
	"exterminador_backend/internal/http/router"
	"exterminador_backend/internal/ingestion"
	"exterminador_backend/internal/insights"
	"exterminador_backend/internal/notify"
	"exterminador_backend/migrations"
	"exterminador_backend/platform/config"
	"exterminador_backend/platform/db"
	"exterminador_backend/platform/logger"
	"exterminador_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		applied, err := db.RunMigrations(ctx, pool, migrations.FS)
		if err == nil {
			log.Info("database migrations complete", "applied", applied)
		}
		return err
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

	cls, err := classifier.LoadRules(cfg.GetClassifierRulesFile())
	if err != nil {
		log.Error("failed to load classifier rules", "error", err, "path", cfg.GetClassifierRulesFile())
		panic("failed to load classifier rules: " + err.Error())
	}

	val := validator.New()
	store := repository.New(pool)
	dispatcher := dispatch.NewClient(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	ingestionSvc := ingestion.NewService(store, cls, dispatcher, cfg.GetPhoneDefaultRegion(), log)

	if closeRedis := initDeduper(ctx, cfg, ingestionSvc, log); closeRedis != nil {
		defer closeRedis()
	}
	initArchiver(ctx, cfg, ingestionSvc, log)
	initLeadAlerts(cfg, ingestionSvc, log)

	followupSvc := followup.NewService(store, dispatcher, cfg, log)
	insightsSvc := insights.NewService(initGenerator(ctx, cfg, log))

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			ingestion.NewModule(ingestionSvc, cfg, cfg),
			followup.NewModule(followupSvc),
			insights.NewModule(insightsSvc, val, log),
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initDeduper enables the Redis duplicate guard when REDIS_URL is set.
func initDeduper(ctx context.Context, cfg *config.Config, svc *ingestion.Service, log *logger.Logger) func() {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; webhook duplicate guard disabled")
		return nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL; webhook duplicate guard disabled", "error", err)
		return nil
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable at startup; duplicate guard will fail open", "error", err)
	}

	svc.SetDeduper(ingestion.NewRedisDeduper(client))
	log.Info("webhook duplicate guard enabled")
	return func() {
		_ = client.Close()
	}
}

func initArchiver(ctx context.Context, cfg *config.Config, svc *ingestion.Service, log *logger.Logger) {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; webhook archive disabled")
		return
	}

	objects, err := archive.NewMinIOStore(cfg)
	if err != nil {
		log.Error("failed to initialize webhook archive", "error", err)
		return
	}

	bucket := cfg.GetMinioBucketWebhookArchive()
	if err := withRetry(ctx, log, "ensure webhook archive bucket", 5, 2*time.Second, func() error {
		return objects.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		return
	}

	svc.SetArchiver(archive.New(objects, bucket))
	log.Info("webhook archive enabled", "bucket", bucket)
}

func initLeadAlerts(cfg *config.Config, svc *ingestion.Service, log *logger.Logger) {
	if !cfg.IsEmailEnabled() {
		log.Warn("SMTP_HOST or ALERT_RECIPIENTS not configured; urgent lead alerts disabled")
		return
	}

	notifier := notify.New(notify.NewSMTPSender(cfg), cfg.GetAlertRecipients(), cfg.GetBusinessLocation())
	svc.SetLeadAlerter(adapters.NewUrgentLeadAlerter(notifier, log))
	log.Info("urgent lead alerts enabled", "recipients", len(cfg.GetAlertRecipients()))
}

func initGenerator(ctx context.Context, cfg *config.Config, log *logger.Logger) insights.Generator {
	if !cfg.IsGeminiEnabled() {
		log.Warn("GEMINI_API_KEY not configured; insights disabled")
		return nil
	}

	gen, err := insights.NewGeminiGenerator(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize gemini client; insights disabled", "error", err)
		return nil
	}
	return gen
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
