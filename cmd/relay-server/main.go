// cmd/relay-server/main.go
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

	"go.uber.org/zap"

	"graphwise-relay/internal/common/auth"
	"graphwise-relay/internal/common/aws"
	"graphwise-relay/internal/common/certificate"
	"graphwise-relay/internal/common/config"
	"graphwise-relay/internal/common/database"
	relayhttp "graphwise-relay/internal/common/http"
	"graphwise-relay/internal/common/hubspot"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/common/observability"
	"graphwise-relay/internal/httpserver"
	"graphwise-relay/internal/notify"
	"graphwise-relay/internal/relay"
	cc "graphwise-relay/internal/relay/course-complete"
	gc "graphwise-relay/internal/relay/get-contact"
	la "graphwise-relay/internal/relay/legacy-ajax"
	sa "graphwise-relay/internal/relay/settings-admin"
	ty "graphwise-relay/internal/relay/thank-you"
	tv "graphwise-relay/internal/relay/track-view"
	uc "graphwise-relay/internal/relay/update-categories"
	"graphwise-relay/internal/settings"
	"graphwise-relay/internal/tally"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting relay server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()
	checks := map[string]database.Pinger{}

	// --- Init Redis with retry (tally buffer, contact cache) ---
	var redisClient *database.RedisClient
	if cfg.Database.Redis.Configured() {
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = redisClient
		zapLog.Info("Redis connected successfully")
	}

	// --- Init PostgreSQL with retry (settings store) ---
	var store settings.Store
	if cfg.Database.Postgres.Configured() {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		checks["postgres"] = pg

		pgStore := settings.NewPostgresStore(pg.GetDB())
		if err := pgStore.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("settings schema setup failed", zap.Error(err))
		}
		store = pgStore
		zapLog.Info("PostgreSQL connected successfully")
	} else {
		zapLog.Warn("No settings database configured, settings updates last until restart")
	}

	source := settings.NewSource(settings.FromConfig(cfg), store, log)
	if err := source.Reload(ctx); err != nil {
		zapLog.Fatal("settings load failed", zap.Error(err))
	}

	// --- Init External Service Clients ---
	crm := hubspot.NewCRMClient(cfg.HubSpot.BaseURL, relayhttp.NewClient(config.GetDuration(cfg.HubSpot.Timeout)))

	var certificates certificate.Issuer
	if cfg.Certificate.Enabled && cfg.Certificate.URL != "" {
		certificates = certificate.NewClient(cfg.Certificate.URL, relayhttp.NewClient(config.GetDuration(cfg.Certificate.Timeout)))
	}

	notifier := buildNotifier(ctx, cfg, log, zapLog)
	defer notifier.Close()

	var buffer tally.Buffer = tally.NopBuffer{}
	if redisClient != nil {
		if cfg.Tally.Enabled {
			buffer = tally.NewRedisBuffer(redisClient.GetClient(),
				time.Duration(cfg.Tally.TTLHours)*time.Hour, cfg.Tally.MaxCategories)
		}
	} else if cfg.Tally.Enabled {
		zapLog.Warn("Interest tally enabled but no Redis configured, page views are not buffered")
	}

	// --- Init Relay Endpoints ---
	courseComplete, err := cc.NewHandler(cc.HandlerOptions{
		AppConfig: cfg,
		Settings:  source,
		Deps:      cc.ServiceDependencies{CRM: crm, Certificates: certificates, Notifier: notifier},
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create course-complete handler", zap.Error(err))
	}

	updateCategories, err := uc.NewHandler(uc.HandlerOptions{
		AppConfig: cfg,
		Settings:  source,
		Deps:      uc.ServiceDependencies{CRM: crm, Buffer: buffer},
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create update-categories handler", zap.Error(err))
	}

	trackView, err := tv.NewHandler(tv.HandlerOptions{
		AppConfig: cfg,
		Deps:      tv.ServiceDependencies{Buffer: buffer},
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create track-view handler", zap.Error(err))
	}

	contactDeps := gc.ServiceDependencies{CRM: crm}
	if redisClient != nil && cfg.ContactCache.Enabled {
		contactDeps.Cache = redisClient.GetClient()
	}
	getContact, err := gc.NewHandler(gc.HandlerOptions{
		AppConfig: cfg,
		Settings:  source,
		Deps:      contactDeps,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create get-contact handler", zap.Error(err))
	}

	thankYou, err := ty.NewHandler(ty.HandlerOptions{
		AppConfig: cfg,
		Settings:  source,
		Contacts:  getContact,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create thank-you handler", zap.Error(err))
	}

	legacyAjax, err := la.NewHandler(la.HandlerOptions{
		AppConfig: cfg,
		Interests: updateCategories,
		Contacts:  getContact,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create legacy-ajax handler", zap.Error(err))
	}

	settingsAdmin, err := sa.NewHandler(source, log)
	if err != nil {
		zapLog.Fatal("failed to create settings-admin handler", zap.Error(err))
	}

	router := httpserver.NewRouter(httpserver.Options{
		Endpoints: httpserver.Endpoints{
			CourseComplete:   courseComplete,
			UpdateCategories: updateCategories,
			TrackView:        trackView,
			GetContact:       getContact,
			ThankYou:         thankYou,
			LegacyAjax:       legacyAjax,
			SettingsGet:      relay.EndpointFunc(settingsAdmin.Get),
			SettingsUpdate:   relay.EndpointFunc(settingsAdmin.Update),
		},
		AuthMode:      cfg.Relay.AuthMode,
		WebhookSecret: func() string { return source.Current().WebhookSecret },
		AdminAPIKey:   cfg.Relay.AdminAPIKey,
		Sessions:      auth.NewSessionIssuer(cfg.Relay.SessionSecret, cfg.Relay.CookieSecure, log),
		Observability: obs,
		Checks:        checks,
		Logger:        log,
	})
	zapLog.Info("All relay endpoints registered successfully")

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Relay server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("Relay server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down relay server", zap.Error(err))
	}

	zapLog.Info("Relay server stopped gracefully")
}

// buildNotifier assembles the completion sinks that are switched on. A sink
// that cannot be set up is logged and left out.
func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) notify.Notifier {
	opts := notify.Options{Logger: log}
	awsCfg := cfg.Notifications.AWS

	if awsCfg.SES.Enabled || awsCfg.SNS.Enabled {
		sdkCfg, err := aws.LoadConfig(ctx, awsCfg.Region)
		if err != nil {
			zapLog.Error("AWS config load failed, SES/SNS notifications disabled", zap.Error(err))
		} else {
			if awsCfg.SES.Enabled && awsCfg.SES.FromEmail != "" {
				opts.Email = aws.NewSESClient(sdkCfg, awsCfg.SES.FromEmail)
			}
			if awsCfg.SNS.Enabled && awsCfg.SNS.TopicARN != "" {
				opts.Topic = aws.NewSNSClient(sdkCfg, awsCfg.SNS.TopicARN)
			}
		}
	}

	kafkaCfg := cfg.Notifications.Kafka
	if kafkaCfg.Enabled && len(kafkaCfg.Brokers) > 0 && kafkaCfg.Topic != "" {
		opts.Events = notify.NewKafkaPublisher(kafkaCfg.Brokers, kafkaCfg.Topic)
	}

	dispatcher := notify.New(opts)
	if !dispatcher.Enabled() {
		return notify.Nop{}
	}
	zapLog.Info("Completion notifications enabled",
		zap.Bool("ses", opts.Email != nil),
		zap.Bool("sns", opts.Topic != nil),
		zap.Bool("kafka", opts.Events != nil),
	)
	return dispatcher
}
