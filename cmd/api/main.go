package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safar/agrimarket/internal/account"
	"github.com/safar/agrimarket/internal/api"
	"github.com/safar/agrimarket/internal/audit"
	"github.com/safar/agrimarket/internal/auth"
	"github.com/safar/agrimarket/internal/cache"
	"github.com/safar/agrimarket/internal/catalog"
	"github.com/safar/agrimarket/internal/commerce"
	"github.com/safar/agrimarket/internal/config"
	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/identity"
	"github.com/safar/agrimarket/internal/keepalive"
	"github.com/safar/agrimarket/internal/logging"
	"github.com/safar/agrimarket/internal/notify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const connectTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to database")

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, "up")
		if err != nil {
			logger.Fatal("Run migrations", zap.Error(err))
		}
		logger.Info("Migrations applied", zap.Strings("files", applied))
	}

	stats := connectStatsCache(ctx, cfg.Redis, logger)
	if rc, ok := stats.(*cache.RedisCache); ok {
		defer rc.Close()
	}
	recorder := connectAudit(ctx, cfg.Mongo, logger)
	if mr, ok := recorder.(*audit.MongoRecorder); ok {
		defer mr.Close(context.Background())
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTPNotifier(cfg.SMTP)
	} else {
		logger.Warn("SMTP not configured, verification codes will only be logged")
	}

	tokens := auth.NewTokenIssuer(cfg.Auth)

	accounts := account.NewService(db, notifier, tokens, logger,
		account.WithOTPTTL(cfg.OTP.TTL),
		account.WithAudit(recorder),
		account.WithIdentityProvider(identity.NewGoogleProvider(cfg.Google)),
	)
	orders := commerce.NewService(db, logger,
		commerce.WithStatsCache(stats),
		commerce.WithAudit(recorder),
	)
	products := catalog.NewService(db)

	created, err := accounts.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		logger.Warn("Admin bootstrap failed", zap.Error(err))
	} else if created {
		logger.Info("Admin account created", zap.String("email", cfg.Admin.Email))
	}

	server := api.NewServer(api.Deps{
		Accounts: accounts,
		Commerce: orders,
		Catalog:  products,
		Audit:    recorder,
		Tokens:   tokens,
		Logger:   logger,
		Mode:     cfg.Server.Mode,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return keepalive.New(cfg.Keepalive.URL, cfg.Keepalive.Interval, logger).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
}

// connectStatsCache falls back to no caching when Redis is unset or
// unreachable.
func connectStatsCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) cache.StatsCache {
	if cfg.Addr == "" {
		return cache.Nop{}
	}

	rc := cache.NewRedisCache(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("Redis unavailable, vendor stats will not be cached", zap.Error(err))
		rc.Close()
		return cache.Nop{}
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return rc
}

// connectAudit falls back to discarding audit events when Mongo is unset or
// unreachable.
func connectAudit(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) audit.Recorder {
	if cfg.URI == "" {
		return audit.Nop{}
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	recorder, err := audit.NewMongoRecorder(connectCtx, cfg, logger)
	if err != nil {
		logger.Warn("MongoDB unavailable, audit log disabled", zap.Error(err))
		return audit.Nop{}
	}

	logger.Info("Connected to MongoDB", zap.String("database", cfg.Database))
	return recorder
}
