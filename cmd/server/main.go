package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/VYBRANDMEDIA/nannygo/api"
	migrations "github.com/VYBRANDMEDIA/nannygo/db"
	"github.com/VYBRANDMEDIA/nannygo/internal/auth"
	"github.com/VYBRANDMEDIA/nannygo/internal/billing"
	"github.com/VYBRANDMEDIA/nannygo/internal/bookings"
	"github.com/VYBRANDMEDIA/nannygo/internal/config"
	"github.com/VYBRANDMEDIA/nannygo/internal/db"
	"github.com/VYBRANDMEDIA/nannygo/internal/events"
	"github.com/VYBRANDMEDIA/nannygo/internal/jobs"
	"github.com/VYBRANDMEDIA/nannygo/internal/metrics"
	"github.com/VYBRANDMEDIA/nannygo/internal/profiles"
	"github.com/VYBRANDMEDIA/nannygo/internal/repository/sqlrepo"
	"github.com/VYBRANDMEDIA/nannygo/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config YAML file")
		envPath    = flag.String("env", ".env", "Path to a dotenv file loaded before the config")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	if err := run(*configPath, *envPath, logger); err != nil {
		logger.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(configPath, envPath string, logger *slog.Logger) error {
	if err := config.LoadDotEnv(envPath); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("starting nannygo", slog.String("version", version), slog.String("build_time", buildTime), slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, conn, migrations.Migrations); err != nil {
			return err
		}
	}
	store := sqlrepo.New(conn, logger)

	var revoked auth.Revocations = auth.NewMemoryRevocations()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		revoked = auth.NewRedisRevocations(rdb)
	}

	var pub events.Publisher = events.NewLogPublisher(logger)
	if cfg.Broker.URL != "" {
		rp, err := events.NewRabbitPublisher(cfg.Broker.URL, cfg.Broker.Queue, logger)
		if err != nil {
			return err
		}
		pub = rp
	}
	defer pub.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	pool := jobs.NewWorkerPool(jobs.NewRepository(conn), jobs.Handlers(pub), logger, cfg.Jobs.Workers).
		WithMetrics(m).
		WithMaxAttempts(cfg.Jobs.MaxAttempts)

	opts := profiles.Options{
		AdminEmails:   cfg.AdminEmails,
		MaxPhotoBytes: cfg.Storage.MaxPhotoBytes,
		PublicURL:     cfg.PublicURL,
		Metrics:       m,
		Jobs:          pool,
	}
	if cfg.Stripe.SecretKey != "" {
		checkout, err := billing.NewStripeCheckout(cfg.Stripe, nil, logger)
		if err != nil {
			return err
		}
		opts.Checkout = checkout
	} else {
		logger.Warn("stripe secret key not set, subscription checkout disabled")
	}
	if cfg.Storage.Endpoint != "" {
		objects, err := storage.New(ctx, cfg.Storage, logger)
		if err != nil {
			return err
		}
		opts.Objects = objects
	} else {
		logger.Warn("object storage not configured, photo upload disabled")
	}

	profileSvc := profiles.NewService(store, logger, opts)
	bookingSvc := bookings.NewService(store, logger, m, pool)

	handler := api.SetupRoutes(api.Deps{
		Version:       version,
		BuildTime:     buildTime,
		CORSOrigins:   cfg.CORSOrigins,
		MaxPhotoBytes: cfg.Storage.MaxPhotoBytes,
		DB:            conn,
		Users:         store,
		Tokens:        auth.NewTokenManager(cfg.JWTSecret, cfg.TokenDuration),
		Revoked:       revoked,
		Profiles:      profileSvc,
		Bookings:      bookingSvc,
		Webhooks:      billing.NewWebhookVerifier(cfg.Stripe.WebhookSecret),
		Metrics:       m,
		Gatherer:      prometheus.DefaultGatherer,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
