package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/labinventory-backend/api"
	"github.com/angelmondragon/labinventory-backend/api/routes"
	"github.com/angelmondragon/labinventory-backend/internal/analytics"
	"github.com/angelmondragon/labinventory-backend/internal/auth"
	"github.com/angelmondragon/labinventory-backend/internal/damagereports"
	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/internal/loans"
	"github.com/angelmondragon/labinventory-backend/internal/notifications"
	"github.com/angelmondragon/labinventory-backend/internal/reminders"
	"github.com/angelmondragon/labinventory-backend/internal/store"
	"github.com/angelmondragon/labinventory-backend/internal/users"
	"github.com/angelmondragon/labinventory-backend/pkg/auth/session"
	"github.com/angelmondragon/labinventory-backend/pkg/config"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
	"github.com/angelmondragon/labinventory-backend/pkg/metrics"
	"github.com/angelmondragon/labinventory-backend/pkg/redis"
	"github.com/angelmondragon/labinventory-backend/pkg/storage/local"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	loc, err := cfg.App.Location()
	if err != nil {
		logg.Error(context.Background(), "invalid time zone", err)
		os.Exit(1)
	}

	st, err := store.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logg.Error(context.Background(), "error closing storage", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	uploads, err := local.New(cfg.Uploads, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to prepare uploads directory", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	workflowMetrics := metrics.NewWorkflowMetrics(reg)
	emitter := notifications.NewEmitter(st.Notifications, st.Users, logg, workflowMetrics)

	deps := routes.Dependencies{
		Config:     cfg,
		Logger:     logg,
		Database:   st,
		Cache:      redisClient,
		Sessions:   sessionManager,
		Metrics:    metrics.NewHTTPMetrics(reg),
		Gatherer:   reg,
		UploadsDir: uploads.Root(),
		Location:   loc,
	}

	deps.Auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:       st.Users,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	requireService(logg, "auth", err)

	deps.Items, err = items.NewService(st.Items, st.Loans)
	requireService(logg, "items", err)

	deps.Users, err = users.NewService(users.ServiceParams{
		Repo:     st.Users,
		Loans:    st.Loans,
		Password: cfg.Password,
	})
	requireService(logg, "users", err)

	deps.Profile, err = users.NewProfileService(users.ProfileServiceParams{
		Repo:     st.Users,
		Images:   uploads,
		Password: cfg.Password,
		MaxImage: cfg.Uploads.MaxProfileBytes,
		Logger:   logg,
	})
	requireService(logg, "profile", err)

	deps.Loans, err = loans.NewService(loans.ServiceParams{
		Repo:     st.Loans,
		Items:    st.Items,
		Users:    st.Users,
		Tx:       st.Tx,
		Notifier: emitter,
		Metrics:  workflowMetrics,
		Logger:   logg,
	})
	requireService(logg, "loans", err)

	deps.DamageReports, err = damagereports.NewService(damagereports.ServiceParams{
		Repo:     st.DamageReports,
		Items:    st.Items,
		Users:    st.Users,
		Photos:   uploads,
		Notifier: emitter,
		MaxPhoto: cfg.Uploads.MaxDamagePhotoBytes,
		Logger:   logg,
	})
	requireService(logg, "damage reports", err)

	deps.Reminders, err = reminders.NewService(reminders.ServiceParams{
		Loans:    st.Loans,
		Items:    st.Items,
		Users:    st.Users,
		Location: loc,
	})
	requireService(logg, "reminders", err)

	deps.Notifications, err = notifications.NewService(st.Notifications, st.Users)
	requireService(logg, "notifications", err)

	deps.Analytics, err = analytics.NewService(st.Loans, st.Items, st.DamageReports, loc)
	requireService(logg, "analytics", err)

	server := api.NewServer(cfg, routes.NewRouter(deps))

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"addr":   server.Addr,
		"driver": st.Driver(),
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
