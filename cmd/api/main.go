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

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-tracker/config"
	httpapi "github.com/GoSim-25-26J-441/project-tracker/internal/api/http"
	"github.com/GoSim-25-26J-441/project-tracker/internal/auth"
	"github.com/GoSim-25-26J-441/project-tracker/internal/bootstrap"
	"github.com/GoSim-25-26J-441/project-tracker/internal/cache"
	"github.com/GoSim-25-26J-441/project-tracker/internal/content/repository"
	"github.com/GoSim-25-26J-441/project-tracker/internal/projects/service"
	"github.com/GoSim-25-26J-441/project-tracker/internal/storage/postgres"
	"github.com/GoSim-25-26J-441/project-tracker/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := bootstrap.NewLogger(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{
		DSN:      postgres.DSN(&cfg.Database),
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	db, err := postgres.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	posts := repository.NewPostRepository(db)
	userRepo := users.NewRepo(pool)

	svc := service.NewProjectService(
		posts,
		cache.NewRedisStore(rdb, cfg.App.ServiceName+":"),
		auth.NewRoleAccess(userRepo, posts),
		service.WithCacheTTL(cfg.Cache.ProjectsTTL),
		service.WithLogger(logger.Named("projects")),
	)
	unsubscribe := svc.RegisterHooks()
	defer unsubscribe()

	listener, err := repository.NewDeleteListener(postgres.DSN(&cfg.Database), func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("delete listener", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	defer listener.Close()

	go posts.Relay(ctx, listener.NotificationChannel(), func(err error) {
		logger.Warn("delete notification skipped", zap.Error(err))
	})

	bootstrap.SetGinMode(cfg.App.Environment)
	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    cfg.App.ServiceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Logger:         logger,
		Projects:       svc,
		Users:          userRepo,
		Health: map[string]httpapi.Pinger{
			"db":         pool,
			"content_db": bootstrap.SQLPinger{DB: db},
			"redis":      bootstrap.RedisPinger{Client: rdb},
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
