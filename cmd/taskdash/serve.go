package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskdash/api/handler"
	"github.com/fastygo/taskdash/internal/config"
	"github.com/fastygo/taskdash/internal/infrastructure/buffer"
	"github.com/fastygo/taskdash/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskdash/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskdash/internal/infrastructure/redis"
	"github.com/fastygo/taskdash/internal/middleware"
	"github.com/fastygo/taskdash/internal/router"
	"github.com/fastygo/taskdash/internal/services"
	"github.com/fastygo/taskdash/internal/services/lifecycle"
	"github.com/fastygo/taskdash/pkg/httpcontext"
	"github.com/fastygo/taskdash/pkg/token"
	"github.com/fastygo/taskdash/repository/postgres"
	redisRepo "github.com/fastygo/taskdash/repository/redis"
	authUC "github.com/fastygo/taskdash/usecase/auth"
	dashboardUC "github.com/fastygo/taskdash/usecase/dashboard"
	profileUC "github.com/fastygo/taskdash/usecase/profile"
	taskUC "github.com/fastygo/taskdash/usecase/task"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, zapLogger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	appCtx, cancel := context.WithCancel(parent)
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)
	defer func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			zapLogger.Error("graceful shutdown error", zap.Error(err))
		}
	}()

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		return err
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		return err
	}
	manager.RegisterFunc("postgres", func() { pgInfra.Close(pool, zapLogger) })

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
	if err != nil {
		return err
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "buffer", cfg.Buffer.MaxSize)
	if err != nil {
		return err
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	location, err := cfg.Stats.Location()
	if err != nil {
		return err
	}
	completion, err := dashboardUC.ParseCompletionSource(cfg.Stats.CompletionSource)
	if err != nil {
		return err
	}
	board, err := dashboardUC.NewBoard(cfg.Stats.BoardSize)
	if err != nil {
		return err
	}

	mon := monitor.New(monitor.Targets{
		Postgres:  pool,
		Redis:     monitor.RedisPinger(redisClient),
		Buffer:    bufferStore,
		Dashboard: board,
	}, cfg.Monitor.Interval, zapLogger)
	mon.Start()
	manager.RegisterFunc("monitor", mon.Stop)

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	eventRepo := postgres.NewTaskEventRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.Session.TTL)
	taskFeed := redisRepo.NewTaskFeed(redisClient, cfg.Redis.FeedChannel, zapLogger)

	dashboardUseCase := dashboardUC.New(board, taskRepo, dashboardUC.Config{
		Location: location,
		Options:  dashboardUC.Options{CompletionSource: completion},
	}, zapLogger)
	notifier := services.NewFeedNotifier(taskFeed, dashboardUseCase, zapLogger)

	pump := services.NewSnapshotPump(taskFeed, taskRepo, board.Wants, cfg.Stats.PumpTimeout, zapLogger)
	pumpCtx, stopPump := context.WithCancel(appCtx)
	go func() {
		if err := pump.Run(pumpCtx); err != nil {
			zapLogger.Warn("snapshot pump stopped; dashboards refresh on local writes only", zap.Error(err))
		}
	}()
	watcher := dashboardUC.NewWatcher(board, pump.Snapshots(), zapLogger)
	watcher.Start()
	manager.RegisterFunc("dashboard_watcher", func() {
		stopPump()
		watcher.Stop()
	})

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		userRepo,
		taskRepo,
		notifier,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	bufferProcessor.Start()
	manager.Register("buffer_processor", bufferProcessor.Stop)

	bufferBridge := services.NewBufferBridge(bufferProcessor)
	tokens := token.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenTTL)

	authUseCase := authUC.New(userRepo, sessionRepo, tokens, cfg.Session.TTL, zapLogger)
	profileUseCase := profileUC.New(userRepo, bufferBridge, zapLogger)
	taskUseCase := taskUC.New(taskRepo, eventRepo, bufferBridge, notifier, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:      apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Profile:   apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:      apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Dashboard: apiHandler.NewDashboardHandler(dashboardUseCase, ctxAdapter, zapLogger),
		Health:    apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(tokens, authUseCase, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		serveErr <- server.ListenAndServe(cfg.Address())
	}()
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	select {
	case <-appCtx.Done():
		return nil
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("server crashed", zap.Error(err))
			return err
		}
		return nil
	}
}
