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

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/compiler"
	"github.com/Harsh-BH/sentinel-judge/internal/config"
	handler "github.com/Harsh-BH/sentinel-judge/internal/delivery/http"
	"github.com/Harsh-BH/sentinel-judge/internal/health"
	"github.com/Harsh-BH/sentinel-judge/internal/judge"
	"github.com/Harsh-BH/sentinel-judge/internal/pool"
	"github.com/Harsh-BH/sentinel-judge/internal/publisher"
	"github.com/Harsh-BH/sentinel-judge/internal/sandbox"
	"github.com/Harsh-BH/sentinel-judge/internal/sign"
	"github.com/Harsh-BH/sentinel-judge/internal/spj"
	"github.com/Harsh-BH/sentinel-judge/internal/testcase"
	"github.com/Harsh-BH/sentinel-judge/internal/usecase"
	"github.com/Harsh-BH/sentinel-judge/internal/workspace"
)

// spjLockTTL bounds how long a crashed host can hold a cross-host SPJ lock.
const spjLockTTL = 2 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Sentinel Judge Server")

	gin.SetMode(cfg.Server.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signer, err := sign.NewSigner(cfg.Judge.Token, cfg.Judge.SignatureWindow)
	if err != nil {
		logger.Fatal("Failed to initialize signer", zap.Error(err))
	}

	// Connect to Redis when configured
	var (
		replay sign.ReplayGuard = sign.NewMemoryReplayGuard()
		locker spj.Locker       = spj.NopLocker{}
	)
	if cfg.Redis.URL != "" {
		redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Invalid Redis URL", zap.Error(err))
		}
		redisClient := goredis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		replay = sign.NewRedisReplayGuard(redisClient)
		locker = spj.NewRedisLocker(redisClient, spjLockTTL)
		logger.Info("Connected to Redis")
	}

	// Pick the test-case store
	var cases testcase.Store = testcase.NewFSStore(cfg.Judge.TestCaseBase)
	if cfg.Database.URL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer dbPool.Close()
		if err := dbPool.Ping(ctx); err != nil {
			logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
		}
		cases = testcase.NewPGStore(dbPool)
		logger.Info("Connected to PostgreSQL")
	}

	// Initialize judge event publisher
	var pub publisher.Publisher = publisher.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		pub, err = publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
		}
		logger.Info("Connected to RabbitMQ")
	}
	defer pub.Close()

	// Initialize sandbox
	sb := sandbox.NewNsjail(sandbox.NsjailOptions{
		Path:           cfg.Sandbox.NsjailPath,
		ConfigDir:      cfg.Sandbox.ConfigDir,
		UID:            cfg.Sandbox.RunUID,
		GID:            cfg.Sandbox.RunGID,
		MaxProcesses:   cfg.Sandbox.MaxProcesses,
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
	}, logger)
	logger.Info("Sandbox ready", zap.String("judger_version", sb.Version()))

	workspaces, err := workspace.NewManager(workspace.Options{
		Base:      cfg.Workspace.Base,
		Retention: workspace.Retention(cfg.Workspace.Retention),
		MaxAge:    cfg.Workspace.MaxAge,
		MaxCount:  cfg.Workspace.MaxCount,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize workspaces", zap.Error(err))
	}
	go workspaces.RunJanitor(ctx, cfg.Workspace.SweepInterval)

	reporter, err := health.NewProcReporter(0, sb.Version)
	if err != nil {
		logger.Fatal("Failed to initialize health reporter", zap.Error(err))
	}

	// Initialize use cases
	comp := compiler.New(sb, logger)
	spjCache := spj.NewCache(cfg.Judge.TestCaseBase, comp, locker, logger)
	judgeUC := usecase.NewJudgeUsecase(workspaces, comp, spjCache, cases, judge.NewEngine(sb, logger), pub, logger)
	compileSPJUC := usecase.NewCompileSPJUsecase(spjCache, logger)
	pingUC := usecase.NewPingUsecase(reporter)

	// Start judge pool
	workerPool := pool.NewWorkerPool(cfg.Judge.PoolSize, logger)
	workerPool.Start(ctx)

	gw := handler.NewGateway(signer, replay, judgeUC, compileSPJUC, pingUC, workerPool, logger)
	router := handler.NewRouter(gw, sb, logger, cfg.Server.MaxBodyBytes)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Judge server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down judge server...")

	// In-flight judge calls finish before the pool is released.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	cancel()
	workerPool.Stop()

	logger.Info("Judge server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if err := zcfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return zcfg.Build()
}
