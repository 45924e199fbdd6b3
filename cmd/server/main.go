package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"go.uber.org/zap"

	"github.com/atlekbai/aicfo/internal/answer"
	"github.com/atlekbai/aicfo/internal/config"
	"github.com/atlekbai/aicfo/internal/db"
	"github.com/atlekbai/aicfo/internal/handler"
	"github.com/atlekbai/aicfo/internal/schema"
	"github.com/atlekbai/aicfo/internal/server"
	"github.com/atlekbai/aicfo/internal/service"
	"github.com/atlekbai/aicfo/internal/viewtable"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid timezone", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	cache := schema.NewCache()
	if err := cache.Merge(cfg.Tables); err != nil {
		logger.Fatal("invalid table definitions", zap.Error(err))
	}
	logger.Info("logical tables loaded", zap.Int("tables", cache.TableCount()), zap.Strings("keys", cache.Keys()))

	svc := service.NewQueryService(
		cache,
		viewtable.New(cache, viewtable.WithLocation(loc), viewtable.WithLogger(logger)),
		db.NewExecutor(pool, logger),
		answer.NewRenderer(answer.WithLocale(answer.ParseLocale(cfg.Locale)), answer.WithLogger(logger)),
		service.WithDefaultLimit(cfg.DefaultLimit),
		service.WithLogger(logger),
	)

	interceptors := []connect.Interceptor{
		server.LoggingInterceptor(logger),
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.NewRouter(logger,
			[]server.RESTService{handler.New(svc, cache)},
			[]server.ConnectService{svc},
			interceptors...,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr()))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
