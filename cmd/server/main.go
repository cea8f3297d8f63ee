package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/http2"

	"dataroom-rag/internal/adapter/raghttp"
	"dataroom-rag/internal/di"
	"dataroom-rag/internal/infra"
	"dataroom-rag/internal/infra/config"
	"dataroom-rag/internal/infra/logger"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger (with optional OTel log export)
	if cfg.OTelEnabled {
		shutdown, err := logger.SetupOTelLogExport(context.Background(), cfg.OTelEndpoint)
		if err != nil {
			slog.Error("failed to set up otel log export", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}
	log := logger.NewWithOTel(cfg.OTelEnabled)
	slog.SetDefault(log)

	// 3. Initialize DB
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	dbPool, err := infra.NewPostgresDB(context.Background(), dsn, infra.PoolConfig{MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Wire application components
	components, err := di.NewApplicationComponents(cfg, dbPool, log)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(1)
	}

	// 5. Start persistence worker
	components.Persister.Start()
	defer func() {
		log.Info("stopping_persister")
		components.Persister.Stop()
	}()
	defer components.ProcessUsecase.Dispose()

	// 6. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	// 7. Initialize Handlers
	handler, err := raghttp.NewHandler(components.ProcessUsecase, components.DocumentClient, components.ChatStore, log)
	if err != nil {
		log.Error("failed to create handler", "error", err)
		os.Exit(1)
	}
	handler.RegisterRoutes(e)

	e.GET("/readyz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	// 8. Start Server (h2c so streaming works behind plaintext HTTP/2 proxies)
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("starting_server", "addr", addr)
		if err := e.StartH2CServer(addr, &http2.Server{}); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 9. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
