package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/app"
	"wallpaper/vipcenter/internal/config"
	"wallpaper/vipcenter/internal/handler"
	jwtpkg "wallpaper/vipcenter/pkg/jwt"
	"wallpaper/vipcenter/pkg/logger"
)

func main() {
	configPath := "config.yaml"
	if p := os.Getenv("VIPCENTER_CONFIG"); p != "" {
		configPath = p
	}

	// 1. Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	zlog, flushLogs, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer flushLogs()

	// 3. Connect storage and build services
	application, err := app.New(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize application", zap.Error(err))
	}
	defer func() {
		if err := application.Close(); err != nil {
			zlog.Warn("close application", zap.Error(err))
		}
	}()

	// 4. Initialize JWT manager
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)

	// 5. Initialize handlers and router
	membershipHandler := handler.NewMembershipHandler(application.Quota, application.Redemption, zlog)
	adminHandler := handler.NewAdminHandler(application.Codes, application.Sweeper, zlog)
	router := handler.SetupRouter(cfg, zlog, jwtManager, membershipHandler, adminHandler)

	// 6. Start the scheduled sweeper
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	if cfg.Sweeper.Enabled {
		go application.Sweeper.Run(sweepCtx, cfg.Sweeper.Interval)
		zlog.Info("membership sweeper started", zap.Duration("interval", cfg.Sweeper.Interval))
	}

	// 7. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 8. Start server with graceful shutdown
	go func() {
		zlog.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	// 9. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server...")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
		return
	}
	zlog.Info("server exited gracefully")
}
