package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/api"
	"github.com/sdms/payment-gateway/internal/config"
	"github.com/sdms/payment-gateway/internal/gateway"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

func main() {
	cfg := config.Load()

	if err := telemetry.InitTelemetry("bank-simulator", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	sim := gateway.NewSimulator(gateway.Options{
		OtpReference:  cfg.OtpReference,
		ReturnURL:     cfg.ReturnURL,
		RedirectDelay: cfg.RedirectDelay,
		SessionTTL:    cfg.SessionTTL,
	}, gateway.NewIPNClient(cfg.IPNURL, cfg.IPNTimeout))

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    ":" + cfg.BankPort,
		Handler: api.NewGatewayRouter(sim),
	}

	go func() {
		telemetry.Logger.Info("Bank simulator starting",
			zap.String("port", cfg.BankPort),
			zap.String("ipn_url", cfg.IPNURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
