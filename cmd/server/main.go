package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sdms/payment-gateway/internal/api"
	"github.com/sdms/payment-gateway/internal/config"
	"github.com/sdms/payment-gateway/internal/portal"
	"github.com/sdms/payment-gateway/internal/repository"
	"github.com/sdms/payment-gateway/internal/service"
	"github.com/sdms/payment-gateway/internal/signature"
	"github.com/sdms/payment-gateway/internal/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("payment-api", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	if err := cfg.Validate(); err != nil {
		telemetry.Logger.Fatal("Invalid configuration", zap.Error(err))
	}

	telemetry.Logger.Info("Starting payment API")

	codec, err := signature.NewCodec(cfg.PaymentSecret)
	if err != nil {
		telemetry.Logger.Fatal("Failed to create signature codec", zap.Error(err))
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewInvoiceRepository(db)
	if err := repo.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	defer redisClient.Close()

	// Connect to Kafka
	kafkaWriter := repository.NewInvoicePaidWriter(cfg.KafkaBrokers)
	defer kafkaWriter.Close()

	invoices := service.NewInvoiceService(repo)
	ipn := service.NewIPNVerifier(repo, codec,
		repository.NewRedisLocker(redisClient),
		repository.NewKafkaPublisher(kafkaWriter),
	)

	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(api.Services{
		Invoices:  invoices,
		Builder:   service.NewPaymentRequestBuilder(repo, codec, cfg.GatewayURL),
		IPN:       ipn,
		Confirmer: service.NewReturnConfirmer(repo, codec, cfg.ReturnPollAttempts, cfg.ReturnPollInterval),
		Returns:   portal.NewReturnFlow(codec, portal.NewVerifyClient(cfg.APIURL, cfg.IPNTimeout)),
		JWTSecret: cfg.JWTSecret,
	})

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Payment API starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
