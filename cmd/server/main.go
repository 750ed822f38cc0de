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

	"quickpay/config"
	"quickpay/internal/auth"
	"quickpay/internal/database"
	"quickpay/internal/events"
	"quickpay/internal/logging"
	"quickpay/internal/reconcile"
	"quickpay/internal/repository"
	"quickpay/internal/router"
	"quickpay/internal/service"
	"quickpay/internal/ws"
	"quickpay/pkg/payment"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Server.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var provider payment.Provider
	switch cfg.Mpesa.Provider {
	case "stub":
		logger.Warn("using stub M-Pesa provider; no STK prompts will be sent")
		provider = &payment.StubProvider{}
	default:
		if cfg.Mpesa.ConsumerKey == "" || cfg.Mpesa.ConsumerSecret == "" {
			logger.Warn("MPESA_CONSUMER_KEY/MPESA_CONSUMER_SECRET not set; payment initiation will fail")
		}
		provider = payment.NewDarajaProvider(payment.DarajaConfig{
			BaseURL:         cfg.Mpesa.BaseURL,
			ConsumerKey:     cfg.Mpesa.ConsumerKey,
			ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
			Shortcode:       cfg.Mpesa.Shortcode,
			Passkey:         cfg.Mpesa.Passkey,
			TransactionType: cfg.Mpesa.TransactionType,
			Timeout:         cfg.Mpesa.Timeout,
		}, logger.With(zap.String("component", "daraja")))
	}

	signer := auth.NewCallbackSigner(&cfg.Callback)
	if signer == nil {
		logger.Warn("MPESA_CALLBACK_SECRET not set; callbacks are accepted without a token")
	}

	var producer events.Producer = events.NopProducer{}
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		producer = events.NewKafkaProducer(brokers, cfg.Kafka.PaymentStatusTopic, logger.With(zap.String("component", "kafka")))
		logger.Info("payment status events enabled", zap.Strings("brokers", brokers), zap.String("topic", cfg.Kafka.PaymentStatusTopic))
	}
	defer producer.Close()

	hub := ws.NewHub()
	payments := service.NewPaymentService(&cfg.Mpesa,
		repository.NewPaymentRepository(db),
		repository.NewCallbackRepository(db),
		provider,
		signer,
		logger.With(zap.String("component", "payment_service")),
		hub,
		events.NewStatusPublisher(producer, logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reconcile.Interval > 0 {
		go reconcile.NewSweeper(payments, cfg.Reconcile, logger).Run(ctx)
	}

	engine := router.Setup(cfg, payments, hub, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
