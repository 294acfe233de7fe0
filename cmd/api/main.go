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

	"github.com/go-email-otp/internal/application/otp"
	"github.com/go-email-otp/internal/config"
	awsinfra "github.com/go-email-otp/internal/infrastructure/aws"
	"github.com/go-email-otp/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-email-otp/internal/infrastructure/jwt"
	"github.com/go-email-otp/internal/infrastructure/logging"
	redisstore "github.com/go-email-otp/internal/infrastructure/redis"
	"github.com/go-email-otp/internal/infrastructure/smtp"
	"github.com/go-email-otp/internal/infrastructure/sns"
	transporthttp "github.com/go-email-otp/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := logging.New(cfg)
	if envErr != nil {
		logger.Debug("no .env file found, reading from environment")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := awsinfra.Load(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("load aws config")
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(awsCfg, cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, logger)

	var otpStore otp.Store
	switch cfg.OTP.Store {
	case config.OTPStoreRedis:
		client, err := redisstore.NewClient(ctx, cfg)
		if err != nil {
			logger.WithError(err).Fatal("connect redis")
		}
		defer client.Close()
		otpStore = redisstore.NewOTPStore(client)
	default:
		otpStore = dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPs)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		logger.WithError(err).Fatal("load jwt keys")
	}

	deps := &transporthttp.Deps{
		UserRepo:    dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo: dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions, logger),
		OTPStore:    otpStore,
		Mailer:      smtp.NewMailer(cfg),
		Publisher:   sns.NewPublisher(awsCfg, cfg),
		JWTProvider: jwtProvider,
	}

	router := transporthttp.NewRouter(ctx, cfg, deps, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.AppPort, "env": cfg.AppEnv, "otp_store": cfg.OTP.Store}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("forced shutdown")
	}
	logger.Info("server stopped")
}
