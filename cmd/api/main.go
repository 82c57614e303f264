package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bandhan-app/bandhan-api/internal/config"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/cache"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/bandhan-app/bandhan-api/internal/infrastructure/jwt"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/smtp"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/sns"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/verify"
	transporthttp "github.com/bandhan-app/bandhan-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// Redis backs cooldowns, resend counters and OTP codes.
	redisClient := cache.NewClient(cfg)

	// JWT provider (optional — without a secret, token minting fails hard but
	// the public surface still serves).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg.JWTSecret, time.Duration(cfg.JWTExpiryDays)*24*time.Hour); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// Delivery provider for phone OTP dispatch and checks.
	verifyClient := verify.NewClient(cfg.VerifyBaseURL, cfg.VerifyAPIKey, cfg.VerifyTimeout, cfg.VerifyMaxRPS)

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		AccountRepo:      dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts),
		NotificationRepo: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		Cooldowns:        cache.NewCooldownStore(redisClient, cfg.CooldownWindow),
		ResendCounter:    cache.NewResendCounterStore(redisClient),
		OTPStore:         cache.NewOTPStore(redisClient),
		VerifyClient:     verifyClient,
		Mailer:           mailer,
		SMSSender:        smsSender,
		JWTProvider:      jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	_ = redisClient.Close()
	log.Println("Server stopped")
}
