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

	"github.com/cardvault-api/internal/config"
	"github.com/cardvault-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/cardvault-api/internal/infrastructure/jwt"
	"github.com/cardvault-api/internal/infrastructure/smtp"
	"github.com/cardvault-api/internal/infrastructure/sns"
	"github.com/cardvault-api/internal/pkg/fieldcrypt"
	transporthttp "github.com/cardvault-api/internal/transport/http"
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

	// Signing keys are required: every auth flow issues tokens.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider: %v", err)
	}

	// Field-encryption key, derived once and held for the process lifetime.
	codec, err := fieldcrypt.New(cfg.EncryptionPassphrase, cfg.EncryptionSalt)
	if err != nil {
		log.Fatalf("field encryption: %v", err)
	}

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS-backed phone verification.
	challengeRepo := dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.PhoneChallenges)
	phoneVerifier, err := sns.NewVerifier(cfg, challengeRepo)
	if err != nil {
		log.Fatalf("SNS verifier: %v", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:      dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		CardRepo:      dynamo.NewCardRepo(dynamoClient, cfg.DynamoTables.Cards),
		Mailer:        mailer,
		PhoneVerifier: phoneVerifier,
		JWTProvider:   jwtProvider,
		Codec:         codec,
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
	log.Println("Server stopped")
}
