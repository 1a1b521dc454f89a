package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/payment-decisions/pkg/app"
	"github.com/chris/payment-decisions/pkg/config"
	"github.com/chris/payment-decisions/pkg/logging"
	"github.com/chris/payment-decisions/pkg/review"
	"github.com/joho/godotenv"
)

var consumer *review.Consumer

func init() {
	// Load environment variables from .env file (useful for local testing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.AppEnv, cfg.LogLevel)

	// The review lambda only reads cases, so it needs storage and nothing else.
	store, err := app.OpenStorage(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	consumer = review.NewConsumer(store, logger)
}

func main() {
	lambda.Start(consumer.Handle)
}
