package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/payment-decisions/pkg/app"
	"github.com/chris/payment-decisions/pkg/config"
	"github.com/chris/payment-decisions/pkg/lambdaproxy"
	"github.com/chris/payment-decisions/pkg/logging"
	"github.com/joho/godotenv"
)

var proxy *lambdaproxy.Proxy

func init() {
	// Load environment variables from .env file (useful for local testing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Initialize dependencies once per execution environment.
	service, err := app.New(context.Background(), cfg, logging.New(os.Stdout, cfg.AppEnv, cfg.LogLevel))
	if err != nil {
		log.Fatalf("failed to start service: %v", err)
	}
	proxy = lambdaproxy.New(service.Handler)
}

func main() {
	lambda.Start(proxy.Handle)
}
