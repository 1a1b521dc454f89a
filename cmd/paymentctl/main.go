package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/chris/payment-decisions/pkg/app"
	"github.com/chris/payment-decisions/pkg/config"
	"github.com/chris/payment-decisions/pkg/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// opener connects to the storage the commands operate on.
type opener func(ctx context.Context) (storage.Storage, error)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	open := func(ctx context.Context) (storage.Storage, error) {
		return app.OpenStorage(ctx, cfg)
	}

	if err := newRootCmd(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "paymentctl",
		Short:        "Seed and inspect the payment decision store",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(seedCmd(open))
	rootCmd.AddCommand(inspectCmd(open))
	return rootCmd
}
