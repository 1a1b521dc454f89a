package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// recentPayments is how many payments inspect shows.
const recentPayments = 5

func seedCmd(open opener) *cobra.Command {
	var (
		customer string
		balance  int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Set a customer's available balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			customer, err := canonicalCustomer(customer)
			if err != nil {
				return err
			}
			if balance < 0 {
				return errors.New("balance must not be negative")
			}

			store, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.UpsertBalance(cmd.Context(), customer, balance); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s with %s\n", customer, formatMinor(balance))
			return nil
		},
	}

	cmd.Flags().StringVar(&customer, "customer", "", "Customer id (UUID)")
	cmd.Flags().Int64Var(&balance, "balance", 0, "Available balance in minor units")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("balance")
	return cmd
}

func inspectCmd(open opener) *cobra.Command {
	var customer string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a customer's balance, recent payments and their cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			customer, err := canonicalCustomer(customer)
			if err != nil {
				return err
			}

			store, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			return inspect(cmd, store, customer)
		},
	}

	cmd.Flags().StringVar(&customer, "customer", "", "Customer id (UUID)")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

// canonicalCustomer returns the lowercase form the API stores customer ids under.
func canonicalCustomer(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid customer id %q: %w", raw, err)
	}
	return id.String(), nil
}

func inspect(cmd *cobra.Command, store storage.Storage, customer string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	balance, err := store.GetBalance(ctx, customer)
	if err != nil {
		return err
	}
	payments, err := store.ListPayments(ctx, customer, recentPayments)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "customer: %s\n", customer)
	fmt.Fprintf(out, "balance:  %s\n", formatMinor(balance))
	if len(payments) == 0 {
		fmt.Fprintln(out, "payments: (none)")
		return nil
	}

	fmt.Fprintln(out, "payments:")
	for _, p := range payments {
		if err := printPayment(cmd, out, store, p); err != nil {
			return err
		}
	}
	return nil
}

func printPayment(cmd *cobra.Command, out io.Writer, store storage.Storage, p models.PaymentRecord) error {
	fmt.Fprintf(out, "  %s  %s  %-8s %s %s  payee=%s\n",
		p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), p.Id, p.Decision,
		formatMinor(p.AmountMinorUnits), p.Currency, p.PayeeId)
	if p.Decision == models.ALLOW {
		return nil
	}

	c, err := store.GetCase(cmd.Context(), p.Id)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintln(out, "    case: (missing)")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "    case: %s\n", c.Status)
	return nil
}

// formatMinor renders minor units as a two-decimal major amount.
func formatMinor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
