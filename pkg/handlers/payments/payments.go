package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chris/payment-decisions/pkg/api"
	"github.com/chris/payment-decisions/pkg/mapping"
	"github.com/chris/payment-decisions/pkg/middleware"
	"github.com/chris/payment-decisions/pkg/models"
	paymentsvc "github.com/chris/payment-decisions/pkg/payments"
	"github.com/go-playground/validator/v10"
)

// Decider runs the decision pipeline for a validated request.
type Decider interface {
	Decide(ctx context.Context, req models.DecisionRequest, requestID string) (paymentsvc.Outcome, error)
}

// PaymentsHandler holds the dependencies for payment-related handlers.
type PaymentsHandler struct {
	Service  Decider
	Validate *validator.Validate
	Logger   *slog.Logger
}

// NewPaymentsHandler creates a new PaymentsHandler.
func NewPaymentsHandler(service Decider, logger *slog.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		Service:  service,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Logger:   logger,
	}
}

// DecidePayment handles the logic for deciding on a payment request.
func (h *PaymentsHandler) DecidePayment(w http.ResponseWriter, r *http.Request) {
	var body api.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	req, err := h.validate(&body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	outcome, err := h.Service.Decide(r.Context(), req, middleware.GetRequestID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(outcome.Body); err != nil {
		h.Logger.ErrorContext(r.Context(), "failed to write response", slog.Any("error", err))
	}
}

func (h *PaymentsHandler) validate(body *api.DecisionRequest) (models.DecisionRequest, error) {
	if err := h.Validate.Struct(body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.DecisionRequest{}, &paymentsvc.ValidationError{
				Field:   verrs[0].Field(),
				Message: fmt.Sprintf("failed on the '%s' rule", verrs[0].Tag()),
			}
		}
		return models.DecisionRequest{}, &paymentsvc.ValidationError{Message: err.Error()}
	}

	req, err := mapping.ToDomainDecisionRequest(body)
	if err != nil {
		return models.DecisionRequest{}, &paymentsvc.ValidationError{Field: "Amount", Message: err.Error()}
	}
	return req, nil
}

func (h *PaymentsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr  *paymentsvc.ValidationError
		signalErr      *paymentsvc.SignalLookupError
		transactionErr *paymentsvc.TransactionError
	)
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, fmt.Sprintf("Invalid request: %v", validationErr), http.StatusBadRequest)
	case errors.As(err, &signalErr):
		h.Logger.ErrorContext(r.Context(), "signal lookup exhausted", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case errors.As(err, &transactionErr):
		h.Logger.ErrorContext(r.Context(), "transaction failed", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, fmt.Sprintf("Failed to decide payment: %v", err), http.StatusInternalServerError)
	}
}
