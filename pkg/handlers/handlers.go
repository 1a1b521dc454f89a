package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chris/payment-decisions/pkg/api"
	"github.com/chris/payment-decisions/pkg/handlers/payments"
	"github.com/chris/payment-decisions/pkg/mapping"
)

// ApiHandler implements the generated server interface.
// It delegates each operation to the handler of its resource.
type ApiHandler struct {
	Payments    *payments.PaymentsHandler
	ServiceName string
}

// NewApiHandler creates a new ApiHandler.
func NewApiHandler(paymentsHandler *payments.PaymentsHandler, serviceName string) *ApiHandler {
	return &ApiHandler{Payments: paymentsHandler, ServiceName: serviceName}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)

// DecidePayment handles POST /payments/decide.
func (h *ApiHandler) DecidePayment(w http.ResponseWriter, r *http.Request, _ api.DecidePaymentParams) {
	h.Payments.DecidePayment(w, r)
}

// GetHealth reports that the service is up.
func (h *ApiHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(mapping.ToApiHealth(h.ServiceName)); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}
