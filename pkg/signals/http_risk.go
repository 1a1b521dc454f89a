package signals

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/go-resty/resty/v2"
)

// ErrRiskRequestRejected is returned when the risk service refuses the request itself.
// Such failures are not retried.
var ErrRiskRequestRejected = errors.New("risk service rejected request")

// HTTPRiskSource fetches risk signals from a remote scoring service.
type HTTPRiskSource struct {
	client  *resty.Client
	baseURL string
}

var _ RiskSource = (*HTTPRiskSource)(nil)

// NewHTTPRiskSource creates a client for the risk service at baseURL.
func NewHTTPRiskSource(baseURL string, timeout time.Duration) *HTTPRiskSource {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPRiskSource{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// RiskSignals calls GET {baseURL}/risk-signals?customerId=..&payeeId=..
func (s *HTTPRiskSource) RiskSignals(ctx context.Context, customerID, payeeID string) (models.RiskSignals, error) {
	var out models.RiskSignals
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"customerId": customerID,
			"payeeId":    payeeID,
		}).
		SetResult(&out).
		Get(s.baseURL + "/risk-signals")
	if err != nil {
		return models.RiskSignals{}, fmt.Errorf("failed to call risk service: %w", err)
	}

	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return models.RiskSignals{}, fmt.Errorf("risk service unavailable: %s", resp.Status())
	case resp.StatusCode() >= http.StatusBadRequest:
		return models.RiskSignals{}, fmt.Errorf("%w: %s", ErrRiskRequestRejected, resp.Status())
	}

	return out, nil
}

// Retryable reports whether a lookup failure is worth another attempt.
func Retryable(err error) bool {
	return !errors.Is(err, ErrRiskRequestRejected)
}
