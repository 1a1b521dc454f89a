package signals

import (
	"context"
	"unicode/utf16"

	"github.com/chris/payment-decisions/pkg/models"
)

// RiskSource produces risk signals for a (customer, payee) pair.
type RiskSource interface {
	RiskSignals(ctx context.Context, customerID, payeeID string) (models.RiskSignals, error)
}

// HashRiskSource derives stable placeholder signals from a hash of the pair.
// It stands in for a real scoring service and never fails.
type HashRiskSource struct{}

var _ RiskSource = HashRiskSource{}

func (HashRiskSource) RiskSignals(_ context.Context, customerID, payeeID string) (models.RiskSignals, error) {
	h := Hash(customerID + "|" + payeeID)

	var disputes int
	switch h % 3 {
	case 0:
		disputes = 2
	case 1:
		disputes = 1
	default:
		disputes = 0
	}

	return models.RiskSignals{
		RecentDisputes: disputes,
		DeviceChange:   (h>>1)&1 == 0,
		VelocityScore:  int(h % 101),
	}, nil
}

// Hash folds the UTF-16 code units of s with h = h*31 + unit, wrapping at 2^32.
func Hash(s string) uint32 {
	var h uint32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + uint32(unit)
	}
	return h
}
