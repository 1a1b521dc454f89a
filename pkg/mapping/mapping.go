package mapping

import (
	"errors"
	"math"

	"github.com/chris/payment-decisions/pkg/api"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrNonPositiveAmount is returned when an amount is zero or negative, or rounds to zero minor units.
var ErrNonPositiveAmount = errors.New("amount must be positive")

// ErrAmountOutOfRange is returned when an amount does not fit in minor units.
var ErrAmountOutOfRange = errors.New("amount out of range")

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// ToMinorUnits converts an amount in major units to minor units, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrNonPositiveAmount
	}
	minor := amount.Mul(hundred).Round(0)
	if minor.GreaterThan(maxMinor) {
		return 0, ErrAmountOutOfRange
	}
	if !minor.IsPositive() {
		return 0, ErrNonPositiveAmount
	}
	return minor.IntPart(), nil
}

// ToDomainDecisionRequest converts an API DecisionRequest model to a domain DecisionRequest model.
func ToDomainDecisionRequest(req *api.DecisionRequest) (models.DecisionRequest, error) {
	amount, err := ToMinorUnits(req.Amount)
	if err != nil {
		return models.DecisionRequest{}, err
	}
	return models.DecisionRequest{
		CustomerId:       req.CustomerId.String(),
		PayeeId:          req.PayeeId,
		AmountMinorUnits: amount,
		Currency:         req.Currency,
		IdempotencyKey:   req.IdempotencyKey,
	}, nil
}

// ToApiHealth builds the health response of a service.
func ToApiHealth(service string) *api.Health {
	return &api.Health{Status: "healthy", Service: service}
}
