// Package rules holds the pure decision logic applied to a payment request.
package rules

import "github.com/chris/payment-decisions/pkg/models"

// DefaultDailyThresholdMinorUnits is the per-request amount above which a payment goes to review.
const DefaultDailyThresholdMinorUnits int64 = 20000

// RecentDisputesLimit is the number of recent disputes that triggers a review.
const RecentDisputesLimit = 2

// Outcome is a decision together with the ordered reasons that produced it.
type Outcome struct {
	Decision models.Decision
	Reasons  []string
}

// Decide evaluates a payment of amount against the available balance, the risk
// signals and the daily threshold. Insufficient funds always wins; otherwise
// every triggered review reason is reported in a fixed order.
func Decide(amount, available int64, risk models.RiskSignals, dailyThreshold int64) Outcome {
	if amount > available {
		return Outcome{Decision: models.BLOCK, Reasons: []string{models.ReasonInsufficientFunds}}
	}

	reasons := []string{}
	if risk.RecentDisputes >= RecentDisputesLimit {
		reasons = append(reasons, models.ReasonRecentDisputes)
	}
	if amount > dailyThreshold {
		reasons = append(reasons, models.ReasonAmountAboveDailyThreshold)
	}

	if len(reasons) > 0 {
		return Outcome{Decision: models.REVIEW, Reasons: reasons}
	}
	return Outcome{Decision: models.ALLOW, Reasons: reasons}
}
