package models

import (
	"fmt"
	"strings"
	"time"
)

// Decision is the outcome of a payment authorization request.
type Decision string

const (
	ALLOW  Decision = "allow"
	REVIEW Decision = "review"
	BLOCK  Decision = "block"
)

// Reason codes attached to review and block decisions.
const (
	ReasonInsufficientFunds         = "insufficient_funds"
	ReasonRecentDisputes            = "recent_disputes"
	ReasonAmountAboveDailyThreshold = "amount_above_daily_threshold"
	ReasonManualReview              = "manual_review"
)

// CaseStatusOpenPrefix prefixes the primary reason in a newly opened case status.
const CaseStatusOpenPrefix = "OPEN:"

// CustomerBalance is the available balance of a single customer, in minor units.
type CustomerBalance struct {
	CustomerId          string    `json:"customer_id" dynamodbav:"customer_id"`
	AvailableMinorUnits int64     `json:"available_minor_units" dynamodbav:"available_minor_units"`
	Version             int64     `json:"version" dynamodbav:"version"`
	UpdatedAt           time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// PaymentRecord is written once for every non-replayed decision request, whatever the decision.
type PaymentRecord struct {
	Id               string    `json:"id" dynamodbav:"id"`
	CustomerId       string    `json:"customer_id" dynamodbav:"customer_id"`
	PayeeId          string    `json:"payee_id" dynamodbav:"payee_id"`
	AmountMinorUnits int64     `json:"amount_minor_units" dynamodbav:"amount_minor_units"`
	Currency         string    `json:"currency" dynamodbav:"currency"`
	Decision         Decision  `json:"decision" dynamodbav:"decision"`
	CreatedAt        time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Case is a review record opened for any payment that was not allowed.
type Case struct {
	PaymentId string    `json:"payment_id" dynamodbav:"payment_id"`
	Status    string    `json:"status" dynamodbav:"status"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

// OpenCaseStatus returns the status of a freshly opened case for the given reason.
func OpenCaseStatus(reason string) string {
	return CaseStatusOpenPrefix + reason
}

// Reason extracts the primary reason from an open case status.
func (c Case) Reason() string {
	return strings.TrimPrefix(c.Status, CaseStatusOpenPrefix)
}

// IdempotencyRecord stores the exact response body produced for a (customer, key) pair.
type IdempotencyRecord struct {
	CustomerId string    `dynamodbav:"customer_id"`
	Key        string    `dynamodbav:"idempotency_key"`
	Response   []byte    `dynamodbav:"response"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
	TTL        int64     `dynamodbav:"ttl,omitempty"`
}

// RiskSignals are derived per (customer, payee) and never persisted.
type RiskSignals struct {
	RecentDisputes int  `json:"recent_disputes"`
	DeviceChange   bool `json:"device_change"`
	VelocityScore  int  `json:"velocity_score"`
}

func (r RiskSignals) String() string {
	return fmt.Sprintf("recent_disputes=%d, device_change=%t, velocity_score=%d",
		r.RecentDisputes, r.DeviceChange, r.VelocityScore)
}

// TraceStep is one entry of the audit trace returned to the caller.
type TraceStep struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// Trace is the ordered audit trail of how a decision was reached.
// Add never mutates the receiver's backing array, so a trace can be handed
// to another stage and extended there without aliasing the original.
type Trace []TraceStep

// Add returns a new trace with the step appended.
func (t Trace) Add(step, detail string) Trace {
	out := make(Trace, len(t), len(t)+1)
	copy(out, t)
	return append(out, TraceStep{Step: step, Detail: detail})
}

// Concat returns a new trace holding t followed by other.
func (t Trace) Concat(other Trace) Trace {
	out := make(Trace, 0, len(t)+len(other))
	out = append(out, t...)
	return append(out, other...)
}

// DecisionRequest is the validated, domain-level form of a decision request.
type DecisionRequest struct {
	CustomerId       string
	PayeeId          string
	AmountMinorUnits int64
	Currency         string
	IdempotencyKey   string
}

// DecisionResult is the response body of a decision request.
type DecisionResult struct {
	Decision   Decision `json:"decision"`
	Reasons    []string `json:"reasons"`
	AgentTrace Trace    `json:"agentTrace"`
	RequestId  string   `json:"requestId"`
}
