// Package events defines the typed payment outcome events and the
// in-process bus callers subscribe to at startup. Delivery is
// synchronous and best-effort: a handler failure is logged, never rolled
// back into the already-committed state transition that produced it.
package events

import (
	// Go Internal Packages
	"time"

	// External Packages
	"github.com/shopspring/decimal"
)

type Event interface {
	Name() string
	// Key is the partitioning identity of the event, the tran_id.
	Key() string
}

// IPNReceived fires for every parseable notification before any
// verification, mirroring the gateway's raw callback for subscribers that
// want pre-validation hooks.
type IPNReceived struct {
	TranID  string            `json:"tran_id"`
	Status  string            `json:"status"`
	Payload map[string]string `json:"payload"`
	At      time.Time         `json:"at"`
}

func (IPNReceived) Name() string  { return "ipn.received" }
func (e IPNReceived) Key() string { return e.TranID }

// PaymentSuccessful fires exactly once per PENDING -> VALID transition.
// Duplicate notifications for an already-VALID transaction never produce
// a second one.
type PaymentSuccessful struct {
	TranID   string            `json:"tran_id"`
	ValID    string            `json:"val_id"`
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Payload  map[string]string `json:"payload"`
	At       time.Time         `json:"at"`
}

func (PaymentSuccessful) Name() string  { return "payment.successful" }
func (e PaymentSuccessful) Key() string { return e.TranID }

// PaymentFailed fires once per transition into FAILED or CANCELLED.
type PaymentFailed struct {
	TranID  string            `json:"tran_id"`
	Reason  string            `json:"reason"`
	Payload map[string]string `json:"payload"`
	At      time.Time         `json:"at"`
}

func (PaymentFailed) Name() string  { return "payment.failed" }
func (e PaymentFailed) Key() string { return e.TranID }

// RefundProcessed fires when the gateway confirms a refund.
type RefundProcessed struct {
	TranID   string          `json:"tran_id"`
	RefundID string          `json:"refund_id"`
	Amount   decimal.Decimal `json:"amount"`
	At       time.Time       `json:"at"`
}

func (RefundProcessed) Name() string  { return "refund.processed" }
func (e RefundProcessed) Key() string { return e.TranID }
