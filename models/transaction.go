package models

import (
	// Go Internal Packages
	"time"

	// External Packages
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusValid     TransactionStatus = "VALID"
	StatusFailed    TransactionStatus = "FAILED"
	StatusCancelled TransactionStatus = "CANCELLED"
	StatusRefunded  TransactionStatus = "REFUNDED"
)

// Terminal reports whether no further gateway-driven transition is legal.
// VALID still accepts refunds but never returns to PENDING.
func (s TransactionStatus) Terminal() bool {
	return s != StatusPending
}

// Transaction is the durable record of one payment attempt. Records are
// never deleted; refunds accumulate on RefundedTotal instead of rewriting
// history.
type Transaction struct {
	TranID     string `json:"tran_id"`
	ValID      string `json:"val_id,omitempty"`
	BankTranID string `json:"bank_tran_id,omitempty"`
	SessionKey string `json:"session_key,omitempty"`

	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	RefundedTotal decimal.Decimal   `json:"refunded_total"`

	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerAddress string `json:"customer_address,omitempty"`

	ProductName     string `json:"product_name,omitempty"`
	ProductCategory string `json:"product_category,omitempty"`

	// Opaque pass-through metadata supplied at initiation.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Raw gateway payloads kept verbatim for audit.
	GatewayResponse map[string]any    `json:"gateway_response,omitempty"`
	IPNData         map[string]string `json:"ipn_data,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`

	ValidationAttempts int        `json:"validation_attempts"`
	LastValidationAt   *time.Time `json:"last_validation_at,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RemainingRefundable is the original amount minus everything already
// reserved or paid out as refunds.
func (t *Transaction) RemainingRefundable() decimal.Decimal {
	return t.Amount.Sub(t.RefundedTotal)
}

// SuccessfulRefundTotal sums the refunds the gateway confirmed. REQUESTED
// refunds hold a reservation but no money has moved yet, so they never
// count toward the REFUNDED transition.
func SuccessfulRefundTotal(refunds []RefundTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, rf := range refunds {
		if rf.Status == RefundSuccess {
			total = total.Add(rf.Amount)
		}
	}
	return total
}

type RefundStatus string

const (
	RefundRequested RefundStatus = "REQUESTED"
	RefundSuccess   RefundStatus = "SUCCESS"
	RefundFailed    RefundStatus = "FAILED"
)

// RefundTransaction records one refund attempt against a parent
// Transaction. A transaction may carry several partial refunds.
type RefundTransaction struct {
	RefundID  string          `json:"refund_id"`
	TranID    string          `json:"tran_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	Status    RefundStatus    `json:"status"`
	RefundRef string          `json:"refund_ref,omitempty"`

	GatewayResponse map[string]any `json:"gateway_response,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
