package models

import (
	// Go Internal Packages
	"fmt"
	"strings"
	"time"

	// External Packages
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountTolerance is the fixed tolerance for comparing a stored amount
// against a gateway-confirmed one: one poisha, the smallest supported
// currency unit. Amounts are never compared with floating-point equality.
var AmountTolerance = decimal.New(1, -2)

// SupportedCurrencies lists the currency codes the gateway accepts.
var SupportedCurrencies = []string{"BDT", "USD", "EUR", "GBP", "JPY", "CAD", "AUD", "SGD"}

// AmountsMatch compares two decimal amounts within AmountTolerance.
func AmountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}

// CurrencySupported reports whether code is in the gateway whitelist.
func CurrencySupported(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == strings.ToUpper(code) {
			return true
		}
	}
	return false
}

// GenerateTranID builds a client-side transaction identifier of the form
// <prefix>_<timestamp>_<uuid8>, unique enough for the gateway's 100-char
// tran_id field.
func GenerateTranID(prefix string) string {
	if prefix == "" {
		prefix = "TXN"
	}
	ts := time.Now().UTC().Format("20060102150405")
	uid := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("%s_%s_%s", prefix, ts, uid)
}

// GenerateRefundID builds a refund identifier in the same shape.
func GenerateRefundID() string {
	return GenerateTranID("REF")
}

// PaymentRequest carries everything needed to open a gateway session.
type PaymentRequest struct {
	TranID   string          `json:"tran_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	CustomerName    string `json:"cus_name"`
	CustomerEmail   string `json:"cus_email"`
	CustomerPhone   string `json:"cus_phone"`
	CustomerAddress string `json:"cus_add1,omitempty"`
	CustomerCity    string `json:"cus_city,omitempty"`
	CustomerPost    string `json:"cus_postcode,omitempty"`
	CustomerCountry string `json:"cus_country,omitempty"`

	ProductName     string `json:"product_name,omitempty"`
	ProductCategory string `json:"product_category,omitempty"`
	ProductProfile  string `json:"product_profile,omitempty"`

	ShippingName    string `json:"ship_name,omitempty"`
	ShippingAddress string `json:"ship_add1,omitempty"`
	ShippingCity    string `json:"ship_city,omitempty"`

	// Callback URLs; empty fields fall back to the configured defaults.
	SuccessURL string `json:"success_url,omitempty"`
	FailURL    string `json:"fail_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	IPNURL     string `json:"ipn_url,omitempty"`

	// value_a..value_d pass-through fields echoed back by the gateway.
	ValueA string `json:"value_a,omitempty"`
	ValueB string `json:"value_b,omitempty"`
	ValueC string `json:"value_c,omitempty"`
	ValueD string `json:"value_d,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

const gatewaySuccess = "SUCCESS"

// InitiationResult is the parsed session-creation reply. A non-SUCCESS
// status is a normal outcome, not an error.
type InitiationResult struct {
	Status         string         `json:"status"`
	FailedReason   string         `json:"failedreason,omitempty"`
	SessionKey     string         `json:"sessionkey,omitempty"`
	GatewayPageURL string         `json:"gateway_page_url,omitempty"`
	Raw            map[string]any `json:"raw,omitempty"`
}

func (r *InitiationResult) Succeeded() bool { return r.Status == gatewaySuccess }

// ValidationResult is the authoritative transaction status confirmed by a
// direct call to the gateway's validator API.
type ValidationResult struct {
	Status         string          `json:"status"`
	TranID         string          `json:"tran_id"`
	ValID          string          `json:"val_id"`
	BankTranID     string          `json:"bank_tran_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	AmountMismatch bool            `json:"amount_mismatch"`
	Raw            map[string]any  `json:"raw,omitempty"`
}

// Valid reports whether the gateway confirmed the transaction with a
// matching amount. VALIDATED means a replayed validator lookup of an
// already-validated transaction and counts the same.
func (r *ValidationResult) Valid() bool {
	return (r.Status == "VALID" || r.Status == "VALIDATED") && !r.AmountMismatch
}

// RefundRequest is a caller-side refund instruction. BankTranID is the
// gateway's bank reference for the parent transaction.
type RefundRequest struct {
	RefundID   string          `json:"refund_id"`
	BankTranID string          `json:"bank_tran_id"`
	Amount     decimal.Decimal `json:"refund_amount"`
	Remarks    string          `json:"refund_remarks"`
}

type RefundResult struct {
	Status    string         `json:"status"`
	RefundRef string         `json:"refund_ref_id,omitempty"`
	Reason    string         `json:"errorReason,omitempty"`
	Raw       map[string]any `json:"raw,omitempty"`
}

func (r *RefundResult) Succeeded() bool { return r.Status == gatewaySuccess }
