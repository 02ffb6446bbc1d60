package models

import (
	// Local Packages
	errors "sslpay/errors"

	// External Packages
	"github.com/shopspring/decimal"
)

// Notification is a parsed IPN payload. Raw keeps every field the gateway
// sent, including ones this service does not type; they stay opaque
// pass-through data.
type Notification struct {
	TranID     string
	ValID      string
	Status     string
	Currency   string
	Amount     decimal.Decimal
	BankTranID string
	VerifySign string
	VerifyKey  string
	Raw        map[string]string
}

// RejectedNotification is what the dead-letter queue keeps for operator
// inspection when an IPN fails parsing, hash verification, or lookup.
type RejectedNotification struct {
	TranID  string            `json:"tran_id"`
	Reason  string            `json:"reason"`
	Payload map[string]string `json:"payload"`
}

// ParseNotification validates the minimum field set of an inbound IPN.
// Anything short of that set is malformed and must be rejected before the
// hash check even runs.
func ParseNotification(payload map[string]string) (*Notification, error) {
	ve := errors.ValidationErrs()

	required := []string{"tran_id", "val_id", "amount", "status", "verify_sign", "verify_key"}
	for _, field := range required {
		if payload[field] == "" {
			ve.Add(field, "cannot be empty")
		}
	}
	if err := ve.Err(); err != nil {
		return nil, errors.MalformedNotificationErr(err)
	}

	amount, err := decimal.NewFromString(payload["amount"])
	if err != nil {
		ve.Add("amount", "not a decimal value")
		return nil, errors.MalformedNotificationErr(ve.Err())
	}

	raw := make(map[string]string, len(payload))
	for k, v := range payload {
		raw[k] = v
	}

	return &Notification{
		TranID:     payload["tran_id"],
		ValID:      payload["val_id"],
		Status:     payload["status"],
		Currency:   payload["currency"],
		Amount:     amount,
		BankTranID: payload["bank_tran_id"],
		VerifySign: payload["verify_sign"],
		VerifyKey:  payload["verify_key"],
		Raw:        raw,
	}, nil
}
