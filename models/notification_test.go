package models

import (
	// Go Internal Packages
	"testing"

	// Local Packages
	sslerrors "sslpay/errors"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func ipnPayload() map[string]string {
	return map[string]string{
		"tran_id":      "T1",
		"val_id":       "V1",
		"amount":       "1000.00",
		"currency":     "BDT",
		"status":       "VALID",
		"bank_tran_id": "BANK1",
		"verify_sign":  "abc",
		"verify_key":   "amount,status,tran_id,val_id",
		"card_type":    "VISA",
	}
}

func TestParseNotification(t *testing.T) {
	t.Parallel()

	t.Run("keeps every raw field", func(t *testing.T) {
		t.Parallel()
		n, err := ParseNotification(ipnPayload())
		require.NoError(t, err)
		require.Equal(t, "T1", n.TranID)
		require.True(t, n.Amount.Equal(decimal.RequireFromString("1000.00")))
		require.Equal(t, "VISA", n.Raw["card_type"])
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		t.Parallel()
		for _, field := range []string{"tran_id", "val_id", "amount", "status", "verify_sign", "verify_key"} {
			payload := ipnPayload()
			delete(payload, field)
			_, err := ParseNotification(payload)
			require.ErrorIs(t, err, sslerrors.ErrMalformedNotification, field)
		}
	})

	t.Run("rejects non-decimal amount", func(t *testing.T) {
		t.Parallel()
		payload := ipnPayload()
		payload["amount"] = "one thousand"
		_, err := ParseNotification(payload)
		require.ErrorIs(t, err, sslerrors.ErrMalformedNotification)
	})
}

func TestAmountsMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"exact", "1000.00", "1000.00", true},
		{"within one poisha", "1000.00", "1000.01", true},
		{"beyond tolerance", "1000.00", "1000.02", false},
		{"never float-fuzzy", "0.1", "0.3", false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := AmountsMatch(decimal.RequireFromString(tc.a), decimal.RequireFromString(tc.b))
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRemainingRefundable(t *testing.T) {
	t.Parallel()

	tx := &Transaction{
		Amount:        decimal.RequireFromString("1000.00"),
		RefundedTotal: decimal.RequireFromString("600.00"),
	}
	require.True(t, tx.RemainingRefundable().Equal(decimal.RequireFromString("400.00")))
}

func TestSuccessfulRefundTotal(t *testing.T) {
	t.Parallel()

	original := decimal.RequireFromString("1000.00")
	refunds := []RefundTransaction{
		{RefundID: "R1", Amount: decimal.RequireFromString("600.00"), Status: RefundRequested},
		{RefundID: "R2", Amount: decimal.RequireFromString("400.00"), Status: RefundSuccess},
	}

	// A reservation whose gateway outcome is still unknown must not push
	// the transaction into REFUNDED.
	require.False(t, SuccessfulRefundTotal(refunds).Equal(original))

	refunds[0].Status = RefundFailed
	require.False(t, SuccessfulRefundTotal(refunds).Equal(original))

	refunds[0].Status = RefundSuccess
	require.True(t, SuccessfulRefundTotal(refunds).Equal(original))
}

func TestGenerateTranID(t *testing.T) {
	t.Parallel()

	id := GenerateTranID("")
	require.Regexp(t, `^TXN_\d{14}_[0-9A-F]{8}$`, id)
	require.NotEqual(t, id, GenerateTranID(""))
	require.Regexp(t, `^REF_`, GenerateRefundID())
}
