package signature

import (
	// Go Internal Packages
	"strings"
	"testing"

	// External Packages
	"github.com/stretchr/testify/require"
)

const testPassword = "qwerty_secret"

func signedPayload(t *testing.T, fields map[string]string) map[string]string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}

	payload := make(map[string]string, len(fields)+2)
	for k, v := range fields {
		payload[k] = v
	}
	payload["verify_key"] = strings.Join(keys, ",")
	payload["verify_sign"] = Sign(fields, testPassword)
	return payload
}

func TestVerifier_Verify(t *testing.T) {
	base := map[string]string{
		"tran_id":  "TXN_20250101_AB12CD34",
		"val_id":   "2501011234567890",
		"amount":   "1000.00",
		"currency": "BDT",
		"status":   "VALID",
	}

	var tests = []struct {
		name     string
		payload  func() map[string]string
		expected bool
	}{
		{
			name:     "genuine payload",
			payload:  func() map[string]string { return signedPayload(t, base) },
			expected: true,
		},
		{
			name: "uppercase sign accepted",
			payload: func() map[string]string {
				p := signedPayload(t, base)
				p["verify_sign"] = strings.ToUpper(p["verify_sign"])
				return p
			},
			expected: true,
		},
		{
			name: "tampered amount",
			payload: func() map[string]string {
				p := signedPayload(t, base)
				p["amount"] = "9000.00"
				return p
			},
			expected: false,
		},
		{
			name: "missing verify_sign",
			payload: func() map[string]string {
				p := signedPayload(t, base)
				delete(p, "verify_sign")
				return p
			},
			expected: false,
		},
		{
			name: "missing verify_key",
			payload: func() map[string]string {
				p := signedPayload(t, base)
				p["verify_key"] = ""
				return p
			},
			expected: false,
		},
		{
			name: "verify_key names absent field",
			payload: func() map[string]string {
				p := signedPayload(t, base)
				p["verify_key"] += ",bank_tran_id"
				return p
			},
			expected: false,
		},
		{
			name: "unsigned extra fields ignored",
			payload: func() map[string]string {
				p := signedPayload(t, base)
				p["card_type"] = "VISA"
				return p
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := NewVerifier(testPassword)
			require.Equal(t, tt.expected, v.Verify(tt.payload()))
		})
	}
}

func TestVerifier_WrongSecret(t *testing.T) {
	payload := signedPayload(t, map[string]string{
		"tran_id": "T1",
		"amount":  "10.00",
		"status":  "VALID",
	})

	require.True(t, NewVerifier(testPassword).Verify(payload))
	require.False(t, NewVerifier("other_secret").Verify(payload))
}

func TestVerifier_FieldSubsetFollowsVerifyKey(t *testing.T) {
	fields := map[string]string{
		"tran_id": "T1",
		"amount":  "10.00",
	}
	payload := signedPayload(t, fields)

	// Field present in the payload but not named by verify_key must not
	// participate in the digest.
	payload["status"] = "VALID"
	require.True(t, NewVerifier(testPassword).Verify(payload))

	// Widening verify_key to cover it invalidates the old sign.
	payload["verify_key"] = "tran_id,amount,status"
	require.False(t, NewVerifier(testPassword).Verify(payload))
}
