// Package signature checks the integrity hash SSLCommerz attaches to IPN
// payloads. A passing check only proves the payload was not modified in
// transit; the authoritative status still comes from the validator API.
package signature

import (
	// Go Internal Packages
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// Verifier recomputes verify_sign for inbound payloads using the store's
// shared secret.
type Verifier struct {
	storePassword string
}

func NewVerifier(storePassword string) *Verifier {
	return &Verifier{storePassword: storePassword}
}

// Verify recomputes the payload digest and compares it to verify_sign.
// The gateway varies the signed field set by payment method, so the
// comma-separated verify_key list in the payload dictates exactly which
// fields participate; the MD5 of the store password joins them under the
// store_passwd key. Keys are sorted, joined k=v with &, and MD5-hexed.
//
// An unverifiable payload (missing or empty hash fields, fields named by
// verify_key but absent) returns false, never an error: untrusted and
// forged payloads are handled identically upstream.
func (v *Verifier) Verify(payload map[string]string) bool {
	verifySign := payload["verify_sign"]
	verifyKey := payload["verify_key"]
	if verifySign == "" || verifyKey == "" {
		return false
	}

	fields := map[string]string{
		"store_passwd": md5hex(v.storePassword),
	}
	for _, key := range strings.Split(verifyKey, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value, ok := payload[key]
		if !ok {
			return false
		}
		fields[key] = value
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + fields[k]
	}

	expected := md5hex(strings.Join(pairs, "&"))
	return strings.EqualFold(expected, verifySign)
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Sign computes the digest the gateway would attach for the given payload
// fields. Exported for tests and sandbox tooling.
func Sign(fields map[string]string, storePassword string) string {
	signed := map[string]string{
		"store_passwd": md5hex(storePassword),
	}
	for k, v := range fields {
		signed[k] = v
	}

	keys := make([]string, 0, len(signed))
	for k := range signed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + signed[k]
	}
	return md5hex(strings.Join(pairs, "&"))
}
