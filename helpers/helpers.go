package helpers

import (
	// Go Internal Packages
	"net/url"
)

// credentialFields are form/payload keys whose values must never reach a
// log line.
var credentialFields = map[string]bool{
	"store_passwd":     true,
	"store_password":   true,
	"verify_sign":      true,
	"verify_sign_sha2": true,
}

// FlattenForm collapses parsed form values into the flat string-keyed
// mapping the IPN processor consumes. Repeated keys keep the first value,
// matching how the gateway sends its callbacks.
func FlattenForm(values url.Values) map[string]string {
	flat := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			flat[key] = vals[0]
		}
	}
	return flat
}

// Redact copies form values into a loggable map with credential fields
// masked.
func Redact(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for key, vals := range values {
		if credentialFields[key] {
			out[key] = "[REDACTED]"
			continue
		}
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}
	return out
}
