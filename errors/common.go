package errors

import "fmt"

// Sentinels for the payment error taxonomy. Callers match identity with
// errors.Is and retryability with KindOf: only Unavailable is safe to retry.
var (
	ErrValidation             = E(Invalid, "validation failed", nil)
	ErrGatewayUnavailable     = E(Unavailable, "gateway unavailable", nil)
	ErrMalformedNotification  = E(Invalid, "malformed notification", nil)
	ErrUntrustedNotification  = E(Untrusted, "untrusted notification", nil)
	ErrUnknownTransaction     = E(NotFound, "unknown transaction", nil)
	ErrDuplicateTransaction   = E(Conflict, "transaction already exists", nil)
	ErrInvalidStateTransition = E(Conflict, "invalid state transition", nil)
	ErrAmountMismatch         = E(Invalid, "amount mismatch", nil)
	ErrRefundExceedsBalance   = E(Invalid, "refund exceeds refundable balance", nil)
	ErrRefundNotFound         = E(NotFound, "unknown refund", nil)
)

func ValidationErr(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func EmptyParamErr(field string) error {
	ve := ValidationErrs()
	ve.Add(field, "cannot be empty")
	return ValidationErr(ve.Err())
}

func GatewayUnavailableErr(err error) error {
	return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
}

func MalformedNotificationErr(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedNotification, err)
}

func UntrustedNotificationErr(tranID string) error {
	return fmt.Errorf("%w: tran_id %s", ErrUntrustedNotification, tranID)
}

func UnknownTransactionErr(tranID string) error {
	return fmt.Errorf("%w: %s", ErrUnknownTransaction, tranID)
}

func DuplicateTransactionErr(tranID string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tranID)
}

func InvalidStateTransitionErr(tranID, from, to string) error {
	return fmt.Errorf("%w: %s cannot move %s -> %s", ErrInvalidStateTransition, tranID, from, to)
}

func AmountMismatchErr(tranID, want, got string) error {
	return fmt.Errorf("%w: %s expected %s, gateway confirmed %s", ErrAmountMismatch, tranID, want, got)
}

func RefundExceedsBalanceErr(tranID, remaining string) error {
	return fmt.Errorf("%w: %s has %s refundable", ErrRefundExceedsBalance, tranID, remaining)
}
