package ipn

import (
	// Go Internal Packages
	"context"

	// Local Packages
	models "sslpay/models"

	// External Packages
	"github.com/shopspring/decimal"
)

// TransactionStore is the slice of the repository the processor mutates.
type TransactionStore interface {
	Get(ctx context.Context, tranID string) (*models.Transaction, error)
	MarkValidated(ctx context.Context, tranID string, gatewayAmount decimal.Decimal, valID, bankTranID string, ipn map[string]string) (*models.Transaction, bool, error)
	MarkFailed(ctx context.Context, tranID, reason string, ipn map[string]string) (*models.Transaction, bool, error)
	MarkCancelled(ctx context.Context, tranID, reason string, ipn map[string]string) (*models.Transaction, bool, error)
	RecordValidationAttempt(ctx context.Context, tranID string) error
}

// GatewayClient performs the authoritative server-to-server check.
type GatewayClient interface {
	ValidateTransaction(ctx context.Context, valID string, expectedAmount decimal.Decimal) (*models.ValidationResult, error)
}

// Verifier checks the integrity hash of an inbound payload.
type Verifier interface {
	Verify(payload map[string]string) bool
}

// DeadLetter receives notifications rejected before reconciliation.
type DeadLetter interface {
	Send(ctx context.Context, rejected models.RejectedNotification)
}
