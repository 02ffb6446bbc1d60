// Package payments orchestrates the caller-side payment flow: opening
// gateway sessions, requesting refunds, and reading transaction state.
package payments

import (
	// Go Internal Packages
	"context"
	"time"

	// Local Packages
	errors "sslpay/errors"
	events "sslpay/events"
	models "sslpay/models"
	mongodb "sslpay/repositories/mongodb"

	// External Packages
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionStore is the repository slice this service needs.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	Get(ctx context.Context, tranID string) (*models.Transaction, error)
	AttachSession(ctx context.Context, tranID, sessionKey string, raw map[string]any) error
	RecordRefund(ctx context.Context, tranID string, amount decimal.Decimal, reason string) (*models.RefundTransaction, error)
	ResolveRefund(ctx context.Context, refundID string, success bool, refundRef string, raw map[string]any) (*models.RefundTransaction, error)
	ListRefunds(ctx context.Context, tranID string) ([]models.RefundTransaction, error)
	List(ctx context.Context, filter mongodb.ListFilter) ([]models.Transaction, error)
}

// GatewayClient is the outbound side of the flow.
type GatewayClient interface {
	InitiatePayment(ctx context.Context, req models.PaymentRequest) (*models.InitiationResult, error)
	ProcessRefund(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error)
}

type Service struct {
	store   TransactionStore
	gateway GatewayClient
	bus     events.Publisher
	logger  *zap.Logger
}

func NewService(store TransactionStore, gateway GatewayClient, bus events.Publisher, logger *zap.Logger) *Service {
	return &Service{store: store, gateway: gateway, bus: bus, logger: logger}
}

// Initiate records a PENDING transaction and opens a gateway session for
// it. Re-submitting a tran_id that is still PENDING with the same amount
// and currency re-initiates the session (gateway sessions expire), so a
// caller whose first attempt died on a timeout can retry with the same
// id; any other duplicate fails.
func (s *Service) Initiate(ctx context.Context, req models.PaymentRequest) (*models.InitiationResult, *models.Transaction, error) {
	tx, err := s.store.Create(ctx, &models.Transaction{
		TranID:          req.TranID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		ProductName:     req.ProductName,
		ProductCategory: req.ProductCategory,
		Metadata:        req.Metadata,
	})
	if err != nil {
		tx, err = s.retriablePending(ctx, req, err)
		if err != nil {
			return nil, nil, err
		}
	}

	result, err := s.gateway.InitiatePayment(ctx, req)
	if err != nil {
		s.logger.Error("payment initiation failed",
			zap.String("tran_id", req.TranID), zap.Error(err))
		return nil, tx, err
	}

	// A declined session is a normal outcome; the record stays PENDING
	// with the reply kept for audit either way.
	if err = s.store.AttachSession(ctx, req.TranID, result.SessionKey, result.Raw); err != nil {
		s.logger.Warn("could not persist gateway session",
			zap.String("tran_id", req.TranID), zap.Error(err))
	}

	tx, getErr := s.store.Get(ctx, req.TranID)
	if getErr != nil {
		return result, nil, getErr
	}
	return result, tx, nil
}

func (s *Service) retriablePending(ctx context.Context, req models.PaymentRequest, createErr error) (*models.Transaction, error) {
	if !errors.Is(createErr, errors.ErrDuplicateTransaction) {
		return nil, createErr
	}
	existing, err := s.store.Get(ctx, req.TranID)
	if err != nil {
		return nil, createErr
	}
	if existing.Status == models.StatusPending &&
		models.AmountsMatch(existing.Amount, req.Amount) &&
		existing.Currency == req.Currency {
		s.logger.Info("re-initiating pending transaction", zap.String("tran_id", req.TranID))
		return existing, nil
	}
	return nil, createErr
}

// Refund validates the refundable balance locally before any gateway
// round trip, reserves it, and resolves the refund with the gateway's
// answer. A transport failure leaves the refund REQUESTED: the outcome
// at the gateway is unknown and retrying a non-idempotent refund blindly
// could pay out twice, so resolution is left to the operator.
func (s *Service) Refund(ctx context.Context, tranID string, amount decimal.Decimal, reason string) (*models.RefundTransaction, error) {
	tx, err := s.store.Get(ctx, tranID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.StatusValid {
		return nil, errors.InvalidStateTransitionErr(tranID, string(tx.Status), "refund")
	}
	if tx.BankTranID == "" {
		return nil, errors.EmptyParamErr("bank_tran_id")
	}
	if amount.GreaterThan(tx.RemainingRefundable()) {
		return nil, errors.RefundExceedsBalanceErr(tranID, tx.RemainingRefundable().String())
	}

	refund, err := s.store.RecordRefund(ctx, tranID, amount, reason)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.ProcessRefund(ctx, models.RefundRequest{
		RefundID:   refund.RefundID,
		BankTranID: tx.BankTranID,
		Amount:     amount,
		Remarks:    reason,
	})
	if err != nil {
		s.logger.Error("refund outcome unknown, left REQUESTED",
			zap.String("tran_id", tranID),
			zap.String("refund_id", refund.RefundID),
			zap.Error(err))
		return refund, err
	}

	refund, rerr := s.store.ResolveRefund(ctx, refund.RefundID, result.Succeeded(), result.RefundRef, result.Raw)
	if rerr != nil {
		return nil, rerr
	}

	if result.Succeeded() {
		s.bus.Publish(ctx, events.RefundProcessed{
			TranID:   tranID,
			RefundID: refund.RefundID,
			Amount:   amount,
			At:       time.Now().UTC(),
		})
		s.logger.Info("refund processed",
			zap.String("tran_id", tranID),
			zap.String("refund_id", refund.RefundID),
			zap.String("amount", amount.String()))
	} else {
		s.logger.Warn("refund declined by gateway",
			zap.String("tran_id", tranID),
			zap.String("refund_id", refund.RefundID),
			zap.String("reason", result.Reason))
	}
	return refund, nil
}

// ResolveRefund is the operator path for a refund stuck REQUESTED after a
// transport failure: once the outcome is confirmed out-of-band (gateway
// dashboard, settlement report), this finalizes the record. A failed
// outcome releases the reserved balance so the caller can retry the
// refund; a successful one emits the same event the automatic path does.
func (s *Service) ResolveRefund(ctx context.Context, refundID string, success bool, refundRef string) (*models.RefundTransaction, error) {
	refund, err := s.store.ResolveRefund(ctx, refundID, success, refundRef, nil)
	if err != nil {
		return nil, err
	}

	if success {
		s.bus.Publish(ctx, events.RefundProcessed{
			TranID:   refund.TranID,
			RefundID: refund.RefundID,
			Amount:   refund.Amount,
			At:       time.Now().UTC(),
		})
	}
	s.logger.Info("refund resolved by operator",
		zap.String("tran_id", refund.TranID),
		zap.String("refund_id", refund.RefundID),
		zap.Bool("success", success))
	return refund, nil
}

// Status returns a transaction with its refunds.
func (s *Service) Status(ctx context.Context, tranID string) (*models.Transaction, []models.RefundTransaction, error) {
	tx, err := s.store.Get(ctx, tranID)
	if err != nil {
		return nil, nil, err
	}
	refunds, err := s.store.ListRefunds(ctx, tranID)
	if err != nil {
		return nil, nil, err
	}
	return tx, refunds, nil
}

// List returns transactions for the admin listing.
func (s *Service) List(ctx context.Context, filter mongodb.ListFilter) ([]models.Transaction, error) {
	return s.store.List(ctx, filter)
}
