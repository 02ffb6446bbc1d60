// Package ipn reconciles asynchronous gateway notifications against the
// transaction store. The payload is attacker-reachable, so nothing in it
// is trusted until the hash checks out and the gateway itself confirms
// the status over a direct call.
package ipn

import (
	// Go Internal Packages
	"context"
	"fmt"
	"time"

	// Local Packages
	errors "sslpay/errors"
	events "sslpay/events"
	models "sslpay/models"

	// External Packages
	"go.uber.org/zap"
)

type Processor struct {
	store        TransactionStore
	gateway      GatewayClient
	verifier     Verifier
	bus          events.Publisher
	dlq          DeadLetter
	autoValidate bool
	logger       *zap.Logger
}

// NewProcessor wires the notification workflow. autoValidate should stay
// on outside of local development: with it off, the payload's own status
// claim is applied without the authoritative gateway check.
func NewProcessor(store TransactionStore, gateway GatewayClient, verifier Verifier, bus events.Publisher, dlq DeadLetter, autoValidate bool, logger *zap.Logger) *Processor {
	if !autoValidate {
		logger.Warn("auto-validation disabled: notifications will be trusted after hash check only")
	}
	return &Processor{
		store:        store,
		gateway:      gateway,
		verifier:     verifier,
		bus:          bus,
		dlq:          dlq,
		autoValidate: autoValidate,
		logger:       logger,
	}
}

// Result reports what one notification did to the store.
type Result struct {
	TranID string
	Status models.TransactionStatus
	// Applied is false when the notification was a duplicate of an
	// already-applied transition and was acknowledged as a no-op.
	Applied bool
}

// Process runs one notification through the pipeline: parse, hash-check,
// look up, authoritative-check, reconcile, announce. A rejected
// notification never mutates the store or emits an outcome event; the
// gateway's own POST retry is the only retry mechanism.
func (p *Processor) Process(ctx context.Context, payload map[string]string) (*Result, error) {
	n, err := models.ParseNotification(payload)
	if err != nil {
		p.reject(ctx, payload["tran_id"], payload, err)
		return nil, err
	}

	p.bus.Publish(ctx, events.IPNReceived{
		TranID:  n.TranID,
		Status:  n.Status,
		Payload: n.Raw,
		At:      time.Now().UTC(),
	})

	if !p.verifier.Verify(payload) {
		err = errors.UntrustedNotificationErr(n.TranID)
		p.reject(ctx, n.TranID, payload, err)
		return nil, err
	}

	tx, err := p.store.Get(ctx, n.TranID)
	if err != nil {
		// Only a verified-but-unknown tran_id is a rejection worth keeping
		// for forensics. A store outage must surface as retriable so the
		// gateway re-delivers once the store is back.
		if !errors.Is(err, errors.ErrUnknownTransaction) {
			return nil, errors.E(errors.Unavailable, "transaction lookup failed", err)
		}
		p.reject(ctx, n.TranID, payload, err)
		return nil, err
	}

	target, reason, err := p.authoritativeStatus(ctx, n, tx)
	if err != nil {
		return nil, err
	}

	return p.reconcile(ctx, n, target, reason)
}

// authoritativeStatus decides which transition to apply. The payload's
// claimed status is only a hint; with auto-validation on, the validator
// API's answer wins, which defeats replays of stale once-valid payloads.
func (p *Processor) authoritativeStatus(ctx context.Context, n *models.Notification, tx *models.Transaction) (models.TransactionStatus, string, error) {
	if !p.autoValidate {
		return payloadStatus(n.Status), fmt.Sprintf("gateway reported %s (unvalidated)", n.Status), nil
	}

	if err := p.store.RecordValidationAttempt(ctx, n.TranID); err != nil {
		p.logger.Warn("validation bookkeeping failed", zap.String("tran_id", n.TranID), zap.Error(err))
	}

	vr, err := p.gateway.ValidateTransaction(ctx, n.ValID, tx.Amount)
	if err != nil {
		p.logger.Error("authoritative validation unavailable",
			zap.String("tran_id", n.TranID), zap.Error(err))
		return "", "", err
	}

	if vr.Valid() {
		return models.StatusValid, "", nil
	}
	if vr.AmountMismatch {
		return "", "", errors.AmountMismatchErr(n.TranID, tx.Amount.String(), vr.Amount.String())
	}
	return payloadStatus(vr.Status), fmt.Sprintf("validator reported %s", vr.Status), nil
}

func (p *Processor) reconcile(ctx context.Context, n *models.Notification, target models.TransactionStatus, reason string) (*Result, error) {
	var (
		tx      *models.Transaction
		applied bool
		err     error
	)

	switch target {
	case models.StatusValid:
		tx, applied, err = p.store.MarkValidated(ctx, n.TranID, n.Amount, n.ValID, n.BankTranID, n.Raw)
	case models.StatusCancelled:
		tx, applied, err = p.store.MarkCancelled(ctx, n.TranID, reason, n.Raw)
	default:
		tx, applied, err = p.store.MarkFailed(ctx, n.TranID, reason, n.Raw)
	}
	if err != nil {
		p.logger.Warn("notification not reconciled",
			zap.String("tran_id", n.TranID),
			zap.String("target", string(target)),
			zap.Error(err))
		return nil, err
	}

	if applied {
		p.announce(ctx, tx, n, reason)
	} else {
		p.logger.Info("duplicate notification acknowledged",
			zap.String("tran_id", n.TranID),
			zap.String("status", string(tx.Status)))
	}

	return &Result{TranID: tx.TranID, Status: tx.Status, Applied: applied}, nil
}

// announce emits the single outcome event for an applied transition.
func (p *Processor) announce(ctx context.Context, tx *models.Transaction, n *models.Notification, reason string) {
	now := time.Now().UTC()
	if tx.Status == models.StatusValid {
		p.bus.Publish(ctx, events.PaymentSuccessful{
			TranID:   tx.TranID,
			ValID:    tx.ValID,
			Amount:   tx.Amount,
			Currency: tx.Currency,
			Payload:  n.Raw,
			At:       now,
		})
		p.logger.Info("payment confirmed",
			zap.String("tran_id", tx.TranID),
			zap.String("amount", tx.Amount.String()))
		return
	}

	p.bus.Publish(ctx, events.PaymentFailed{
		TranID:  tx.TranID,
		Reason:  reason,
		Payload: n.Raw,
		At:      now,
	})
	p.logger.Info("payment not completed",
		zap.String("tran_id", tx.TranID),
		zap.String("status", string(tx.Status)),
		zap.String("reason", reason))
}

// ValidateStored runs the authoritative check for a transaction outside
// the IPN flow (the manual validation endpoint). It shares the reconcile
// path so manual and notification-driven transitions behave identically.
func (p *Processor) ValidateStored(ctx context.Context, tranID string) (*Result, error) {
	tx, err := p.store.Get(ctx, tranID)
	if err != nil {
		return nil, err
	}
	if tx.ValID == "" {
		return nil, errors.EmptyParamErr("val_id")
	}

	if err = p.store.RecordValidationAttempt(ctx, tranID); err != nil {
		p.logger.Warn("validation bookkeeping failed", zap.String("tran_id", tranID), zap.Error(err))
	}

	vr, err := p.gateway.ValidateTransaction(ctx, tx.ValID, tx.Amount)
	if err != nil {
		return nil, err
	}

	n := &models.Notification{
		TranID:     tranID,
		ValID:      tx.ValID,
		Status:     vr.Status,
		Amount:     vr.Amount,
		BankTranID: vr.BankTranID,
	}

	if vr.Valid() {
		return p.reconcile(ctx, n, models.StatusValid, "")
	}
	if vr.AmountMismatch {
		return nil, errors.AmountMismatchErr(tranID, tx.Amount.String(), vr.Amount.String())
	}
	return p.reconcile(ctx, n, payloadStatus(vr.Status), fmt.Sprintf("validator reported %s", vr.Status))
}

func (p *Processor) reject(ctx context.Context, tranID string, payload map[string]string, cause error) {
	p.logger.Warn("notification rejected",
		zap.String("tran_id", tranID),
		zap.Error(cause))
	p.dlq.Send(ctx, models.RejectedNotification{
		TranID:  tranID,
		Reason:  cause.Error(),
		Payload: payload,
	})
}

func payloadStatus(s string) models.TransactionStatus {
	switch s {
	case "VALID", "VALIDATED":
		return models.StatusValid
	case "CANCELLED":
		return models.StatusCancelled
	default:
		return models.StatusFailed
	}
}
