package mongodb

import (
	// Go Internal Packages
	"context"
	"errors"
	"fmt"
	"time"

	// Local Packages
	sslerrors "sslpay/errors"
	models "sslpay/models"

	// External Packages
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	transactionsCollection = "transactions"
	refundsCollection      = "refunds"

	// Upper bound on optimistic retries of the refund reservation CAS.
	refundCASAttempts = 5
)

// TransactionRepository is the durable record of payment attempts and
// their refunds. State transitions are compare-and-swap updates filtered
// on the expected current state, so two concurrent writers for one
// tran_id serialize: the loser matches zero documents and resolves to an
// idempotent no-op or a state error instead of corrupting the record.
type TransactionRepository struct {
	client   *mongo.Client
	database string
}

func NewTransactionRepository(client *mongo.Client, database string) *TransactionRepository {
	return &TransactionRepository{client: client, database: database}
}

type transactionDoc struct {
	TranID     string `bson:"_id"`
	ValID      string `bson:"val_id,omitempty"`
	BankTranID string `bson:"bank_tran_id,omitempty"`
	SessionKey string `bson:"session_key,omitempty"`

	Amount        primitive.Decimal128 `bson:"amount"`
	Currency      string               `bson:"currency"`
	Status        string               `bson:"status"`
	RefundedTotal primitive.Decimal128 `bson:"refunded_total"`
	RefundVersion int64                `bson:"refund_version"`

	CustomerName    string `bson:"customer_name"`
	CustomerEmail   string `bson:"customer_email"`
	CustomerPhone   string `bson:"customer_phone"`
	CustomerAddress string `bson:"customer_address,omitempty"`

	ProductName     string `bson:"product_name,omitempty"`
	ProductCategory string `bson:"product_category,omitempty"`

	Metadata        map[string]string `bson:"metadata,omitempty"`
	GatewayResponse map[string]any    `bson:"gateway_response,omitempty"`
	IPNData         map[string]string `bson:"ipn_data,omitempty"`
	FailureReason   string            `bson:"failure_reason,omitempty"`

	ValidationAttempts int        `bson:"validation_attempts"`
	LastValidationAt   *time.Time `bson:"last_validation_at,omitempty"`

	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
}

type refundDoc struct {
	RefundID  string               `bson:"_id"`
	TranID    string               `bson:"tran_id"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Reason    string               `bson:"reason"`
	Status    string               `bson:"status"`
	RefundRef string               `bson:"refund_ref,omitempty"`

	GatewayResponse map[string]any `bson:"gateway_response,omitempty"`

	CreatedAt   time.Time  `bson:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty"`
}

func (r *TransactionRepository) transactions() *mongo.Collection {
	return r.client.Database(r.database).Collection(transactionsCollection)
}

func (r *TransactionRepository) refunds() *mongo.Collection {
	return r.client.Database(r.database).Collection(refundsCollection)
}

// EnsureIndexes creates the query indexes; call once at startup.
func (r *TransactionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.transactions().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = r.refunds().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tran_id", Value: 1}},
	})
	return err
}

// Create inserts a new PENDING transaction. The tran_id is the document
// id, so a duplicate insert fails on the unique key.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	now := time.Now().UTC()
	doc := transactionDoc{
		TranID:          tx.TranID,
		Amount:          dec128(tx.Amount),
		Currency:        tx.Currency,
		Status:          string(models.StatusPending),
		RefundedTotal:   dec128(decimal.Zero),
		CustomerName:    tx.CustomerName,
		CustomerEmail:   tx.CustomerEmail,
		CustomerPhone:   tx.CustomerPhone,
		CustomerAddress: tx.CustomerAddress,
		ProductName:     tx.ProductName,
		ProductCategory: tx.ProductCategory,
		Metadata:        tx.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := r.transactions().InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, sslerrors.DuplicateTransactionErr(tx.TranID)
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// Get fetches a transaction by its client-generated identifier.
func (r *TransactionRepository) Get(ctx context.Context, tranID string) (*models.Transaction, error) {
	doc, err := r.getDoc(ctx, tranID)
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *TransactionRepository) getDoc(ctx context.Context, tranID string) (*transactionDoc, error) {
	var doc transactionDoc
	err := r.transactions().FindOne(ctx, bson.M{"_id": tranID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sslerrors.UnknownTransactionErr(tranID)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AttachSession stores the gateway session key and raw initiation reply
// on a freshly created transaction.
func (r *TransactionRepository) AttachSession(ctx context.Context, tranID, sessionKey string, raw map[string]any) error {
	_, err := r.transactions().UpdateByID(ctx, tranID, bson.M{"$set": bson.M{
		"session_key":      sessionKey,
		"gateway_response": raw,
		"updated_at":       time.Now().UTC(),
	}})
	return err
}

// RecordValidationAttempt bumps the validation bookkeeping fields.
func (r *TransactionRepository) RecordValidationAttempt(ctx context.Context, tranID string) error {
	now := time.Now().UTC()
	_, err := r.transactions().UpdateByID(ctx, tranID, bson.M{
		"$inc": bson.M{"validation_attempts": 1},
		"$set": bson.M{"last_validation_at": now, "updated_at": now},
	})
	return err
}

// MarkValidated transitions PENDING -> VALID after the gateway confirmed
// the amount. The bool result reports whether this call applied the
// transition: false means the transaction was already VALID and the call
// was an idempotent no-op, which is how duplicate notifications stay
// harmless. An amount outside tolerance never reaches VALID.
func (r *TransactionRepository) MarkValidated(ctx context.Context, tranID string, gatewayAmount decimal.Decimal, valID, bankTranID string, ipn map[string]string) (*models.Transaction, bool, error) {
	doc, err := r.getDoc(ctx, tranID)
	if err != nil {
		return nil, false, err
	}

	if !models.AmountsMatch(fromDec128(doc.Amount), gatewayAmount) {
		return nil, false, sslerrors.AmountMismatchErr(tranID, fromDec128(doc.Amount).String(), gatewayAmount.String())
	}

	now := time.Now().UTC()
	set := bson.M{
		"status":       string(models.StatusValid),
		"val_id":       valID,
		"bank_tran_id": bankTranID,
		"completed_at": now,
		"updated_at":   now,
	}
	if ipn != nil {
		set["ipn_data"] = ipn
	}

	res, err := r.transactions().UpdateOne(ctx,
		bson.M{"_id": tranID, "status": string(models.StatusPending)},
		bson.M{"$set": set})
	if err != nil {
		return nil, false, err
	}

	if res.ModifiedCount == 0 {
		return r.resolveLostTransition(ctx, tranID, models.StatusValid)
	}
	tx, err := r.Get(ctx, tranID)
	return tx, true, err
}

// MarkFailed transitions PENDING -> FAILED.
func (r *TransactionRepository) MarkFailed(ctx context.Context, tranID, reason string, ipn map[string]string) (*models.Transaction, bool, error) {
	return r.markTerminal(ctx, tranID, models.StatusFailed, reason, ipn)
}

// MarkCancelled transitions PENDING -> CANCELLED.
func (r *TransactionRepository) MarkCancelled(ctx context.Context, tranID, reason string, ipn map[string]string) (*models.Transaction, bool, error) {
	return r.markTerminal(ctx, tranID, models.StatusCancelled, reason, ipn)
}

func (r *TransactionRepository) markTerminal(ctx context.Context, tranID string, target models.TransactionStatus, reason string, ipn map[string]string) (*models.Transaction, bool, error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":         string(target),
		"failure_reason": reason,
		"updated_at":     now,
	}
	if ipn != nil {
		set["ipn_data"] = ipn
	}

	res, err := r.transactions().UpdateOne(ctx,
		bson.M{"_id": tranID, "status": string(models.StatusPending)},
		bson.M{"$set": set})
	if err != nil {
		return nil, false, err
	}

	if res.ModifiedCount == 0 {
		return r.resolveLostTransition(ctx, tranID, target)
	}
	tx, err := r.Get(ctx, tranID)
	return tx, true, err
}

// resolveLostTransition decides what a zero-match CAS means: the record
// is already in the target state (duplicate delivery, no-op) or a
// genuinely illegal transition.
func (r *TransactionRepository) resolveLostTransition(ctx context.Context, tranID string, target models.TransactionStatus) (*models.Transaction, bool, error) {
	tx, err := r.Get(ctx, tranID)
	if err != nil {
		return nil, false, err
	}
	if tx.Status == target {
		return tx, false, nil
	}
	return nil, false, sslerrors.InvalidStateTransitionErr(tranID, string(tx.Status), string(target))
}

// RecordRefund reserves refundable balance on the parent and creates a
// REQUESTED refund. The reservation is a version-guarded CAS, so the sum
// of reserved and successful refunds can never exceed the original amount
// no matter how calls interleave. Only a VALID parent accepts refunds.
func (r *TransactionRepository) RecordRefund(ctx context.Context, tranID string, amount decimal.Decimal, reason string) (*models.RefundTransaction, error) {
	if !amount.IsPositive() {
		return nil, sslerrors.EmptyParamErr("refund_amount")
	}

	for attempt := 0; attempt < refundCASAttempts; attempt++ {
		doc, err := r.getDoc(ctx, tranID)
		if err != nil {
			return nil, err
		}
		if doc.Status != string(models.StatusValid) {
			return nil, sslerrors.InvalidStateTransitionErr(tranID, doc.Status, "refund")
		}

		total := fromDec128(doc.RefundedTotal)
		remaining := fromDec128(doc.Amount).Sub(total)
		if amount.GreaterThan(remaining) {
			return nil, sslerrors.RefundExceedsBalanceErr(tranID, remaining.String())
		}

		res, err := r.transactions().UpdateOne(ctx,
			bson.M{"_id": tranID, "status": string(models.StatusValid), "refund_version": doc.RefundVersion},
			bson.M{
				"$set": bson.M{"refunded_total": dec128(total.Add(amount)), "updated_at": time.Now().UTC()},
				"$inc": bson.M{"refund_version": 1},
			})
		if err != nil {
			return nil, err
		}
		if res.ModifiedCount == 0 {
			// Lost the reservation race; reload and retry.
			continue
		}

		refund := refundDoc{
			RefundID:  models.GenerateRefundID(),
			TranID:    tranID,
			Amount:    dec128(amount),
			Reason:    reason,
			Status:    string(models.RefundRequested),
			CreatedAt: time.Now().UTC(),
		}
		if _, err = r.refunds().InsertOne(ctx, refund); err != nil {
			r.releaseReservation(ctx, tranID, amount)
			return nil, err
		}
		return refund.toModel(), nil
	}

	return nil, sslerrors.E(sslerrors.Internal, fmt.Sprintf("refund reservation contention on %s", tranID), nil)
}

// ResolveRefund finalizes a REQUESTED refund with the gateway outcome. A
// failed refund releases its reservation; a successful one that consumes
// the full original amount moves the parent to REFUNDED.
func (r *TransactionRepository) ResolveRefund(ctx context.Context, refundID string, success bool, refundRef string, raw map[string]any) (*models.RefundTransaction, error) {
	target := models.RefundFailed
	if success {
		target = models.RefundSuccess
	}

	now := time.Now().UTC()
	after := options.After
	var doc refundDoc
	err := r.refunds().FindOneAndUpdate(ctx,
		bson.M{"_id": refundID, "status": string(models.RefundRequested)},
		bson.M{"$set": bson.M{
			"status":           string(target),
			"refund_ref":       refundRef,
			"gateway_response": raw,
			"processed_at":     now,
		}},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	).Decode(&doc)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.explainRefundMiss(ctx, refundID)
	}
	if err != nil {
		return nil, err
	}

	amount := fromDec128(doc.Amount)
	if !success {
		r.releaseReservation(ctx, doc.TranID, amount)
	} else if err = r.markFullyRefunded(ctx, doc.TranID); err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *TransactionRepository) explainRefundMiss(ctx context.Context, refundID string) error {
	var doc refundDoc
	err := r.refunds().FindOne(ctx, bson.M{"_id": refundID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", sslerrors.ErrRefundNotFound, refundID)
	}
	if err != nil {
		return err
	}
	return sslerrors.InvalidStateTransitionErr(refundID, doc.Status, "resolved")
}

func (r *TransactionRepository) releaseReservation(ctx context.Context, tranID string, amount decimal.Decimal) {
	for attempt := 0; attempt < refundCASAttempts; attempt++ {
		doc, err := r.getDoc(ctx, tranID)
		if err != nil {
			return
		}
		total := fromDec128(doc.RefundedTotal).Sub(amount)
		if total.IsNegative() {
			total = decimal.Zero
		}
		res, err := r.transactions().UpdateOne(ctx,
			bson.M{"_id": tranID, "refund_version": doc.RefundVersion},
			bson.M{
				"$set": bson.M{"refunded_total": dec128(total), "updated_at": time.Now().UTC()},
				"$inc": bson.M{"refund_version": 1},
			})
		if err == nil && res.ModifiedCount == 1 {
			return
		}
	}
}

func (r *TransactionRepository) markFullyRefunded(ctx context.Context, tranID string) error {
	doc, err := r.getDoc(ctx, tranID)
	if err != nil {
		return err
	}
	// refunded_total includes REQUESTED reservations, which may still fail
	// and be released; only gateway-confirmed refunds count here.
	refunds, err := r.ListRefunds(ctx, tranID)
	if err != nil {
		return err
	}
	if !models.SuccessfulRefundTotal(refunds).Equal(fromDec128(doc.Amount)) {
		return nil
	}
	_, err = r.transactions().UpdateOne(ctx,
		bson.M{"_id": tranID, "status": string(models.StatusValid)},
		bson.M{"$set": bson.M{"status": string(models.StatusRefunded), "updated_at": time.Now().UTC()}})
	return err
}

// ListRefunds returns the refunds of a transaction, newest first.
func (r *TransactionRepository) ListRefunds(ctx context.Context, tranID string) ([]models.RefundTransaction, error) {
	cur, err := r.refunds().Find(ctx, bson.M{"tran_id": tranID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()

	var out []models.RefundTransaction
	for cur.Next(ctx) {
		var doc refundDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, *doc.toModel())
	}
	return out, cur.Err()
}

// ListFilter narrows the admin transaction listing.
type ListFilter struct {
	Status models.TransactionStatus
	Limit  int64
	Offset int64
}

// List returns transactions newest first, optionally filtered by status.
func (r *TransactionRepository) List(ctx context.Context, filter ListFilter) ([]models.Transaction, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	cur, err := r.transactions().Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(filter.Offset).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()

	var out []models.Transaction
	for cur.Next(ctx) {
		var doc transactionDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, *doc.toModel())
	}
	return out, cur.Err()
}

func (d *transactionDoc) toModel() *models.Transaction {
	return &models.Transaction{
		TranID:             d.TranID,
		ValID:              d.ValID,
		BankTranID:         d.BankTranID,
		SessionKey:         d.SessionKey,
		Amount:             fromDec128(d.Amount),
		Currency:           d.Currency,
		Status:             models.TransactionStatus(d.Status),
		RefundedTotal:      fromDec128(d.RefundedTotal),
		CustomerName:       d.CustomerName,
		CustomerEmail:      d.CustomerEmail,
		CustomerPhone:      d.CustomerPhone,
		CustomerAddress:    d.CustomerAddress,
		ProductName:        d.ProductName,
		ProductCategory:    d.ProductCategory,
		Metadata:           d.Metadata,
		GatewayResponse:    d.GatewayResponse,
		IPNData:            d.IPNData,
		FailureReason:      d.FailureReason,
		ValidationAttempts: d.ValidationAttempts,
		LastValidationAt:   d.LastValidationAt,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		CompletedAt:        d.CompletedAt,
	}
}

func (d *refundDoc) toModel() *models.RefundTransaction {
	return &models.RefundTransaction{
		RefundID:        d.RefundID,
		TranID:          d.TranID,
		Amount:          fromDec128(d.Amount),
		Reason:          d.Reason,
		Status:          models.RefundStatus(d.Status),
		RefundRef:       d.RefundRef,
		GatewayResponse: d.GatewayResponse,
		CreatedAt:       d.CreatedAt,
		ProcessedAt:     d.ProcessedAt,
	}
}

func dec128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}
	}
	return v
}

func fromDec128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
