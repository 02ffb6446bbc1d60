// Package server exposes the gateway plugin over HTTP: the form-encoded
// IPN listener the gateway POSTs to, and a small JSON API for initiating
// payments, refunds, and status reads.
package server

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	// Local Packages
	errors "sslpay/errors"
	helpers "sslpay/helpers"
	models "sslpay/models"
	mongodb "sslpay/repositories/mongodb"
	ipn "sslpay/services/ipn"

	// External Packages
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService is the caller-side slice of the payments service.
type PaymentService interface {
	Initiate(ctx context.Context, req models.PaymentRequest) (*models.InitiationResult, *models.Transaction, error)
	Refund(ctx context.Context, tranID string, amount decimal.Decimal, reason string) (*models.RefundTransaction, error)
	ResolveRefund(ctx context.Context, refundID string, success bool, refundRef string) (*models.RefundTransaction, error)
	Status(ctx context.Context, tranID string) (*models.Transaction, []models.RefundTransaction, error)
	List(ctx context.Context, filter mongodb.ListFilter) ([]models.Transaction, error)
}

// NotificationProcessor handles gateway-side callbacks.
type NotificationProcessor interface {
	Process(ctx context.Context, payload map[string]string) (*ipn.Result, error)
	ValidateStored(ctx context.Context, tranID string) (*ipn.Result, error)
}

type Handler struct {
	payments  PaymentService
	processor NotificationProcessor
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewHandler(payments PaymentService, processor NotificationProcessor, logger *zap.Logger) *Handler {
	return &Handler{
		payments:  payments,
		processor: processor,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/ipn", h.HandleIPN)

	r.Post("/api/v1/payments", h.InitiatePayment)
	r.Post("/api/v1/payments/{tranID}/validate", h.ValidatePayment)
	r.Post("/api/v1/refunds", h.RequestRefund)
	r.Post("/api/v1/refunds/{refundID}/resolve", h.ResolveRefund)
	r.Get("/api/v1/transactions", h.ListTransactions)
	r.Get("/api/v1/transactions/{tranID}", h.GetTransaction)

	r.Get("/healthz", h.Healthz)

	return r
}

// HandleIPN is the listener the gateway retries against. It answers in
// the gateway's own protocol: a plain-text body, 200 for anything the
// pipeline settled (applied or duplicate), 4xx for notifications it
// rejected, and 5xx only when the authoritative check could not run so
// the gateway keeps retrying.
func (h *Handler) HandleIPN(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "ERROR")
		return
	}

	result, err := h.processor.Process(r.Context(), helpers.FlattenForm(r.PostForm))
	if err != nil {
		switch errors.KindOf(err) {
		case errors.Unavailable, errors.Internal:
			writeText(w, http.StatusServiceUnavailable, "RETRY")
		default:
			writeText(w, http.StatusBadRequest, "ERROR")
		}
		return
	}

	h.logger.Info("notification acknowledged",
		zap.String("tran_id", result.TranID),
		zap.String("status", string(result.Status)),
		zap.Bool("applied", result.Applied))
	writeText(w, http.StatusOK, "OK")
}

// POST /api/v1/payments
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationErr(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, errors.ValidationErr(err))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, errors.EmptyParamErr("amount"))
		return
	}
	currency := strings.ToUpper(req.Currency)
	if !models.CurrencySupported(currency) {
		writeError(w, errors.EmptyParamErr("currency"))
		return
	}
	tranID := req.TranID
	if tranID == "" {
		tranID = models.GenerateTranID("TXN")
	}

	result, tx, err := h.payments.Initiate(r.Context(), models.PaymentRequest{
		TranID:          tranID,
		Amount:          amount,
		Currency:        currency,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		CustomerCity:    req.CustomerCity,
		CustomerPost:    req.CustomerPost,
		CustomerCountry: req.CustomerCountry,
		ProductName:     req.ProductName,
		ProductCategory: req.ProductCategory,
		ProductProfile:  req.ProductProfile,
		ShippingName:    req.ShippingName,
		ShippingAddress: req.ShippingAddress,
		ShippingCity:    req.ShippingCity,
		SuccessURL:      req.SuccessURL,
		FailURL:         req.FailURL,
		CancelURL:       req.CancelURL,
		IPNURL:          req.IPNURL,
		Metadata:        req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := InitiatePaymentResp{
		TranID:         tx.TranID,
		Status:         result.Status,
		SessionKey:     result.SessionKey,
		GatewayPageURL: result.GatewayPageURL,
		FailedReason:   result.FailedReason,
	}
	code := http.StatusOK
	if !result.Succeeded() {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, resp)
}

// POST /api/v1/payments/{tranID}/validate re-runs the authoritative
// gateway check for a stored transaction, the manual fallback when an
// IPN never arrived.
func (h *Handler) ValidatePayment(w http.ResponseWriter, r *http.Request) {
	tranID := chi.URLParam(r, "tranID")
	result, err := h.processor.ValidateStored(r.Context(), tranID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResp{
		TranID:  result.TranID,
		Status:  string(result.Status),
		Applied: result.Applied,
	})
}

// POST /api/v1/refunds
func (h *Handler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationErr(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, errors.ValidationErr(err))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, errors.EmptyParamErr("amount"))
		return
	}

	refund, err := h.payments.Refund(r.Context(), req.TranID, amount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundResp(refund))
}

// POST /api/v1/refunds/{refundID}/resolve finalizes a refund whose
// gateway call transport-failed and was left REQUESTED, once the operator
// has confirmed the outcome out-of-band.
func (h *Handler) ResolveRefund(w http.ResponseWriter, r *http.Request) {
	var req ResolveRefundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationErr(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, errors.ValidationErr(err))
		return
	}

	refund, err := h.payments.ResolveRefund(r.Context(), chi.URLParam(r, "refundID"), *req.Success, req.RefundRef)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundResp(refund))
}

// GET /api/v1/transactions/{tranID}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tranID := chi.URLParam(r, "tranID")
	tx, refunds, err := h.payments.Status(r.Context(), tranID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResp(tx, refunds))
}

// GET /api/v1/transactions?status=&limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := mongodb.ListFilter{Limit: 50}
	if st := q.Get("status"); st != "" {
		filter.Status = models.TransactionStatus(strings.ToUpper(st))
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			filter.Limit = int64(n)
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = int64(n)
		}
	}

	items, err := h.payments.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]TransactionResp, 0, len(items))
	for i := range items {
		out = append(out, toTransactionResp(&items[i], nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch errors.KindOf(err) {
	case errors.Invalid:
		code = http.StatusBadRequest
	case errors.NotFound:
		code = http.StatusNotFound
	case errors.Conflict:
		code = http.StatusConflict
	case errors.Untrusted:
		code = http.StatusForbidden
	case errors.Unavailable:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
