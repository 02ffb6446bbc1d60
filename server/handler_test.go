package server

import (
	// Go Internal Packages
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	// Local Packages
	sslerrors "sslpay/errors"
	models "sslpay/models"
	mongodb "sslpay/repositories/mongodb"
	ipn "sslpay/services/ipn"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type PaymentsMock struct {
	mock.Mock
	PaymentService
}

func (m *PaymentsMock) Initiate(ctx context.Context, req models.PaymentRequest) (*models.InitiationResult, *models.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.InitiationResult), args.Get(1).(*models.Transaction), args.Error(2)
}

func (m *PaymentsMock) Refund(ctx context.Context, tranID string, amount decimal.Decimal, reason string) (*models.RefundTransaction, error) {
	args := m.Called(ctx, tranID, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundTransaction), args.Error(1)
}

func (m *PaymentsMock) ResolveRefund(ctx context.Context, refundID string, success bool, refundRef string) (*models.RefundTransaction, error) {
	args := m.Called(ctx, refundID, success, refundRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundTransaction), args.Error(1)
}

func (m *PaymentsMock) Status(ctx context.Context, tranID string) (*models.Transaction, []models.RefundTransaction, error) {
	args := m.Called(ctx, tranID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	var refunds []models.RefundTransaction
	if args.Get(1) != nil {
		refunds = args.Get(1).([]models.RefundTransaction)
	}
	return args.Get(0).(*models.Transaction), refunds, args.Error(2)
}

func (m *PaymentsMock) List(ctx context.Context, filter mongodb.ListFilter) ([]models.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

type ProcessorMock struct {
	mock.Mock
	NotificationProcessor
}

func (m *ProcessorMock) Process(ctx context.Context, payload map[string]string) (*ipn.Result, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ipn.Result), args.Error(1)
}

func (m *ProcessorMock) ValidateStored(ctx context.Context, tranID string) (*ipn.Result, error) {
	args := m.Called(ctx, tranID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ipn.Result), args.Error(1)
}

func newTestHandler() (*PaymentsMock, *ProcessorMock, http.Handler) {
	payments, processor := new(PaymentsMock), new(ProcessorMock)
	h := NewHandler(payments, processor, zap.NewNop())
	return payments, processor, h.Routes()
}

func postForm(t *testing.T, routes http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, routes http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	return rec
}

func TestHandleIPN(t *testing.T) {
	form := url.Values{}
	form.Set("tran_id", "T1")
	form.Set("status", "VALID")

	t.Run("settled notification is acknowledged", func(t *testing.T) {
		_, processor, routes := newTestHandler()
		processor.On("Process", mock.Anything, map[string]string{"tran_id": "T1", "status": "VALID"}).
			Return(&ipn.Result{TranID: "T1", Status: models.StatusValid, Applied: true}, nil)

		rec := postForm(t, routes, "/ipn", form)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "OK", rec.Body.String())
	})

	t.Run("duplicate is still acknowledged", func(t *testing.T) {
		_, processor, routes := newTestHandler()
		processor.On("Process", mock.Anything, mock.Anything).
			Return(&ipn.Result{TranID: "T1", Status: models.StatusValid, Applied: false}, nil)

		rec := postForm(t, routes, "/ipn", form)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejected notification answers 400", func(t *testing.T) {
		_, processor, routes := newTestHandler()
		processor.On("Process", mock.Anything, mock.Anything).
			Return(nil, sslerrors.UntrustedNotificationErr("T1"))

		rec := postForm(t, routes, "/ipn", form)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "ERROR", rec.Body.String())
	})

	t.Run("gateway outage asks for a retry", func(t *testing.T) {
		_, processor, routes := newTestHandler()
		processor.On("Process", mock.Anything, mock.Anything).
			Return(nil, sslerrors.GatewayUnavailableErr(context.DeadlineExceeded))

		rec := postForm(t, routes, "/ipn", form)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "RETRY", rec.Body.String())
	})
}

func TestInitiatePayment(t *testing.T) {
	body := InitiatePaymentReq{
		TranID:        "T1",
		Amount:        "1000.00",
		Currency:      "BDT",
		CustomerName:  "Rahim Uddin",
		CustomerEmail: "rahim@example.com",
		CustomerPhone: "01711111111",
	}

	t.Run("opens a session", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("Initiate", mock.Anything, mock.Anything).Return(
			&models.InitiationResult{Status: "SUCCESS", SessionKey: "SK1", GatewayPageURL: "https://pay.example/SK1"},
			&models.Transaction{TranID: "T1", Status: models.StatusPending},
			nil,
		)

		rec := postJSON(t, routes, "/api/v1/payments", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp InitiatePaymentResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "SK1", resp.SessionKey)
		require.Equal(t, "T1", resp.TranID)
	})

	t.Run("generates tran_id when omitted", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		var captured models.PaymentRequest
		payments.On("Initiate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			captured = args.Get(1).(models.PaymentRequest)
		}).Return(
			&models.InitiationResult{Status: "SUCCESS", SessionKey: "SK1"},
			&models.Transaction{Status: models.StatusPending},
			nil,
		)

		anonymous := body
		anonymous.TranID = ""
		rec := postJSON(t, routes, "/api/v1/payments", anonymous)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, strings.HasPrefix(captured.TranID, "TXN_"))
	})

	t.Run("declined session maps to 422", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("Initiate", mock.Anything, mock.Anything).Return(
			&models.InitiationResult{Status: "FAILED", FailedReason: "store deactivated"},
			&models.Transaction{TranID: "T1", Status: models.StatusPending},
			nil,
		)

		rec := postJSON(t, routes, "/api/v1/payments", body)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("rejects missing customer fields", func(t *testing.T) {
		payments, _, routes := newTestHandler()

		invalid := body
		invalid.CustomerEmail = ""
		rec := postJSON(t, routes, "/api/v1/payments", invalid)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		payments.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
	})

	t.Run("rejects unsupported currency", func(t *testing.T) {
		_, _, routes := newTestHandler()

		invalid := body
		invalid.Currency = "XYZ"
		rec := postJSON(t, routes, "/api/v1/payments", invalid)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate tran_id maps to 409", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("Initiate", mock.Anything, mock.Anything).
			Return(nil, nil, sslerrors.DuplicateTransactionErr("T1"))

		rec := postJSON(t, routes, "/api/v1/payments", body)
		require.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestRequestRefund(t *testing.T) {
	body := RefundReq{TranID: "T1", Amount: "600.00", Reason: "customer return"}

	t.Run("returns resolved refund", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("Refund", mock.Anything, "T1", decimal.RequireFromString("600.00"), "customer return").
			Return(&models.RefundTransaction{
				RefundID: "R1", TranID: "T1",
				Amount: decimal.RequireFromString("600.00"),
				Status: models.RefundSuccess, RefundRef: "RR1",
			}, nil)

		rec := postJSON(t, routes, "/api/v1/refunds", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RefundResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "R1", resp.RefundID)
		require.Equal(t, "SUCCESS", resp.Status)
	})

	t.Run("balance violation maps to 400", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("Refund", mock.Anything, "T1", mock.Anything, mock.Anything).
			Return(nil, sslerrors.RefundExceedsBalanceErr("T1", "400.00"))

		rec := postJSON(t, routes, "/api/v1/refunds", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		payments, _, routes := newTestHandler()

		invalid := body
		invalid.Amount = "-5"
		rec := postJSON(t, routes, "/api/v1/refunds", invalid)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestResolveRefund(t *testing.T) {
	t.Run("finalizes a stuck refund", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("ResolveRefund", mock.Anything, "R1", true, "RR1").
			Return(&models.RefundTransaction{
				RefundID: "R1", TranID: "T1",
				Amount: decimal.RequireFromString("600.00"),
				Status: models.RefundSuccess, RefundRef: "RR1",
			}, nil)

		success := true
		rec := postJSON(t, routes, "/api/v1/refunds/R1/resolve", ResolveRefundReq{Success: &success, RefundRef: "RR1"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RefundResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "SUCCESS", resp.Status)
	})

	t.Run("explicit failure outcome is accepted", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("ResolveRefund", mock.Anything, "R1", false, "").
			Return(&models.RefundTransaction{
				RefundID: "R1", TranID: "T1",
				Amount: decimal.RequireFromString("600.00"),
				Status: models.RefundFailed,
			}, nil)

		failure := false
		rec := postJSON(t, routes, "/api/v1/refunds/R1/resolve", ResolveRefundReq{Success: &failure})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects a body without an outcome", func(t *testing.T) {
		payments, _, routes := newTestHandler()

		rec := postJSON(t, routes, "/api/v1/refunds/R1/resolve", map[string]string{"refund_ref": "RR1"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		payments.AssertNotCalled(t, "ResolveRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already-settled refund maps to 409", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("ResolveRefund", mock.Anything, "R1", true, "").
			Return(nil, sslerrors.InvalidStateTransitionErr("R1", "SUCCESS", "resolved"))

		success := true
		rec := postJSON(t, routes, "/api/v1/refunds/R1/resolve", ResolveRefundReq{Success: &success})
		require.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestGetTransaction(t *testing.T) {
	t.Run("returns transaction with refunds", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("Status", mock.Anything, "T1").Return(
			&models.Transaction{
				TranID: "T1", Status: models.StatusValid,
				Amount:        decimal.RequireFromString("1000.00"),
				RefundedTotal: decimal.RequireFromString("600.00"),
				Currency:      "BDT",
			},
			[]models.RefundTransaction{{RefundID: "R1", TranID: "T1", Amount: decimal.RequireFromString("600.00"), Status: models.RefundSuccess}},
			nil,
		)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/T1", nil)
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TransactionResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "VALID", resp.Status)
		require.Len(t, resp.Refunds, 1)
	})

	t.Run("unknown id maps to 404", func(t *testing.T) {
		payments, _, routes := newTestHandler()
		payments.On("Status", mock.Anything, "NOPE").
			Return(nil, nil, sslerrors.UnknownTransactionErr("NOPE"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/NOPE", nil)
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListTransactions(t *testing.T) {
	payments, _, routes := newTestHandler()
	payments.On("List", mock.Anything, mongodb.ListFilter{Status: models.StatusValid, Limit: 10}).
		Return([]models.Transaction{{TranID: "T1", Status: models.StatusValid}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions?status=valid&limit=10", nil)
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []TransactionResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
}

func TestValidatePayment(t *testing.T) {
	_, processor, routes := newTestHandler()
	processor.On("ValidateStored", mock.Anything, "T1").
		Return(&ipn.Result{TranID: "T1", Status: models.StatusValid, Applied: true}, nil)

	rec := postJSON(t, routes, "/api/v1/payments/T1/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValidateResp
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Applied)
}
