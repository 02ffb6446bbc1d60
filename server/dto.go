package server

import (
	// Go Internal Packages
	"time"

	// Local Packages
	models "sslpay/models"
)

type InitiatePaymentReq struct {
	TranID   string `json:"tran_id"`
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`

	CustomerName    string `json:"cus_name" validate:"required"`
	CustomerEmail   string `json:"cus_email" validate:"required,email"`
	CustomerPhone   string `json:"cus_phone" validate:"required"`
	CustomerAddress string `json:"cus_add1"`
	CustomerCity    string `json:"cus_city"`
	CustomerPost    string `json:"cus_postcode"`
	CustomerCountry string `json:"cus_country"`

	ProductName     string `json:"product_name"`
	ProductCategory string `json:"product_category"`
	ProductProfile  string `json:"product_profile"`

	ShippingName    string `json:"ship_name"`
	ShippingAddress string `json:"ship_add1"`
	ShippingCity    string `json:"ship_city"`

	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	FailURL    string `json:"fail_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
	IPNURL     string `json:"ipn_url" validate:"omitempty,url"`

	Metadata map[string]string `json:"metadata"`
}

type InitiatePaymentResp struct {
	TranID         string `json:"tran_id"`
	Status         string `json:"status"`
	SessionKey     string `json:"session_key,omitempty"`
	GatewayPageURL string `json:"gateway_page_url,omitempty"`
	FailedReason   string `json:"failed_reason,omitempty"`
}

type RefundReq struct {
	TranID string `json:"tran_id" validate:"required"`
	Amount string `json:"amount" validate:"required"`
	Reason string `json:"reason"`
}

type ResolveRefundReq struct {
	// Success is a pointer so an explicit false survives validation.
	Success   *bool  `json:"success" validate:"required"`
	RefundRef string `json:"refund_ref"`
}

type RefundResp struct {
	RefundID  string `json:"refund_id"`
	TranID    string `json:"tran_id"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	RefundRef string `json:"refund_ref,omitempty"`
}

type TransactionResp struct {
	TranID         string       `json:"tran_id"`
	ValID          string       `json:"val_id,omitempty"`
	BankTranID     string       `json:"bank_tran_id,omitempty"`
	Amount         string       `json:"amount"`
	Currency       string       `json:"currency"`
	Status         string       `json:"status"`
	RefundedTotal  string       `json:"refunded_total"`
	CustomerName   string       `json:"cus_name,omitempty"`
	CustomerEmail  string       `json:"cus_email,omitempty"`
	FailureReason  string       `json:"failure_reason,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	Refunds        []RefundResp `json:"refunds,omitempty"`
}

type ValidateResp struct {
	TranID  string `json:"tran_id"`
	Status  string `json:"status"`
	Applied bool   `json:"applied"`
}

func toTransactionResp(tx *models.Transaction, refunds []models.RefundTransaction) TransactionResp {
	resp := TransactionResp{
		TranID:        tx.TranID,
		ValID:         tx.ValID,
		BankTranID:    tx.BankTranID,
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency,
		Status:        string(tx.Status),
		RefundedTotal: tx.RefundedTotal.String(),
		CustomerName:  tx.CustomerName,
		CustomerEmail: tx.CustomerEmail,
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
		CompletedAt:   tx.CompletedAt,
	}
	for _, rf := range refunds {
		resp.Refunds = append(resp.Refunds, toRefundResp(&rf))
	}
	return resp
}

func toRefundResp(rf *models.RefundTransaction) RefundResp {
	return RefundResp{
		RefundID:  rf.RefundID,
		TranID:    rf.TranID,
		Amount:    rf.Amount.String(),
		Status:    string(rf.Status),
		RefundRef: rf.RefundRef,
	}
}
