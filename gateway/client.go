// Package gateway translates structured payment requests into the
// SSLCommerz v4 wire format and parses its JSON replies.
package gateway

import (
	// Go Internal Packages
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	// Local Packages
	config "sslpay/config"
	errors "sslpay/errors"
	helpers "sslpay/helpers"
	models "sslpay/models"

	// External Packages
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	sandboxBaseURL    = "https://sandbox.sslcommerz.com"
	productionBaseURL = "https://securepay.sslcommerz.com"

	sessionPath    = "/gwprocess/v4/api.php"
	validationPath = "/validator/api/validationserverAPI.php"
	refundPath     = "/gwprocess/v4/api.php"
)

type Client struct {
	conf       config.Gateway
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a gateway client with a bounded timeout. The caller
// owns retry policy; the client never retries on its own because refund
// calls are not idempotent.
func NewClient(conf config.Gateway, logger *zap.Logger) *Client {
	transport := http.DefaultTransport
	if !conf.VerifySSL {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		conf:       conf,
		httpClient: &http.Client{Timeout: conf.Timeout(), Transport: transport},
		logger:     logger,
	}
}

func (c *Client) baseURL() string {
	if c.conf.BaseURL != "" {
		return strings.TrimSuffix(c.conf.BaseURL, "/")
	}
	if c.conf.Sandbox {
		return sandboxBaseURL
	}
	return productionBaseURL
}

// InitiatePayment opens a payment session. A well-formed non-SUCCESS
// reply comes back as a result, not an error; only bad input and
// transport failures error out.
func (c *Client) InitiatePayment(ctx context.Context, req models.PaymentRequest) (*models.InitiationResult, error) {
	if err := validatePaymentRequest(req); err != nil {
		return nil, err
	}

	form := c.paymentForm(req)
	raw, err := c.postForm(ctx, c.baseURL()+sessionPath, form)
	if err != nil {
		return nil, err
	}

	result := &models.InitiationResult{
		Status:         asString(raw["status"]),
		FailedReason:   asString(raw["failedreason"]),
		SessionKey:     asString(raw["sessionkey"]),
		GatewayPageURL: asString(raw["GatewayPageURL"]),
		Raw:            raw,
	}
	if !result.Succeeded() {
		c.logger.Warn("payment initiation declined",
			zap.String("tran_id", req.TranID),
			zap.String("reason", result.FailedReason))
	}
	return result, nil
}

// ValidateTransaction queries the validator API for the authoritative
// transaction status. This call is the replay/forgery defense: it must be
// made before any notification is trusted, regardless of what the
// notification payload claims.
func (c *Client) ValidateTransaction(ctx context.Context, valID string, expectedAmount decimal.Decimal) (*models.ValidationResult, error) {
	if valID == "" {
		return nil, errors.EmptyParamErr("val_id")
	}

	query := url.Values{}
	query.Set("store_id", c.conf.StoreID)
	query.Set("store_passwd", c.conf.StorePassword)
	query.Set("val_id", valID)
	query.Set("format", "json")

	raw, err := c.getJSON(ctx, c.baseURL()+validationPath, query)
	if err != nil {
		return nil, err
	}

	result := &models.ValidationResult{
		Status:     asString(raw["status"]),
		TranID:     asString(raw["tran_id"]),
		ValID:      asString(raw["val_id"]),
		BankTranID: asString(raw["bank_tran_id"]),
		Currency:   asString(raw["currency"]),
		Raw:        raw,
	}

	if amountStr := asString(raw["amount"]); amountStr != "" {
		amount, perr := decimal.NewFromString(amountStr)
		if perr == nil {
			result.Amount = amount
		}
	}

	if result.Status == "VALID" || result.Status == "VALIDATED" {
		result.AmountMismatch = !models.AmountsMatch(result.Amount, expectedAmount)
		if result.AmountMismatch {
			c.logger.Warn("validator amount differs from stored amount",
				zap.String("val_id", valID),
				zap.String("expected", expectedAmount.String()),
				zap.String("confirmed", result.Amount.String()))
		}
	}
	return result, nil
}

// ProcessRefund submits a refund against the bank reference of a settled
// transaction. The balance invariant is enforced by the store before this
// is ever called; here only field presence is checked.
func (c *Client) ProcessRefund(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error) {
	ve := errors.ValidationErrs()
	if req.BankTranID == "" {
		ve.Add("bank_tran_id", "cannot be empty")
	}
	if req.Remarks == "" {
		ve.Add("refund_remarks", "cannot be empty")
	}
	if !req.Amount.IsPositive() {
		ve.Add("refund_amount", "must be greater than 0")
	}
	if err := ve.Err(); err != nil {
		return nil, errors.ValidationErr(err)
	}

	form := url.Values{}
	form.Set("store_id", c.conf.StoreID)
	form.Set("store_passwd", c.conf.StorePassword)
	form.Set("bank_tran_id", req.BankTranID)
	form.Set("refund_amount", req.Amount.StringFixed(2))
	form.Set("refund_remarks", req.Remarks)
	form.Set("refe_id", req.RefundID)
	form.Set("format", "json")

	raw, err := c.postForm(ctx, c.baseURL()+refundPath, form)
	if err != nil {
		return nil, err
	}

	return &models.RefundResult{
		Status:    asString(raw["status"]),
		RefundRef: asString(raw["refund_ref_id"]),
		Reason:    asString(raw["errorReason"]),
		Raw:       raw,
	}, nil
}

func (c *Client) paymentForm(req models.PaymentRequest) url.Values {
	form := url.Values{}
	form.Set("store_id", c.conf.StoreID)
	form.Set("store_passwd", c.conf.StorePassword)
	form.Set("total_amount", req.Amount.StringFixed(2))
	form.Set("currency", strings.ToUpper(req.Currency))
	form.Set("tran_id", req.TranID)

	form.Set("success_url", firstNonEmpty(req.SuccessURL, c.conf.SuccessURL))
	form.Set("fail_url", firstNonEmpty(req.FailURL, c.conf.FailURL))
	form.Set("cancel_url", firstNonEmpty(req.CancelURL, c.conf.CancelURL))
	form.Set("ipn_url", firstNonEmpty(req.IPNURL, c.conf.IPNURL))

	setNonEmpty(form, "cus_name", req.CustomerName)
	setNonEmpty(form, "cus_email", req.CustomerEmail)
	setNonEmpty(form, "cus_phone", req.CustomerPhone)
	setNonEmpty(form, "cus_add1", req.CustomerAddress)
	setNonEmpty(form, "cus_city", req.CustomerCity)
	setNonEmpty(form, "cus_postcode", req.CustomerPost)
	setNonEmpty(form, "cus_country", req.CustomerCountry)

	setNonEmpty(form, "product_name", req.ProductName)
	setNonEmpty(form, "product_category", req.ProductCategory)
	setNonEmpty(form, "product_profile", firstNonEmpty(req.ProductProfile, "general"))

	setNonEmpty(form, "ship_name", req.ShippingName)
	setNonEmpty(form, "ship_add1", req.ShippingAddress)
	setNonEmpty(form, "ship_city", req.ShippingCity)

	setNonEmpty(form, "value_a", req.ValueA)
	setNonEmpty(form, "value_b", req.ValueB)
	setNonEmpty(form, "value_c", req.ValueC)
	setNonEmpty(form, "value_d", req.ValueD)

	return form
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (map[string]any, error) {
	if c.conf.LogRequests {
		c.logger.Info("gateway request",
			zap.String("url", endpoint),
			zap.Any("form", helpers.Redact(form)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.GatewayUnavailableErr(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values) (map[string]any, error) {
	if c.conf.LogRequests {
		c.logger.Info("gateway request",
			zap.String("url", endpoint),
			zap.Any("query", helpers.Redact(query)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.GatewayUnavailableErr(err)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (map[string]any, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gateway call failed", zap.String("url", req.URL.Path), zap.Error(err))
		return nil, errors.GatewayUnavailableErr(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.GatewayUnavailableErr(fmt.Errorf("gateway returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.GatewayUnavailableErr(err)
	}

	var raw map[string]any
	if err = json.Unmarshal(body, &raw); err != nil {
		return nil, errors.GatewayUnavailableErr(fmt.Errorf("invalid gateway response: %w", err))
	}

	if c.conf.LogRequests {
		c.logger.Info("gateway response",
			zap.String("url", req.URL.Path),
			zap.Int("status_code", resp.StatusCode))
	}
	return raw, nil
}

func validatePaymentRequest(req models.PaymentRequest) error {
	ve := errors.ValidationErrs()

	if req.TranID == "" {
		ve.Add("tran_id", "cannot be empty")
	}
	if !req.Amount.IsPositive() {
		ve.Add("total_amount", "must be greater than 0")
	}
	if req.Currency == "" {
		ve.Add("currency", "cannot be empty")
	} else if !models.CurrencySupported(req.Currency) {
		ve.Add("currency", "unsupported currency code")
	}
	if req.CustomerName == "" {
		ve.Add("cus_name", "cannot be empty")
	}
	if req.CustomerPhone == "" {
		ve.Add("cus_phone", "cannot be empty")
	}
	if req.CustomerEmail == "" {
		ve.Add("cus_email", "cannot be empty")
	} else if !strings.Contains(req.CustomerEmail, "@") {
		ve.Add("cus_email", "invalid email format")
	}

	if err := ve.Err(); err != nil {
		return errors.ValidationErr(err)
	}
	return nil
}

func setNonEmpty(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
