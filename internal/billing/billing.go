// Package billing is the Chargebee client used to resolve KIDs to invoices
// and record bank-transfer payments against them.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sheikh-saqib/payments-reconciler/internal/config"
	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

const (
	paymentMethodBankTransfer = "bank_transfer"
	idempotencyHeader         = "chargebee-idempotency-key"
)

// Client is a Chargebee API client scoped to one site.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock sets the clock used to date payment transactions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a Client for the configured site.
func NewClient(cfg config.Chargebee, opts ...Option) *Client {
	c := &Client{
		baseURL: cfg.URL(),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IdempotencyKey identifies one payment of amountCents on an invoice.
// The same pair always yields the same key.
func IdempotencyKey(invoiceID models.InvoiceID, amountCents int64) string {
	return fmt.Sprintf("%s-%d", invoiceID, amountCents)
}

// ResolveInvoice looks up the invoice a payment reference (KID) belongs to.
func (c *Client) ResolveInvoice(ctx context.Context, externalRef string) (models.InvoiceID, error) {
	params := url.Values{}
	params.Set("payment_reference_number[number][is]", externalRef)

	var resp struct {
		List []struct {
			PaymentReferenceNumber struct {
				ID        string `json:"id"`
				Type      string `json:"type"`
				Number    string `json:"number"`
				InvoiceID string `json:"invoice_id"`
			} `json:"payment_reference_number"`
		} `json:"list"`
	}
	if err := c.do(ctx, http.MethodGet, "/invoices/payment_reference_numbers", params, nil, "", &resp); err != nil {
		return "", &models.Error{Kind: models.KindBilling, Op: "resolve " + externalRef, Err: err}
	}

	if len(resp.List) == 0 {
		return "", &models.Error{Kind: models.KindInvoiceNotFound, Op: "resolve " + externalRef, Err: models.ErrNoReferenceMatch}
	}
	prn := resp.List[0].PaymentReferenceNumber
	if prn.InvoiceID == "" {
		return "", &models.Error{Kind: models.KindInvoiceNotFound, Op: "resolve " + externalRef, Err: models.ErrReferenceUnlinked}
	}
	return models.InvoiceID(prn.InvoiceID), nil
}

// RecordPayment records a bank transfer of amountCents on the invoice.
// An already paid invoice is not an error: its current state is returned
// with AlreadySettled set. The customer is fetched on both paths.
func (c *Client) RecordPayment(ctx context.Context, invoiceID models.InvoiceID, amountCents int64) (models.Payment, error) {
	op := "record payment " + string(invoiceID)
	if amountCents <= 0 {
		return models.Payment{}, &models.Error{Kind: models.KindBilling, Op: op, Err: models.ErrInvalidAmount}
	}

	form := url.Values{}
	form.Set("transaction[amount]", strconv.FormatInt(amountCents, 10))
	form.Set("transaction[payment_method]", paymentMethodBankTransfer)
	form.Set("transaction[date]", strconv.FormatInt(c.now().Unix(), 10))

	payment := models.Payment{AmountCents: amountCents}

	var resp struct {
		Invoice models.Invoice `json:"invoice"`
	}
	path := "/invoices/" + url.PathEscape(string(invoiceID)) + "/record_payment"
	err := c.do(ctx, http.MethodPost, path, nil, form, IdempotencyKey(invoiceID, amountCents), &resp)

	var apiErr *APIError
	switch {
	case err == nil:
		payment.Invoice = resp.Invoice
	case errors.As(err, &apiErr) && apiErr.AlreadyPaid():
		c.logger.Info("invoice already settled, fetching current state", "invoice_id", invoiceID)
		invoice, err := c.RetrieveInvoice(ctx, invoiceID)
		if err != nil {
			return models.Payment{}, err
		}
		payment.Invoice = invoice
		payment.AlreadySettled = true
	default:
		return models.Payment{}, &models.Error{Kind: models.KindBilling, Op: op, Err: err}
	}

	customer, err := c.RetrieveCustomer(ctx, payment.Invoice.CustomerID)
	if err != nil {
		return models.Payment{}, err
	}
	payment.Customer = customer
	return payment, nil
}

// RetrieveInvoice returns the invoice's current state.
func (c *Client) RetrieveInvoice(ctx context.Context, invoiceID models.InvoiceID) (models.Invoice, error) {
	var resp struct {
		Invoice models.Invoice `json:"invoice"`
	}
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(string(invoiceID)), nil, nil, "", &resp); err != nil {
		return models.Invoice{}, &models.Error{Kind: models.KindBilling, Op: "retrieve invoice " + string(invoiceID), Err: err}
	}
	return resp.Invoice, nil
}

// RetrieveCustomer returns the customer an invoice belongs to.
func (c *Client) RetrieveCustomer(ctx context.Context, customerID string) (models.Customer, error) {
	op := "retrieve customer " + customerID
	if customerID == "" {
		return models.Customer{}, &models.Error{Kind: models.KindBilling, Op: op, Err: errors.New("invoice has no customer")}
	}
	var resp struct {
		Customer models.Customer `json:"customer"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, nil, "", &resp); err != nil {
		return models.Customer{}, &models.Error{Kind: models.KindBilling, Op: op, Err: err}
	}
	return resp.Customer, nil
}

func (c *Client) do(ctx context.Context, method, path string, params, form url.Values, idempotencyKey string, out any) error {
	if c.apiKey == "" {
		return errors.New("CHARGEBEE_API_KEY not set")
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = string(raw)
		}
		apiErr.HTTPStatusCode = resp.StatusCode
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// APIError is Chargebee's error body.
type APIError struct {
	Message        string `json:"message"`
	Type           string `json:"type"`
	APIErrorCode   string `json:"api_error_code"`
	Param          string `json:"param"`
	HTTPStatusCode int    `json:"http_status_code"`
}

func (e *APIError) Error() string {
	if e.APIErrorCode != "" {
		return fmt.Sprintf("chargebee %d %s: %s", e.HTTPStatusCode, e.APIErrorCode, e.Message)
	}
	return fmt.Sprintf("chargebee %d: %s", e.HTTPStatusCode, e.Message)
}

// AlreadyPaid reports whether billing refused the payment because the
// invoice is already settled.
func (e *APIError) AlreadyPaid() bool {
	return e.HTTPStatusCode == http.StatusUnprocessableEntity
}

var _ interfaces.Billing = (*Client)(nil)
