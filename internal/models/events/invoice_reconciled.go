package events

import (
	"time"
)

// InvoiceReconciled is published once a ledger posting has been recorded as a payment.
type InvoiceReconciled struct {
	RunID        string    `json:"run_id"`
	InvoiceID    string    `json:"invoice_id"`
	CustomerID   string    `json:"customer_id"`
	PostingID    int64     `json:"posting_id"`
	ExternalRef  string    `json:"external_ref"`
	AmountCents  int64     `json:"amount_cents"`
	CurrencyCode string    `json:"currency_code"`
	AmountDue    int64     `json:"amount_due"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventKey partitions events by invoice.
func (e InvoiceReconciled) EventKey() string { return e.InvoiceID }
