package models

import (
	"github.com/shopspring/decimal"
)

// PostingType is the ledger's categorisation of a posting
type PostingType string

const (
	PostingTypeIncomingPayment                PostingType = "INCOMING_PAYMENT"
	PostingTypeIncomingPaymentOpposite        PostingType = "INCOMING_PAYMENT_OPPOSITE"
	PostingTypeIncomingInvoiceCustomerPosting PostingType = "INCOMING_INVOICE_CUSTOMER_POSTING"
	PostingTypeInvoiceExpense                 PostingType = "INVOICE_EXPENSE"
	PostingTypeOutgoingInvoiceCustomerPosting PostingType = "OUTGOING_INVOICE_CUSTOMER_POSTING"
	PostingTypeWage                           PostingType = "WAGE"
)

// PostingTypes lists every known posting type.
var PostingTypes = []PostingType{
	PostingTypeIncomingPayment,
	PostingTypeIncomingPaymentOpposite,
	PostingTypeIncomingInvoiceCustomerPosting,
	PostingTypeInvoiceExpense,
	PostingTypeOutgoingInvoiceCustomerPosting,
	PostingTypeWage,
}

// Posting represents a single ledger entry as returned by the ledger service.
// It is read-only: matching happens upstream once the payment is recorded in billing.
type Posting struct {
	ID            int64       `json:"id"`
	URL           string      `json:"url,omitempty"`
	Date          string      `json:"date,omitempty"`
	Description   string      `json:"description,omitempty"`
	Type          PostingType `json:"type"`
	ExternalRef   string      `json:"externalRef"` // KID, customer identification or credit note number
	Matched       bool        `json:"matched"`
	PostingRuleID string      `json:"postingRuleId,omitempty"`

	Amount              decimal.Decimal `json:"amount"` // major units, negative for incoming payments
	AmountCurrency      decimal.Decimal `json:"amountCurrency"`
	AmountGross         decimal.Decimal `json:"amountGross"`
	AmountGrossCurrency decimal.Decimal `json:"amountGrossCurrency"`
}

// LedgerAccount groups the postings of one account in a ledger response
type LedgerAccount struct {
	Postings []Posting `json:"postings"`
}

// Ledger is the ledger-by-window payload. Postings in it are summaries.
type Ledger struct {
	From          int             `json:"from"`
	Count         int             `json:"count"`
	VersionDigest string          `json:"versionDigest"`
	Values        []LedgerAccount `json:"values"`
}

// Postings flattens the postings of every account into one slice.
func (l Ledger) Postings() []Posting {
	var postings []Posting
	for _, account := range l.Values {
		postings = append(postings, account.Postings...)
	}
	return postings
}
