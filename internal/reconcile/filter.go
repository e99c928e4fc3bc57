package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ShouldReconcile reports whether a posting is an incoming payment with a
// payment reference and a non-zero amount.
func ShouldReconcile(p models.Posting) bool {
	return p.Type == models.PostingTypeIncomingPayment &&
		p.ExternalRef != "" &&
		!p.Amount.IsZero()
}

// AmountCents converts a ledger amount to positive minor units, rounding
// half away from zero. Incoming payments are negative in the ledger.
func AmountCents(amount decimal.Decimal) int64 {
	return amount.Abs().Mul(hundred).Round(0).IntPart()
}
