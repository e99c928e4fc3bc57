package interfaces

import (
	"context"

	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

// Billing resolves payment references to invoices and records payments on them.
type Billing interface {
	ResolveInvoice(ctx context.Context, externalRef string) (models.InvoiceID, error)
	RecordPayment(ctx context.Context, invoiceID models.InvoiceID, amountCents int64) (models.Payment, error)
}
