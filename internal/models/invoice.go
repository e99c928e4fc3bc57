package models

// InvoiceID identifies an invoice in the billing system
type InvoiceID string

// Invoice is the billing system's view of an invoice. Amounts are in minor units.
type Invoice struct {
	ID           InvoiceID `json:"id"`
	CustomerID   string    `json:"customer_id"`
	Status       string    `json:"status"`
	CurrencyCode string    `json:"currency_code"`
	Total        int64     `json:"total"`
	AmountPaid   int64     `json:"amount_paid"`
	AmountDue    int64     `json:"amount_due"`
}

// Customer is the billing system's customer record, used for reporting only
type Customer struct {
	ID        string `json:"id"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Payment is the result of recording a payment against an invoice.
// AlreadySettled is set when billing rejected the payment because the
// invoice was already paid, in which case Invoice holds its current state.
type Payment struct {
	Invoice        Invoice
	Customer       Customer
	AmountCents    int64
	AlreadySettled bool
}
