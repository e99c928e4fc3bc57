package reconcile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

const (
	titlePaymentRecorded = "Invoice payment recorded (bank transfer)"
	titlePostingsFailed  = "Postings failed to reconcile"
	titleRunSucceeded    = "Successfully ran tripletex matcher job"
	titleRunFailed       = "Failed to run tripletex matcher job"
)

func paymentNotification(p models.Payment) models.Notification {
	user := p.Customer.Email
	if p.Customer.Phone != "" {
		user = fmt.Sprintf("%s (%s)", user, p.Customer.Phone)
	}
	return models.Notification{
		Title: titlePaymentRecorded,
		Fields: []models.Field{
			{Key: "Invoice ID", Value: string(p.Invoice.ID)},
			{Key: "Company", Value: p.Customer.Company},
			{Key: "User", Value: strings.TrimSpace(user)},
			{Key: "Amount Paid", Value: majorUnits(p.Invoice.CurrencyCode, p.Invoice.AmountPaid)},
			{Key: "Amount Due", Value: majorUnits(p.Invoice.CurrencyCode, p.Invoice.AmountDue)},
		},
	}
}

// majorUnits drops the minor units, e.g. 5050 NOK cents is "NOK 50".
func majorUnits(currency string, cents int64) string {
	return fmt.Sprintf("%s %d", currency, cents/100)
}

func failuresNotification(failures []Failure) models.Notification {
	fields := make([]models.Field, 0, len(failures))
	for _, f := range failures {
		key := "Posting " + strconv.FormatInt(f.PostingID, 10)
		if f.ExternalRef != "" {
			key += " (" + f.ExternalRef + ")"
		}
		fields = append(fields, models.Field{Key: key, Value: f.Err.Error()})
	}
	return models.Notification{Title: titlePostingsFailed, Fields: fields}
}

func successNotification(o *Outcome) models.Notification {
	return models.Notification{
		Title: titleRunSucceeded,
		Fields: []models.Field{
			{Key: "status", Value: "success"},
			{Key: "recorded", Value: strconv.Itoa(len(o.Recorded))},
			{Key: "failed", Value: strconv.Itoa(len(o.Failures))},
		},
	}
}

// FailureNotification reports a run that did not complete.
func FailureNotification(err error) models.Notification {
	msg := "Internal Server Error"
	if err != nil {
		msg = err.Error()
	}
	return models.Notification{
		Title:  titleRunFailed,
		Fields: []models.Field{{Key: "message", Value: msg}},
	}
}
