package reconcile

import (
	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

// Failure is a posting that could not be hydrated or reconciled.
type Failure struct {
	PostingID   int64
	ExternalRef string
	Err         error
}

func (f Failure) Kind() models.ErrorKind { return models.KindOf(f.Err) }

// Outcome partitions the postings of one run into recorded payments and failures.
type Outcome struct {
	RunID    string
	Window   models.LedgerWindow
	Fetched  int
	Eligible int
	Recorded []Reconciled
	Failures []Failure
}

// Reconciled pairs a recorded payment with the posting it came from.
type Reconciled struct {
	Posting models.Posting
	Payment models.Payment
}

// NewlyRecorded returns the payments that were not already settled.
func (o *Outcome) NewlyRecorded() []Reconciled {
	var out []Reconciled
	for _, r := range o.Recorded {
		if !r.Payment.AlreadySettled {
			out = append(out, r)
		}
	}
	return out
}
