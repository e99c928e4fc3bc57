package interfaces

import (
	"context"
	"time"

	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

// LedgerSource is the accounting ledger the job reads postings from.
type LedgerSource interface {
	CreateSessionToken(ctx context.Context, expiration time.Time) (models.SessionCredential, error)
	FetchLedger(ctx context.Context, window models.LedgerWindow, cred models.SessionCredential) (models.Ledger, error)
	FetchPosting(ctx context.Context, id int64, cred models.SessionCredential) (models.Posting, error)
}
