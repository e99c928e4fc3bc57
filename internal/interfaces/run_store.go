package interfaces

import (
	"context"

	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

// RunStore journals run reports. The job only appends to it.
type RunStore interface {
	SaveRun(ctx context.Context, report models.RunReport) error
	ListRuns(ctx context.Context, limit int) ([]models.RunReport, error)
}
