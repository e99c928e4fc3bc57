package interfaces

import (
	"context"

	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}
