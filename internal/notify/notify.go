package notify

import (
	"context"
	"errors"
	"log/slog"

	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

// Fanout delivers every notification to all of its notifiers.
// Delivery failures are logged and joined into the returned error.
type Fanout struct {
	notifiers []interfaces.Notifier
	logger    *slog.Logger
}

func NewFanout(logger *slog.Logger, notifiers ...interfaces.Notifier) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{notifiers: notifiers, logger: logger}
}

func (f *Fanout) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, notifier := range f.notifiers {
		if err := notifier.Notify(ctx, n); err != nil {
			f.logger.Error("notification delivery failed", "title", n.Title, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ interfaces.Notifier = (*Fanout)(nil)
