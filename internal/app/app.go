// Package app assembles the reconciler and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/sheikh-saqib/payments-reconciler/internal/billing"
	"github.com/sheikh-saqib/payments-reconciler/internal/config"
	"github.com/sheikh-saqib/payments-reconciler/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/ledger"
	"github.com/sheikh-saqib/payments-reconciler/internal/notify"
	"github.com/sheikh-saqib/payments-reconciler/internal/notify/slack"
	"github.com/sheikh-saqib/payments-reconciler/internal/reconcile"
	"github.com/sheikh-saqib/payments-reconciler/internal/storage"
)

// App holds the wired job. Close releases the journal and event writer.
type App struct {
	Reconciler *reconcile.Reconciler
	Runs       interfaces.RunStore
	Notifier   interfaces.Notifier

	closers []func() error
}

// NewLogger returns the JSON logger used by both entrypoints.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// New validates cfg and builds the App.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runs, closeRuns, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{Runs: runs, closers: []func() error{closeRuns}}

	a.Notifier = notify.NewFanout(logger, slack.New(cfg.SlackWebhookURL, cfg.HTTPTimeout))

	opts := []reconcile.Option{
		reconcile.WithLogger(logger),
		reconcile.WithConcurrency(cfg.Concurrency),
		reconcile.WithRunStore(runs),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers)
		a.closers = append(a.closers, publisher.Close)
		opts = append(opts, reconcile.WithEventPublisher(publisher, cfg.Kafka.Topic))
	}

	a.Reconciler = reconcile.New(
		ledger.NewClient(cfg.Tripletex, ledger.WithLogger(logger)),
		billing.NewClient(cfg.Chargebee, billing.WithLogger(logger)),
		a.Notifier,
		opts...,
	)
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// ReportStartupFailure makes a best-effort attempt to tell the notification
// channel that the job could not start.
func ReportStartupFailure(ctx context.Context, cfg config.Config, logger *slog.Logger, err error) {
	if cfg.SlackWebhookURL == "" {
		return
	}
	n := notify.NewFanout(logger, slack.New(cfg.SlackWebhookURL, cfg.HTTPTimeout))
	n.Notify(ctx, reconcile.FailureNotification(err))
}
