// Package reconcile matches incoming bank-transfer postings in the ledger to
// invoices in billing and records them as paid.
//
// A run is linear: open a ledger session, read the window [today-1, today+1),
// hydrate every posting, keep the eligible ones, then resolve and record each
// with bounded concurrency. Session and ledger failures abort the run; any
// per-posting failure is isolated and reported.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/models"
	"github.com/sheikh-saqib/payments-reconciler/internal/models/events"
	"github.com/sheikh-saqib/payments-reconciler/internal/storage/memory"
)

const DefaultConcurrency = 2

// Reconciler runs the reconciliation job.
type Reconciler struct {
	source   interfaces.LedgerSource
	billing  interfaces.Billing
	notifier interfaces.Notifier

	publisher interfaces.EventPublisher
	topic     string
	runs      interfaces.RunStore

	logger      *slog.Logger
	now         func() time.Time
	concurrency int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithClock sets the clock the window is computed from.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithConcurrency caps simultaneous resolve+record units.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithEventPublisher publishes an InvoiceReconciled event per recorded payment.
func WithEventPublisher(p interfaces.EventPublisher, topic string) Option {
	return func(r *Reconciler) {
		r.publisher = p
		r.topic = topic
	}
}

// WithRunStore sets the journal run reports are written to.
func WithRunStore(s interfaces.RunStore) Option {
	return func(r *Reconciler) { r.runs = s }
}

func New(source interfaces.LedgerSource, billing interfaces.Billing, notifier interfaces.Notifier, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:      source,
		billing:     billing,
		notifier:    notifier,
		runs:        memory.NewMemoryRunStore(),
		logger:      slog.Default(),
		now:         time.Now,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one reconciliation pass. The error is non-nil only when the
// run aborted; posting failures are returned in the Outcome.
func (r *Reconciler) Run(ctx context.Context) (*Outcome, error) {
	return r.run(ctx, uuid.NewString())
}

func (r *Reconciler) run(ctx context.Context, runID string) (*Outcome, error) {
	logger := r.logger.With("run_id", runID)
	outcome := &Outcome{RunID: runID, Window: models.WindowAround(r.now())}

	cred, err := r.source.CreateSessionToken(ctx, outcome.Window.To)
	if err != nil {
		return outcome, err
	}

	ledger, err := r.source.FetchLedger(ctx, outcome.Window, cred)
	if err != nil {
		return outcome, err
	}
	summaries := ledger.Postings()
	outcome.Fetched = len(summaries)
	logger.Info("fetched ledger",
		"date_from", outcome.Window.DateFrom(),
		"date_to", outcome.Window.DateTo(),
		"postings", len(summaries),
	)

	postings, failures := r.hydrate(ctx, summaries, cred)
	outcome.Failures = append(outcome.Failures, failures...)

	var eligible []models.Posting
	for _, p := range postings {
		if ShouldReconcile(p) {
			eligible = append(eligible, p)
		}
	}
	outcome.Eligible = len(eligible)

	recorded, failures := r.reconcileAll(ctx, eligible)
	outcome.Recorded = recorded
	outcome.Failures = append(outcome.Failures, failures...)

	for _, f := range outcome.Failures {
		logger.Warn("posting not reconciled",
			"posting_id", f.PostingID,
			"external_ref", f.ExternalRef,
			"kind", f.Kind().String(),
			"error", f.Err,
		)
	}
	for _, rec := range outcome.Recorded {
		logger.Info("reconciled invoice",
			"invoice_id", rec.Payment.Invoice.ID,
			"customer_id", rec.Payment.Invoice.CustomerID,
			"posting_id", rec.Posting.ID,
			"amount_cents", rec.Payment.AmountCents,
			"already_settled", rec.Payment.AlreadySettled,
		)
	}

	for _, rec := range outcome.NewlyRecorded() {
		r.notify(ctx, paymentNotification(rec.Payment))
	}
	if len(outcome.Failures) > 0 {
		r.notify(ctx, failuresNotification(outcome.Failures))
	}

	logger.Info("run finished",
		"fetched", outcome.Fetched,
		"eligible", outcome.Eligible,
		"recorded", len(outcome.Recorded),
		"failed", len(outcome.Failures),
	)
	return outcome, nil
}

// hydrate fetches every posting's detail concurrently. Each fetch retries on
// its own; a posting that still fails is returned as a Failure.
func (r *Reconciler) hydrate(ctx context.Context, summaries []models.Posting, cred models.SessionCredential) ([]models.Posting, []Failure) {
	results := make([]models.Posting, len(summaries))
	errs := make([]error, len(summaries))

	var g errgroup.Group
	for i, summary := range summaries {
		g.Go(func() error {
			results[i], errs[i] = r.source.FetchPosting(ctx, summary.ID, cred)
			return nil
		})
	}
	g.Wait()

	postings := make([]models.Posting, 0, len(summaries))
	var failures []Failure
	for i := range summaries {
		if errs[i] != nil {
			failures = append(failures, Failure{PostingID: summaries[i].ID, ExternalRef: summaries[i].ExternalRef, Err: errs[i]})
			continue
		}
		postings = append(postings, results[i])
	}
	return postings, failures
}

// reconcileAll resolves and records each posting with at most r.concurrency
// in flight. One failing posting never cancels its siblings.
func (r *Reconciler) reconcileAll(ctx context.Context, postings []models.Posting) ([]Reconciled, []Failure) {
	payments := make([]models.Payment, len(postings))
	errs := make([]error, len(postings))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, posting := range postings {
		g.Go(func() error {
			payments[i], errs[i] = r.reconcileOne(ctx, posting)
			return nil
		})
	}
	g.Wait()

	var (
		recorded []Reconciled
		failures []Failure
	)
	for i, posting := range postings {
		if errs[i] != nil {
			failures = append(failures, Failure{PostingID: posting.ID, ExternalRef: posting.ExternalRef, Err: errs[i]})
			continue
		}
		recorded = append(recorded, Reconciled{Posting: posting, Payment: payments[i]})
	}
	return recorded, failures
}

func (r *Reconciler) reconcileOne(ctx context.Context, posting models.Posting) (models.Payment, error) {
	invoiceID, err := r.billing.ResolveInvoice(ctx, posting.ExternalRef)
	if err != nil {
		return models.Payment{}, err
	}
	return r.billing.RecordPayment(ctx, invoiceID, AmountCents(posting.Amount))
}

// Execute is Run followed by reporting. It sends the run summary, publishes
// newly recorded payments and journals the run; it returns Run's error.
func (r *Reconciler) Execute(ctx context.Context) (*Outcome, error) {
	runID := uuid.NewString()
	started := r.now()

	outcome, err := r.run(ctx, runID)
	if err != nil {
		r.logger.Error("run aborted", "run_id", runID, "error", err)
		r.notify(ctx, FailureNotification(err))
	} else {
		r.publish(ctx, outcome)
		r.notify(ctx, successNotification(outcome))
	}

	report := newRunReport(outcome, started, r.now(), err)
	if serr := r.runs.SaveRun(ctx, report); serr != nil {
		r.logger.Error("failed to save run report", "run_id", runID, "error", serr)
	}
	return outcome, err
}

func (r *Reconciler) publish(ctx context.Context, outcome *Outcome) {
	if r.publisher == nil {
		return
	}
	for _, rec := range outcome.NewlyRecorded() {
		event := events.InvoiceReconciled{
			RunID:        outcome.RunID,
			InvoiceID:    string(rec.Payment.Invoice.ID),
			CustomerID:   rec.Payment.Invoice.CustomerID,
			PostingID:    rec.Posting.ID,
			ExternalRef:  rec.Posting.ExternalRef,
			AmountCents:  rec.Payment.AmountCents,
			CurrencyCode: rec.Payment.Invoice.CurrencyCode,
			AmountDue:    rec.Payment.Invoice.AmountDue,
			OccurredAt:   r.now(),
		}
		if err := r.publisher.Publish(ctx, r.topic, event); err != nil {
			r.logger.Error("failed to publish event", "run_id", outcome.RunID, "invoice_id", event.InvoiceID, "error", err)
		}
	}
}

// notify never fails the run.
func (r *Reconciler) notify(ctx context.Context, n models.Notification) {
	if err := r.notifier.Notify(ctx, n); err != nil {
		r.logger.Error("failed to send notification", "title", n.Title, "error", err)
	}
}

func newRunReport(outcome *Outcome, started, finished time.Time, err error) models.RunReport {
	report := models.RunReport{
		ID:         outcome.RunID,
		StartedAt:  started,
		FinishedAt: finished,
		Status:     models.RunSucceeded,
		WindowFrom: outcome.Window.DateFrom(),
		WindowTo:   outcome.Window.DateTo(),
		Fetched:    outcome.Fetched,
		Eligible:   outcome.Eligible,
	}
	for _, rec := range outcome.Recorded {
		report.RecordedInvoices = append(report.RecordedInvoices, string(rec.Payment.Invoice.ID))
	}
	for _, f := range outcome.Failures {
		report.FailedPostings = append(report.FailedPostings, f.PostingID)
	}
	if err != nil {
		report.Status = models.RunFailed
		report.Error = fmt.Sprint(err)
	}
	return report
}
