package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/payments-reconciler/internal/models"
	"github.com/sheikh-saqib/payments-reconciler/internal/models/events"
	"github.com/sheikh-saqib/payments-reconciler/internal/storage/memory"
)

// 2024-01-02 gives the window [2024-01-01, 2024-01-03).
var fixedNow = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

type fakeLedger struct {
	tokenErr  error
	ledgerErr error
	postings  map[int64]models.Posting
	failing   map[int64]bool

	mu         sync.Mutex
	expiration time.Time
	window     models.LedgerWindow
	fetched    []int64
}

func (f *fakeLedger) CreateSessionToken(_ context.Context, expiration time.Time) (models.SessionCredential, error) {
	f.mu.Lock()
	f.expiration = expiration
	f.mu.Unlock()
	if f.tokenErr != nil {
		return models.SessionCredential{}, f.tokenErr
	}
	return models.SessionCredential{Token: "session", ExpiresOn: expiration}, nil
}

func (f *fakeLedger) FetchLedger(_ context.Context, window models.LedgerWindow, cred models.SessionCredential) (models.Ledger, error) {
	f.mu.Lock()
	f.window = window
	f.mu.Unlock()
	if f.ledgerErr != nil {
		return models.Ledger{}, f.ledgerErr
	}
	// split across two accounts to exercise flattening
	var ledger models.Ledger
	ledger.Values = []models.LedgerAccount{{}, {}}
	i := 0
	for id := range f.postings {
		ledger.Values[i%2].Postings = append(ledger.Values[i%2].Postings, models.Posting{ID: id})
		i++
	}
	for id := range f.failing {
		ledger.Values[0].Postings = append(ledger.Values[0].Postings, models.Posting{ID: id})
	}
	return ledger, nil
}

func (f *fakeLedger) FetchPosting(_ context.Context, id int64, cred models.SessionCredential) (models.Posting, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()
	if f.failing[id] {
		return models.Posting{}, &models.Error{Kind: models.KindPosting, Err: errors.New("gateway timeout")}
	}
	return f.postings[id], nil
}

type fakeBilling struct {
	invoices       map[string]models.InvoiceID
	alreadySettled map[models.InvoiceID]bool
	recordErr      map[models.InvoiceID]error
	delay          time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu       sync.Mutex
	recorded map[models.InvoiceID]int64
}

func (f *fakeBilling) enter() func() {
	n := f.inFlight.Add(1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeBilling) ResolveInvoice(_ context.Context, ref string) (models.InvoiceID, error) {
	defer f.enter()()
	time.Sleep(f.delay)
	id, ok := f.invoices[ref]
	if !ok {
		return "", &models.Error{Kind: models.KindInvoiceNotFound, Op: "resolve " + ref, Err: models.ErrNoReferenceMatch}
	}
	return id, nil
}

func (f *fakeBilling) RecordPayment(_ context.Context, id models.InvoiceID, cents int64) (models.Payment, error) {
	defer f.enter()()
	time.Sleep(f.delay)
	if err := f.recordErr[id]; err != nil {
		return models.Payment{}, err
	}
	f.mu.Lock()
	if f.recorded == nil {
		f.recorded = map[models.InvoiceID]int64{}
	}
	f.recorded[id] = cents
	f.mu.Unlock()
	return models.Payment{
		Invoice:        models.Invoice{ID: id, CustomerID: "cus_" + string(id), CurrencyCode: "NOK", AmountPaid: cents},
		Customer:       models.Customer{ID: "cus_" + string(id), Company: "Acme AS", Email: "ola@acme.no"},
		AmountCents:    cents,
		AlreadySettled: f.alreadySettled[id],
	}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	got  []models.Notification
	fail bool
}

func (f *fakeNotifier) Notify(_ context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, n)
	if f.fail {
		return errors.New("webhook unavailable")
	}
	return nil
}

func (f *fakeNotifier) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []string
	for _, n := range f.got {
		titles = append(titles, n.Title)
	}
	return titles
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (f *fakePublisher) Publish(_ context.Context, topic string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.events = append(f.events, event)
	return nil
}

func incoming(id int64, ref, amount string) models.Posting {
	return models.Posting{
		ID:          id,
		Type:        models.PostingTypeIncomingPayment,
		ExternalRef: ref,
		Amount:      decimal.RequireFromString(amount),
	}
}

func scenario() (*fakeLedger, *fakeBilling) {
	ledger := &fakeLedger{postings: map[int64]models.Posting{
		1: incoming(1, "KID123", "-50.00"),
		2: incoming(2, "KID999", "-75.50"),
		3: {ID: 3, Type: models.PostingTypeWage, ExternalRef: "KID123", Amount: decimal.RequireFromString("-1200")},
	}}
	billing := &fakeBilling{invoices: map[string]models.InvoiceID{"KID123": "inv_1"}}
	return ledger, billing
}

func TestRunEndToEnd(t *testing.T) {
	ledger, billing := scenario()
	notifier := &fakeNotifier{}
	r := New(ledger, billing, notifier, WithClock(func() time.Time { return fixedNow }))

	outcome, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", ledger.window.DateFrom())
	assert.Equal(t, "2024-01-03", ledger.window.DateTo())
	assert.Equal(t, "2024-01-03", ledger.expiration.Format(models.DateLayout))
	assert.ElementsMatch(t, []int64{1, 2, 3}, ledger.fetched)

	assert.Equal(t, 3, outcome.Fetched)
	assert.Equal(t, 2, outcome.Eligible)
	require.Len(t, outcome.Recorded, 1)
	assert.Equal(t, models.InvoiceID("inv_1"), outcome.Recorded[0].Payment.Invoice.ID)
	assert.Equal(t, int64(1), outcome.Recorded[0].Posting.ID)
	assert.Equal(t, map[models.InvoiceID]int64{"inv_1": 5000}, billing.recorded)

	require.Len(t, outcome.Failures, 1)
	assert.Equal(t, int64(2), outcome.Failures[0].PostingID)
	assert.Equal(t, "KID999", outcome.Failures[0].ExternalRef)
	assert.Equal(t, models.KindInvoiceNotFound, outcome.Failures[0].Kind())
	assert.ErrorIs(t, outcome.Failures[0].Err, models.ErrBilling)

	assert.Equal(t, []string{titlePaymentRecorded, titlePostingsFailed}, notifier.titles())
	payment := notifier.got[0]
	assert.Equal(t, []models.Field{
		{Key: "Invoice ID", Value: "inv_1"},
		{Key: "Company", Value: "Acme AS"},
		{Key: "User", Value: "ola@acme.no"},
		{Key: "Amount Paid", Value: "NOK 50"},
		{Key: "Amount Due", Value: "NOK 0"},
	}, payment.Fields)
	assert.Equal(t, "Posting 2 (KID999)", notifier.got[1].Fields[0].Key)
}

func TestRunPartialFailureIsolation(t *testing.T) {
	const n, failing = 9, 4

	ledger := &fakeLedger{postings: map[int64]models.Posting{}}
	billing := &fakeBilling{
		invoices:  map[string]models.InvoiceID{},
		recordErr: map[models.InvoiceID]error{},
	}
	for i := int64(1); i <= n; i++ {
		ref := fmt.Sprintf("KID%d", i)
		ledger.postings[i] = incoming(i, ref, "-10")
		id := models.InvoiceID(fmt.Sprintf("inv_%d", i))
		billing.invoices[ref] = id
		if i <= failing {
			billing.recordErr[id] = &models.Error{Kind: models.KindBilling, Err: errors.New("rejected")}
		}
	}

	outcome, err := New(ledger, billing, &fakeNotifier{}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, outcome.Recorded, n-failing)
	assert.Len(t, outcome.Failures, failing)
	for _, f := range outcome.Failures {
		assert.Equal(t, models.KindBilling, f.Kind())
	}
}

func TestRunConcurrencyCap(t *testing.T) {
	ledger := &fakeLedger{postings: map[int64]models.Posting{}}
	billing := &fakeBilling{invoices: map[string]models.InvoiceID{}, delay: 20 * time.Millisecond}
	for i := int64(1); i <= 8; i++ {
		ref := fmt.Sprintf("KID%d", i)
		ledger.postings[i] = incoming(i, ref, "-10")
		billing.invoices[ref] = models.InvoiceID(ref)
	}

	outcome, err := New(ledger, billing, &fakeNotifier{}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, outcome.Recorded, 8)
	// Eight slow units saturate the limit without exceeding it.
	assert.Equal(t, int32(DefaultConcurrency), billing.maxInFlight.Load())
	assert.Equal(t, int32(0), billing.inFlight.Load())
}

func TestRunAborts(t *testing.T) {
	t.Run("token", func(t *testing.T) {
		ledger, billing := scenario()
		ledger.tokenErr = &models.Error{Kind: models.KindToken, Err: errors.New("401")}

		_, err := New(ledger, billing, &fakeNotifier{}).Run(context.Background())
		require.ErrorIs(t, err, models.ErrToken)
		assert.Empty(t, ledger.fetched)
	})

	t.Run("ledger", func(t *testing.T) {
		ledger, billing := scenario()
		ledger.ledgerErr = &models.Error{Kind: models.KindLedger, Err: errors.New("500")}

		_, err := New(ledger, billing, &fakeNotifier{}).Run(context.Background())
		require.ErrorIs(t, err, models.ErrLedger)
		assert.Empty(t, ledger.fetched)
		assert.Empty(t, billing.recorded)
	})
}

func TestRunIsolatesPostingFetchFailure(t *testing.T) {
	ledger, billing := scenario()
	ledger.failing = map[int64]bool{4: true}

	outcome, err := New(ledger, billing, &fakeNotifier{}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, outcome.Recorded, 1)

	kinds := map[int64]models.ErrorKind{}
	for _, f := range outcome.Failures {
		kinds[f.PostingID] = f.Kind()
	}
	assert.Equal(t, map[int64]models.ErrorKind{2: models.KindInvoiceNotFound, 4: models.KindPosting}, kinds)
}

func TestRunAlreadySettledIsNotNotified(t *testing.T) {
	ledger := &fakeLedger{postings: map[int64]models.Posting{1: incoming(1, "KID123", "-50")}}
	billing := &fakeBilling{
		invoices:       map[string]models.InvoiceID{"KID123": "inv_1"},
		alreadySettled: map[models.InvoiceID]bool{"inv_1": true},
	}
	notifier := &fakeNotifier{}

	outcome, err := New(ledger, billing, notifier).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcome.Recorded, 1)
	assert.True(t, outcome.Recorded[0].Payment.AlreadySettled)
	assert.Empty(t, outcome.NewlyRecorded())
	assert.Empty(t, notifier.titles())
}

func TestRunNotifierFailureIsNotFatal(t *testing.T) {
	ledger, billing := scenario()
	outcome, err := New(ledger, billing, &fakeNotifier{fail: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, outcome.Recorded, 1)
}

func TestExecuteSuccess(t *testing.T) {
	ledger, billing := scenario()
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	runs := memory.NewMemoryRunStore()

	r := New(ledger, billing, notifier,
		WithClock(func() time.Time { return fixedNow }),
		WithEventPublisher(publisher, "invoice_reconciled"),
		WithRunStore(runs),
	)

	outcome, err := r.Execute(context.Background())
	require.NoError(t, err)

	titles := notifier.titles()
	assert.Equal(t, titleRunSucceeded, titles[len(titles)-1])
	summary := notifier.got[len(notifier.got)-1]
	assert.Equal(t, []models.Field{
		{Key: "status", Value: "success"},
		{Key: "recorded", Value: "1"},
		{Key: "failed", Value: "1"},
	}, summary.Fields)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, []string{"invoice_reconciled"}, publisher.topics)
	event, ok := publisher.events[0].(events.InvoiceReconciled)
	require.True(t, ok)
	assert.Equal(t, "inv_1", event.InvoiceID)
	assert.Equal(t, int64(5000), event.AmountCents)
	assert.Equal(t, "KID123", event.ExternalRef)
	assert.Equal(t, outcome.RunID, event.RunID)

	reports, err := runs.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	report := reports[0]
	assert.Equal(t, outcome.RunID, report.ID)
	assert.Equal(t, models.RunSucceeded, report.Status)
	assert.Equal(t, "2024-01-01", report.WindowFrom)
	assert.Equal(t, "2024-01-03", report.WindowTo)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 2, report.Eligible)
	assert.Equal(t, []string{"inv_1"}, report.RecordedInvoices)
	assert.Equal(t, []int64{2}, report.FailedPostings)
}

func TestExecuteFailure(t *testing.T) {
	ledger, billing := scenario()
	ledger.tokenErr = &models.Error{Kind: models.KindToken, Err: errors.New("401")}
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	runs := memory.NewMemoryRunStore()

	_, err := New(ledger, billing, notifier, WithEventPublisher(publisher, "t"), WithRunStore(runs)).
		Execute(context.Background())
	require.ErrorIs(t, err, models.ErrToken)

	assert.Equal(t, []string{titleRunFailed}, notifier.titles())
	assert.Equal(t, "message", notifier.got[0].Fields[0].Key)
	assert.Contains(t, notifier.got[0].Fields[0].Value, "401")
	assert.Empty(t, publisher.events)

	reports, err := runs.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, models.RunFailed, reports[0].Status)
	assert.Contains(t, reports[0].Error, "401")
}

func TestPaymentNotificationWithPhone(t *testing.T) {
	n := paymentNotification(models.Payment{
		Invoice:  models.Invoice{ID: "inv_9", CurrencyCode: "NOK", AmountPaid: 7599, AmountDue: 10050},
		Customer: models.Customer{Company: "Fjord AS", Email: "kari@fjord.no", Phone: "+4799999999"},
	})
	assert.Equal(t, "kari@fjord.no (+4799999999)", n.Fields[2].Value)
	assert.Equal(t, "NOK 75", n.Fields[3].Value)
	assert.Equal(t, "NOK 100", n.Fields[4].Value)
}
