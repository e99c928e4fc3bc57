package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"

	"github.com/sheikh-saqib/payments-reconciler/internal/config"
	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

// Posting fetch retry defaults: 3 retries after the first attempt, doubling from 250ms.
const (
	DefaultRetryInitial = 250 * time.Millisecond
	DefaultMaxRetries   = 3
)

// companyID is sent as the basic auth username; 0 selects the employee's own company.
const companyID = "0"

// Client talks to the Tripletex ledger API.
// It authenticates a session and reads ledger windows and single postings.
type Client struct {
	baseURL       string
	consumerToken string
	employeeToken string
	userAgent     string

	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	retryInitial time.Duration
	maxRetries   uint
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock sets the clock used to validate token expirations.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a Client from the ledger settings.
func NewClient(cfg config.Tripletex, opts ...Option) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultTripletexBaseURL
	}
	c := &Client{
		baseURL:       baseURL,
		consumerToken: cfg.ConsumerToken,
		employeeToken: cfg.EmployeeToken,
		userAgent:     cfg.AppName,
		client:        &http.Client{Timeout: cfg.Timeout},
		logger:        slog.Default(),
		now:           time.Now,
		retryInitial:  cfg.RetryInitial,
		maxRetries:    cfg.MaxRetries,
	}
	if c.retryInitial <= 0 {
		c.retryInitial = DefaultRetryInitial
	}
	if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSessionToken opens a session that expires on the given date.
// No retry: every later call depends on it.
func (c *Client) CreateSessionToken(ctx context.Context, expiration time.Time) (models.SessionCredential, error) {
	fail := func(err error) (models.SessionCredential, error) {
		return models.SessionCredential{}, &models.Error{Kind: models.KindToken, Op: "create session", Err: err}
	}

	if c.consumerToken == "" || c.employeeToken == "" {
		return fail(models.ErrMissingCredentials)
	}
	if !expiration.After(c.now()) {
		return fail(fmt.Errorf("expiration %s is not in the future", expiration.Format(models.DateLayout)))
	}

	params := url.Values{}
	params.Set("consumerToken", c.consumerToken)
	params.Set("employeeToken", c.employeeToken)
	params.Set("expirationDate", expiration.Format(models.DateLayout))

	var resp struct {
		Value struct {
			Token          string `json:"token"`
			ExpirationDate string `json:"expirationDate"`
		} `json:"value"`
	}
	if err := c.do(ctx, http.MethodPut, "/token/session/create", params, nil, &resp); err != nil {
		return fail(err)
	}
	if resp.Value.Token == "" {
		return fail(fmt.Errorf("empty session token in response"))
	}

	return models.SessionCredential{Token: resp.Value.Token, ExpiresOn: expiration}, nil
}

// FetchLedger returns the ledger for the window. No retry: a partial
// window is never acceptable.
func (c *Client) FetchLedger(ctx context.Context, window models.LedgerWindow, cred models.SessionCredential) (models.Ledger, error) {
	if err := window.Validate(); err != nil {
		return models.Ledger{}, &models.Error{Kind: models.KindLedger, Op: "fetch ledger", Err: err}
	}

	params := url.Values{}
	params.Set("dateFrom", window.DateFrom())
	params.Set("dateTo", window.DateTo())

	var ledger models.Ledger
	if err := c.do(ctx, http.MethodGet, "/ledger", params, &cred, &ledger); err != nil {
		return models.Ledger{}, &models.Error{Kind: models.KindLedger, Op: "fetch ledger", Err: err}
	}
	return ledger, nil
}

// FetchPosting returns the full posting, retrying with exponential backoff.
func (c *Client) FetchPosting(ctx context.Context, id int64, cred models.SessionCredential) (models.Posting, error) {
	path := "/ledger/posting/" + strconv.FormatInt(id, 10)

	fetch := func() (models.Posting, error) {
		var resp struct {
			Value models.Posting `json:"value"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &cred, &resp); err != nil {
			return models.Posting{}, err
		}
		return resp.Value, nil
	}

	posting, err := backoff.Retry(ctx, fetch,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("posting fetch failed, retrying",
				"posting_id", id,
				"retry_in", next,
				"error", err,
			)
		}),
	)
	if err != nil {
		return models.Posting{}, &models.Error{Kind: models.KindPosting, Op: "fetch " + strconv.FormatInt(id, 10), Err: err}
	}
	return posting, nil
}

// backoff doubles from retryInitial with no jitter.
func (c *Client) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = c.retryInitial << 4
	b.Reset()
	return b
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, cred *models.SessionCredential, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if cred != nil {
		req.SetBasicAuth(companyID, cred.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// StatusError is a non-2xx response from the ledger API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

var _ interfaces.LedgerSource = (*Client)(nil)
