package models

import "time"

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunReport is the journal record written after each run.
type RunReport struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Status           RunStatus `json:"status"`
	WindowFrom       string    `json:"window_from"`
	WindowTo         string    `json:"window_to"`
	Fetched          int       `json:"fetched"`
	Eligible         int       `json:"eligible"`
	RecordedInvoices []string  `json:"recorded_invoices"`
	FailedPostings   []int64   `json:"failed_postings"`
	Error            string    `json:"error,omitempty"`
}
