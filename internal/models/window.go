package models

import (
	"errors"
	"time"
)

// DateLayout is the calendar date format used by the ledger service.
const DateLayout = "2006-01-02"

// LedgerWindow is a date range, From inclusive and To exclusive.
type LedgerWindow struct {
	From time.Time
	To   time.Time
}

// WindowAround returns the window [day-1, day+1) for a given instant.
func WindowAround(now time.Time) LedgerWindow {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return LedgerWindow{
		From: today.AddDate(0, 0, -1),
		To:   today.AddDate(0, 0, 1),
	}
}

func (w LedgerWindow) DateFrom() string { return w.From.Format(DateLayout) }

func (w LedgerWindow) DateTo() string { return w.To.Format(DateLayout) }

// Validate checks that the window spans at least one calendar day.
func (w LedgerWindow) Validate() error {
	if w.DateFrom() >= w.DateTo() {
		return errors.New("window start must be before window end")
	}
	return nil
}

// SessionCredential is the short-lived ledger session token for one run.
type SessionCredential struct {
	Token     string
	ExpiresOn time.Time
}
