package models

import (
	"errors"
)

// ErrorKind tags which integration point an error came from.
type ErrorKind int

const (
	KindToken ErrorKind = iota + 1
	KindLedger
	KindPosting
	KindBilling
	KindInvoiceNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindLedger:
		return "ledger"
	case KindPosting:
		return "posting"
	case KindBilling:
		return "billing"
	case KindInvoiceNotFound:
		return "invoice not found"
	default:
		return "unknown"
	}
}

// Error is the tagged error returned by the ledger and billing clients.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind. An invoice-not-found error also
// matches ErrBilling since both come from the billing integration.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind || (t.Kind == KindBilling && e.Kind == KindInvoiceNotFound)
}

// Kind sentinels, for use with errors.Is.
var (
	ErrToken           = &Error{Kind: KindToken}
	ErrLedger          = &Error{Kind: KindLedger}
	ErrPosting         = &Error{Kind: KindPosting}
	ErrBilling         = &Error{Kind: KindBilling}
	ErrInvoiceNotFound = &Error{Kind: KindInvoiceNotFound}
)

var (
	ErrMissingCredentials = errors.New("missing consumer or employee token")
	ErrNoReferenceMatch   = errors.New("no invoice found for external reference")
	ErrReferenceUnlinked  = errors.New("no invoice id associated with external reference")
	ErrInvalidAmount      = errors.New("amount must be positive")
)

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
