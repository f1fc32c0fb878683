package domain

import (
	"errors"
	"fmt"
)

// FailureCode names a precondition violation reported by a core operation.
// Codes are stable identifiers; callers branch on them rather than on message
// text.
type FailureCode string

// Failure codes surfaced by the raise ledger core.
const (
	// CodeUnauthorized is returned when a non-operator calls an operator-only action.
	CodeUnauthorized FailureCode = "unauthorized"
	// CodeCapUnchanged is returned when a cap edit repeats the existing value.
	CodeCapUnchanged FailureCode = "cap_unchanged"
	// CodeCapBelowDeposited is returned when a cap edit would undercut committed funds.
	CodeCapBelowDeposited FailureCode = "cap_below_deposited"
	// CodeRaiseClosed is returned when a deposit arrives after the raise closed.
	CodeRaiseClosed FailureCode = "raise_closed"
	// CodeRaiseAlreadyClosed is returned when close-raise repeats on a closed raise.
	CodeRaiseAlreadyClosed FailureCode = "raise_already_closed"
	// CodeNotWhitelisted is returned when the depositor has no cap.
	CodeNotWhitelisted FailureCode = "not_whitelisted"
	// CodeBelowMinimumInvestment is returned when a deposit is under the configured floor.
	CodeBelowMinimumInvestment FailureCode = "below_minimum_investment"
	// CodeCapReached is returned when a deposit arrives with zero remaining room.
	CodeCapReached FailureCode = "cap_reached"
	// CodeInvalidAmount is returned when a supplied amount is negative.
	CodeInvalidAmount FailureCode = "invalid_amount"
)

// LedgerError reports a named precondition violation. Every violation aborts
// its operation with no partial effect; retry is a caller decision.
type LedgerError struct {
	Code        FailureCode
	Op          string
	Participant string
	Message     string
}

func (e LedgerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Participant != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Participant, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Is allows errors.Is matching against a bare LedgerError carrying only a code.
func (e LedgerError) Is(target error) bool {
	var other LedgerError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// CodeOf extracts the failure code from err, or "" when err carries none.
func CodeOf(err error) FailureCode {
	var le LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// TransferError wraps a failure from an external ledger collaborator. The
// underlying cause propagates unmodified via Unwrap.
type TransferError struct {
	Op  string
	Err error
}

func (e TransferError) Error() string {
	return fmt.Sprintf("%s: external ledger: %v", e.Op, e.Err)
}

func (e TransferError) Unwrap() error {
	return e.Err
}
