package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// LedgerErrType enumerates the reasons why the ledger rejects an operation.
type LedgerErrType uint32

const (
	// NotOperational ...
	NotOperational LedgerErrType = iota
	// Unauthorized ...
	Unauthorized
	// AlreadyRegistered ...
	AlreadyRegistered
	// NotRegistered ...
	NotRegistered
	// NotFunded ...
	NotFunded
	// InsufficientStake ...
	InsufficientStake
	// InsufficientFee ...
	InsufficientFee
	// AlreadyDeparted ...
	AlreadyDeparted
	// NoSuchFlight ...
	NoSuchFlight
	// NoSuchRequest ...
	NoSuchRequest
	// ZeroPayment ...
	ZeroPayment
	// PaymentTooLarge ...
	PaymentTooLarge
	// AlreadyInsured ...
	AlreadyInsured
	// IndexMismatch ...
	IndexMismatch
	// NoCredit ...
	NoCredit
	// InvalidStatus ...
	InvalidStatus
	// InsufficientFunds ...
	InsufficientFunds
)

var ledgerErrNames = []string{
	"NotOperational",
	"Unauthorized",
	"AlreadyRegistered",
	"NotRegistered",
	"NotFunded",
	"InsufficientStake",
	"InsufficientFee",
	"AlreadyDeparted",
	"NoSuchFlight",
	"NoSuchRequest",
	"ZeroPayment",
	"PaymentTooLarge",
	"AlreadyInsured",
	"IndexMismatch",
	"NoCredit",
	"InvalidStatus",
	"InsufficientFunds",
}

// String returns the name of the error type.
func (t LedgerErrType) String() string {
	if int(t) < len(ledgerErrNames) {
		return ledgerErrNames[t]
	}
	return fmt.Sprintf("LedgerErrType(%d)", uint32(t))
}

// LedgerErrTypeFromString is the inverse of LedgerErrType.String. It is used
// to recover typed errors from transaction receipts.
func LedgerErrTypeFromString(s string) (LedgerErrType, bool) {
	for i, n := range ledgerErrNames {
		if n == s {
			return LedgerErrType(i), true
		}
	}
	return 0, false
}

// LedgerErr is returned synchronously by every mutating ledger operation that
// refuses to apply. Subject identifies the entity the check failed on (an
// address, a flight key, a request key).
type LedgerErr struct {
	errType LedgerErrType
	subject string
}

// NewLedgerErr ...
func NewLedgerErr(errType LedgerErrType, subject string) LedgerErr {
	return LedgerErr{
		errType: errType,
		subject: subject,
	}
}

// Type returns the error kind.
func (e LedgerErr) Type() LedgerErrType {
	return e.errType
}

// Subject returns the entity the check failed on.
func (e LedgerErr) Subject() string {
	return e.subject
}

// Error ...
func (e LedgerErr) Error() string {
	if e.subject == "" {
		return e.errType.String()
	}
	return fmt.Sprintf("%s: %s", e.errType, e.subject)
}

// IsLedger checks that an error is a LedgerErr of the given type.
func IsLedger(err error, t LedgerErrType) bool {
	ledgerErr, ok := errors.Cause(err).(LedgerErr)
	return ok && ledgerErr.errType == t
}
