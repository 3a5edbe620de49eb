// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"errors"
	"fmt"

	"github.com/federava/week2/types"
)

var (
	// ErrAccumulatorFull means the commitment tree has no free leaves left.
	ErrAccumulatorFull = errors.New("commitment tree is full")

	// ErrUnknownIndex means no commitment was inserted at the index.
	ErrUnknownIndex = errors.New("unknown leaf index")

	// ErrAccountNotFound means no shielded account is registered for the
	// owner address.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists means the owner already registered a different
	// shielded public key.
	ErrAccountExists = errors.New("account registered with a different key")
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

type ErrorCode int

const (
	ErrInvalidArity ErrorCode = iota
	ErrMalformedTx
	ErrInvalidFee
	ErrAmountOutOfRange
	ErrMissingEscrow
	ErrInsufficientCustody
	ErrUnsupportedToken
	ErrStaleRoot
	ErrInvalidProof
	ErrDoubleSpend
	ErrAmountMismatch
	ErrTreeFull
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidArity:        "ErrInvalidArity",
	ErrMalformedTx:         "ErrMalformedTx",
	ErrInvalidFee:          "ErrInvalidFee",
	ErrAmountOutOfRange:    "ErrAmountOutOfRange",
	ErrMissingEscrow:       "ErrMissingEscrow",
	ErrInsufficientCustody: "ErrInsufficientCustody",
	ErrUnsupportedToken:    "ErrUnsupportedToken",
	ErrStaleRoot:           "ErrStaleRoot",
	ErrInvalidProof:        "ErrInvalidProof",
	ErrDoubleSpend:         "ErrDoubleSpend",
	ErrAmountMismatch:      "ErrAmountMismatch",
	ErrTreeFull:            "ErrTreeFull",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ErrorClass groups error codes by how a caller can recover from them.
type ErrorClass int

const (
	// ValidationError is rejected before any state is touched. The caller
	// may resubmit a corrected transaction.
	ValidationError ErrorClass = iota
	// ConcurrencyError means the transaction lost a race for the root. The
	// caller must rebuild the proof against the current root.
	ConcurrencyError
	// IntegrityError means the transaction is malicious or stale and must
	// not be retried verbatim.
	IntegrityError
	// CapacityError is fatal for the pool instance.
	CapacityError
)

var errorClassStrings = map[ErrorClass]string{
	ValidationError:  "ValidationError",
	ConcurrencyError: "ConcurrencyError",
	IntegrityError:   "IntegrityError",
	CapacityError:    "CapacityError",
}

// String returns the ErrorClass as a human-readable name.
func (c ErrorClass) String() string {
	if s, ok := errorClassStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorClass (%d)", int(c))
}

// Class returns the recovery class of the error code.
func (e ErrorCode) Class() ErrorClass {
	switch e {
	case ErrStaleRoot:
		return ConcurrencyError
	case ErrInvalidProof, ErrDoubleSpend, ErrAmountMismatch:
		return IntegrityError
	case ErrTreeFull:
		return CapacityError
	default:
		return ValidationError
	}
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a transaction failed due to one of the many validation
// rules.  The caller can use type assertions to determine if a failure was
// specifically due to a rule violation and access the ErrorCode field to
// ascertain the specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human-readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates an RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// ErrorIs returns whether err is, or wraps, a RuleError with the code.
func ErrorIs(err error, code ErrorCode) bool {
	var ruleErr RuleError
	if errors.As(err, &ruleErr) && ruleErr.ErrorCode == code {
		return true
	}
	return false
}

// ClassOf returns the recovery class of a rule error. The second
// return value is false if err is not a rule error.
func ClassOf(err error) (ErrorClass, bool) {
	var ruleErr RuleError
	if !errors.As(err, &ruleErr) {
		return 0, false
	}
	return ruleErr.ErrorCode.Class(), true
}

// SettlementError is returned when a transaction was applied to the
// pool state but moving funds out of custody failed afterwards. The
// nullifiers and commitments are final; the transfer is stuck and
// needs operator remediation.
type SettlementError struct {
	TxID types.ID
	Err  error
}

// Error satisfies the error interface.
func (e *SettlementError) Error() string {
	return fmt.Sprintf("transaction %s applied but settlement failed: %s", e.TxID, e.Err)
}

// Unwrap returns the underlying settlement failure.
func (e *SettlementError) Unwrap() error {
	return e.Err
}
