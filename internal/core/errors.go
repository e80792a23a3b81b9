package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("state conflict")
	ErrNotFound   = errors.New("not found")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrSameAccount   = errors.New("cannot transfer to the same account")
	ErrTransferLeg   = errors.New("transaction is part of a transfer; change the transfer instead")

	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDebtWouldBePositive  = errors.New("debt account balance cannot become positive")
	ErrCurrencyMismatch     = errors.New("accounts have different currencies")
	ErrWithdrawalNotAllowed = errors.New("withdrawals are not allowed from this savings account")
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

// ValidationErrors collects field errors; it matches ErrValidation.
type ValidationErrors []ValidationError

func (v *ValidationErrors) Add(field, msg string) {
	*v = append(*v, ValidationError{Field: field, Msg: msg})
}

// Err returns nil when nothing was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Fields returns the names of the rejected fields.
func (v ValidationErrors) Fields() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Field
	}
	return out
}

// NewValidationError builds a single-field validation error that also
// matches cause, when given.
func NewValidationError(field, msg string, cause error) error {
	errs := ValidationErrors{{Field: field, Msg: msg}}
	if cause == nil {
		return errs
	}
	return fmt.Errorf("%w: %w", errs, cause)
}

// ConflictError reports a mutation rejected because of current ledger state.
type ConflictError struct {
	Reason error
	Detail string
}

func (e *ConflictError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return e.Reason.Error() + ": " + e.Detail
}

func (e *ConflictError) Unwrap() error { return e.Reason }

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Conflict wraps one of the state-conflict sentinels.
func Conflict(reason error, format string, args ...any) error {
	return &ConflictError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err was a rejected input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict reports whether err was a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
