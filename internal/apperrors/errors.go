package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and HTTP mapping
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindStateConflict      Kind = "state_conflict"
	KindResourceExhausted  Kind = "resource_exhausted"
	KindExternalDependency Kind = "external_dependency"
	KindInvariantViolation Kind = "invariant_violation"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// Error is a classified, user-presentable error.
// Two errors match under errors.Is when their codes are equal, so sentinels
// survive WithReason and Wrap.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithReason returns a copy carrying a more specific human-readable message
func (e *Error) WithReason(format string, args ...interface{}) *Error {
	cp := *e
	cp.Message = fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...))
	return &cp
}

// Wrap returns a copy of e with cause attached
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

var (
	ErrInvalidAmount      = New(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrInvalidRequest     = New(KindValidation, "INVALID_REQUEST", "invalid request")
	ErrInvalidAddress     = New(KindValidation, "INVALID_ADDRESS", "invalid wallet address")
	ErrTokenNotFound      = New(KindNotFound, "TOKEN_NOT_FOUND", "token not found")
	ErrSlippageExceeded   = New(KindStateConflict, "SLIPPAGE_EXCEEDED", "slippage tolerance exceeded")
	ErrPoolGraduated      = New(KindStateConflict, "POOL_GRADUATED", "curve trading is closed for this token")
	ErrCurveExhausted     = New(KindStateConflict, "CURVE_EXHAUSTED", "trade would exhaust curve reserves")
	ErrNotAnEarner        = New(KindNotFound, "NOT_AN_EARNER", "caller is not a fee earner for this token")
	ErrInsufficientAmount = New(KindValidation, "INSUFFICIENT_AMOUNT", "unclaimed amount is below the minimum claim")
	ErrClaimInProgress    = New(KindStateConflict, "CLAIM_IN_PROGRESS", "a claim is already in progress for this token")
	ErrVersionConflict    = New(KindStateConflict, "VERSION_CONFLICT", "concurrent modification detected")
	ErrAlreadyReconciled  = New(KindStateConflict, "ALREADY_RECONCILED", "claim reconciliation already moved on")
	ErrInvariantViolation = New(KindInvariantViolation, "INVARIANT_VIOLATION", "ledger invariant violated")
	ErrTokenHalted        = New(KindInvariantViolation, "TOKEN_HALTED", "token is halted pending operator review")

	ErrInsufficientTreasury = New(KindResourceExhausted, "INSUFFICIENT_TREASURY", "treasury balance is insufficient")
	ErrMigrationInProgress  = New(KindStateConflict, "MIGRATION_IN_PROGRESS", "graduation is running in another process")
	ErrTransactionFailed    = New(KindExternalDependency, "TRANSACTION_FAILED", "transaction failed")
	ErrConfirmationTimeout  = New(KindExternalDependency, "CONFIRMATION_TIMEOUT", "transaction confirmation timed out")
	ErrSubmissionUncertain  = New(KindExternalDependency, "SUBMISSION_UNCERTAIN", "transaction may have been broadcast")
	ErrRPC                  = New(KindExternalDependency, "RPC_ERROR", "blockchain rpc request failed")
	ErrProtocol             = New(KindExternalDependency, "PROTOCOL_ERROR", "liquidity protocol request failed")

	ErrAuthHeaderMissing = New(KindUnauthorized, "AUTH_HEADER_MISSING", "authorization header required")
	ErrAuthFormat        = New(KindUnauthorized, "INVALID_AUTH_FORMAT", "authorization must use the Bearer scheme")
	ErrAuthFailed        = New(KindUnauthorized, "AUTH_FAILED", "wallet authentication failed")
	ErrForbidden         = New(KindForbidden, "INSUFFICIENT_PERMISSIONS", "insufficient permissions")
	ErrRateLimited       = New(KindRateLimited, "RATE_LIMITED", "too many requests")
)

// KindOf reports the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of err, or "INTERNAL" for unclassified errors
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}
