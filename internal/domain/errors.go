package domain

import (
	"errors"
	"fmt"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Error codes surfaced to API callers.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodeOddsUnavailable     = "ODDS_UNAVAILABLE"
	CodeInvalidMatchState   = "INVALID_MATCH_STATE"
	CodeTransientFailure    = "TRANSIENT_FAILURE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: CodeForbidden, Message: msg, Status: 403}
}

func ErrInsufficientBalance(currency Currency) *AppError {
	return &AppError{
		Code:    CodeInsufficientBalance,
		Message: fmt.Sprintf("insufficient %s", currency),
		Reason:  string(currency),
		Status:  422,
	}
}

// ErrLimitExceeded reports the first limit a wager breached. reason is the
// machine-readable limit name, e.g. "max_stake".
func ErrLimitExceeded(reason string, limit, requested int64) *AppError {
	return &AppError{
		Code:    CodeLimitExceeded,
		Message: fmt.Sprintf("%s exceeded: limit %d, requested %d", reason, limit, requested),
		Reason:  reason,
		Status:  422,
	}
}

func ErrOddsUnavailable(msg string) *AppError {
	return &AppError{Code: CodeOddsUnavailable, Message: msg, Status: 422}
}

func ErrInvalidMatchState(matchID string, status MatchStatus, kind BetKind) *AppError {
	return &AppError{
		Code:    CodeInvalidMatchState,
		Message: fmt.Sprintf("match %s is %s, not bettable for %s bets", matchID, status, kind),
		Reason:  string(status),
		Status:  409,
	}
}

// ErrTransientFailure is returned once concurrency retries are exhausted.
// Callers may safely retry the whole request.
func ErrTransientFailure(op string, cause error) *AppError {
	return &AppError{Code: CodeTransientFailure, Message: op + " could not complete, retry later", Status: 503, Cause: cause}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Store-level sentinels. These never reach API callers directly.
var (
	// ErrVersionConflict means the balance row moved since it was read.
	ErrVersionConflict = errors.New("balance version conflict")
	// ErrClaimConflict means another settler owns the bet, or it is already terminal.
	ErrClaimConflict = errors.New("bet claim conflict")
	// ErrMatchNotFound means the match source has no snapshot for the id.
	ErrMatchNotFound = errors.New("match not found")
	// ErrNegativeBalance means a batch would drive a currency below zero.
	ErrNegativeBalance = errors.New("balance would go negative")
)
