package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Authentication & Authorization Errors (AUTH_*)
	ErrorCodeAuthMissing      ErrorCode = "AUTH_MISSING"
	ErrorCodeAuthInvalid      ErrorCode = "AUTH_INVALID"
	ErrorCodeAuthAccessDenied ErrorCode = "AUTH_ACCESS_DENIED"

	// Plan Errors (PLAN_*)
	ErrorCodePlanNotFound ErrorCode = "PLAN_NOT_FOUND"
	ErrorCodePlanExists   ErrorCode = "PLAN_ALREADY_EXISTS"

	// Subscription Errors (SUB_*)
	ErrorCodeSubNotFound      ErrorCode = "SUB_NOT_FOUND"
	ErrorCodeSubActiveExists  ErrorCode = "SUB_ACTIVE_EXISTS"
	ErrorCodeSubInvalidState  ErrorCode = "SUB_INVALID_STATE"
	ErrorCodeSubCancelFailed  ErrorCode = "SUB_CANCEL_FAILED"
	ErrorCodeSubRenewRejected ErrorCode = "SUB_RENEW_REJECTED"

	// Card Errors (CARD_*)
	ErrorCodeCardNotFound       ErrorCode = "CARD_NOT_FOUND"
	ErrorCodeCardNotOwner       ErrorCode = "CARD_NOT_OWNER"
	ErrorCodeCardAlreadyDefault ErrorCode = "CARD_ALREADY_DEFAULT"
	ErrorCodeCardDetachFailed   ErrorCode = "CARD_DETACH_FAILED"

	// Transaction Errors (TXN_*)
	ErrorCodeTxnNotFound ErrorCode = "TXN_NOT_FOUND"

	// Payment Errors (PAYMENT_*)
	ErrorCodePaymentCreate ErrorCode = "PAYMENT_CREATE_ERROR"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePlanNotFound ||
		code == ErrorCodeSubNotFound ||
		code == ErrorCodeCardNotFound ||
		code == ErrorCodeTxnNotFound
}

// IsAuthError checks if an error is authentication/authorization related
func IsAuthError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAuthMissing ||
		code == ErrorCodeAuthInvalid ||
		code == ErrorCodeAuthAccessDenied ||
		code == ErrorCodeCardNotOwner
}

// IsConflictError checks if an error represents a rejected duplicate or
// an illegal state change, both surfaced as HTTP 400.
func IsConflictError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePlanExists ||
		code == ErrorCodeSubActiveExists ||
		code == ErrorCodeSubInvalidState ||
		code == ErrorCodeSubCancelFailed ||
		code == ErrorCodeSubRenewRejected ||
		code == ErrorCodeCardAlreadyDefault ||
		code == ErrorCodeCardDetachFailed
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorCode(err) == ErrorCodeValidationFailed
}

// Structured error instances. Messages are the literal response details
// the API exposes.
var (
	ErrAuthMissing  = NewDomainError(ErrorCodeAuthMissing, "authentication required")
	ErrAuthInvalid  = NewDomainError(ErrorCodeAuthInvalid, "invalid or expired token")
	ErrAccessDenied = NewDomainError(ErrorCodeAuthAccessDenied, "Forbidden")

	ErrPlanNotFound = NewDomainError(ErrorCodePlanNotFound, "Subscription plan not found")
	ErrPlanExists   = NewDomainError(ErrorCodePlanExists, "Subscription plan with this title already exists")

	ErrSubscriptionNotFound  = NewDomainError(ErrorCodeSubNotFound, "Subscription not found")
	ErrActiveSubscription    = NewDomainError(ErrorCodeSubActiveExists, "Active subscription already exists")
	ErrSubscriptionCancel    = NewDomainError(ErrorCodeSubCancelFailed, "Subscription cannot be cancelled")
	ErrInvalidStatusChange   = NewDomainError(ErrorCodeSubInvalidState, "Illegal subscription status change")
	ErrSubscriptionNotActive = NewDomainError(ErrorCodeSubRenewRejected, "Subscription is not active")

	ErrCardNotFound       = NewDomainError(ErrorCodeCardNotFound, "User card not found")
	ErrCardsNotFound      = NewDomainError(ErrorCodeCardNotFound, "User cards not found")
	ErrCardNotOwner       = NewDomainError(ErrorCodeCardNotOwner, "Forbidden")
	ErrCardAlreadyDefault = NewDomainError(ErrorCodeCardAlreadyDefault, "Card is already set as default")
	ErrCardDetach         = NewDomainError(ErrorCodeCardDetachFailed, "Sorry try again later")

	ErrTransactionNotFound = NewDomainError(ErrorCodeTxnNotFound, "Transaction not found")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
