package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a gateway error for handling
type ErrorCategory string

const (
	CategoryCardDeclined   ErrorCategory = "card_declined"
	CategoryInvalidRequest ErrorCategory = "invalid_request"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryRateLimited    ErrorCategory = "rate_limited"
	CategoryGatewayError   ErrorCategory = "gateway_error"
	CategoryNetworkError   ErrorCategory = "network_error"
)

// PaymentError represents a payment gateway error with enough context to
// decide between client fault and gateway fault. IsRetriable is true for
// network failures and gateway-side errors, false for rejected requests.
type PaymentError struct {
	Details        map[string]interface{}
	Code           string
	Message        string
	GatewayMessage string
	Category       ErrorCategory
	IsRetriable    bool
}

func (e *PaymentError) Error() string {
	if e.GatewayMessage != "" {
		return fmt.Sprintf("%s: %s (gateway: %s)", e.Code, e.Message, e.GatewayMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, category ErrorCategory, retriable bool) *PaymentError {
	return &PaymentError{
		Code:        code,
		Message:     message,
		Category:    category,
		IsRetriable: retriable,
		Details:     make(map[string]interface{}),
	}
}

// WithGatewayMessage attaches the raw gateway message to the error
func (e *PaymentError) WithGatewayMessage(msg string) *PaymentError {
	e.GatewayMessage = msg
	return e
}

// AsPaymentError extracts a PaymentError from an error chain
func AsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetriable reports whether err is a retriable payment error. Unknown
// errors are treated as retriable gateway faults.
func IsRetriable(err error) bool {
	if pe, ok := AsPaymentError(err); ok {
		return pe.IsRetriable
	}
	return true
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
