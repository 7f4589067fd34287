package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	// ErrorTypeAuthenticationAbsent means the external subject could not be
	// resolved to an internal user. Externally indistinguishable from a
	// denial; kept separate for audit logging.
	ErrorTypeAuthenticationAbsent ErrorType = "authentication_absent"

	// ErrorTypeAuthorizationDenied means a resolved subject was refused by
	// policy. Surfaces as "no data" to external callers.
	ErrorTypeAuthorizationDenied ErrorType = "authorization_denied"

	// ErrorTypePolicyConfiguration marks a deployment-time defect such as
	// an unregistered resource type. Logged loudly, denied at runtime.
	ErrorTypePolicyConfiguration ErrorType = "policy_configuration"

	// ErrorTypeConsentConflict marks caller misuse of the consent ledger,
	// e.g. setting consent on a vital-interest record.
	ErrorTypeConsentConflict ErrorType = "consent_conflict"

	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Security outcomes. These never reach external callers as errors; the
	// access layer collapses them to empty results.
	ErrAuthenticationAbsent = NewDomainError(ErrorTypeAuthenticationAbsent, "subject could not be resolved", nil)
	ErrAuthorizationDenied  = NewDomainError(ErrorTypeAuthorizationDenied, "access denied by policy", nil)

	// Configuration defects (loud, deployment-time bugs)
	ErrUnregisteredResourceType = NewDomainError(ErrorTypePolicyConfiguration, "resource type not registered with classifier", nil)

	// Caller-usage conflicts (loud, synchronous)
	ErrConsentOnVitalInterest = NewDomainError(ErrorTypeConsentConflict, "consent cannot be set on a vital-interest record", nil)
	ErrPairingConflict        = NewDomainError(ErrorTypeConflict, "user already belongs to an active pairing", nil)
	ErrConcurrentUpdate       = NewDomainError(ErrorTypeConflict, "concurrent update detected", nil)

	// Not Found Errors
	ErrUserNotFound       = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrPairingNotFound    = NewDomainError(ErrorTypeNotFound, "pairing not found", nil)
	ErrRecordNotFound     = NewDomainError(ErrorTypeNotFound, "record not found", nil)
	ErrAssessmentNotFound = NewDomainError(ErrorTypeNotFound, "assessment response not found", nil)

	// Validation Errors
	ErrInvalidInput      = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidSubject    = NewDomainError(ErrorTypeValidation, "invalid external subject identifier", nil)
	ErrSelfPairing       = NewDomainError(ErrorTypeValidation, "a user cannot be paired with themselves", nil)
	ErrInvalidOperation  = NewDomainError(ErrorTypeValidation, "unrecognized operation", nil)
	ErrImmutableResource = NewDomainError(ErrorTypeValidation, "vital-interest records are append-only", nil)

	// Internal Errors
	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)
)

// Error type checking helper functions

// IsAuthenticationAbsent checks if an error is an unresolved-subject outcome
func IsAuthenticationAbsent(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeAuthenticationAbsent
	}
	return false
}

// IsAuthorizationDenied checks if an error is a policy denial
func IsAuthorizationDenied(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeAuthorizationDenied
	}
	return false
}

// IsSecurityOutcome reports whether the error must be silent at the
// external boundary: both unresolved subjects and policy denials surface
// as "no data", so a denied read is indistinguishable from a missing row.
func IsSecurityOutcome(err error) bool {
	return IsAuthenticationAbsent(err) || IsAuthorizationDenied(err)
}

// IsPolicyConfigurationError checks if an error is a deployment-time defect
func IsPolicyConfigurationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypePolicyConfiguration
	}
	return false
}

// IsConsentConflict checks if an error is consent-ledger misuse
func IsConsentConflict(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConsentConflict
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConflict
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
