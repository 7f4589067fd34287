package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(ErrorTypeConflict, "pairing exists", nil)
	assert.Equal(t, "conflict: pairing exists", err.Error())

	wrapped := NewDomainError(ErrorTypeInternal, "query failed", fmt.Errorf("connection reset"))
	assert.Contains(t, wrapped.Error(), "query failed")
	assert.Contains(t, wrapped.Error(), "connection reset")
}

func TestDomainError_Is(t *testing.T) {
	err := WrapError(ErrorTypeConflict, "second pairing rejected", nil)

	assert.True(t, errors.Is(err, ErrPairingConflict))
	assert.False(t, errors.Is(err, ErrAuthorizationDenied))
}

func TestDomainError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("row not found")
	err := NewDomainError(ErrorTypeNotFound, "user lookup failed", inner)

	assert.Equal(t, inner, errors.Unwrap(err))
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeConflict, "pairing exists", nil).
		WithDetail("user_id", "abc")

	assert.Equal(t, "abc", GetErrorDetails(err)["user_id"])
}

func TestIsSecurityOutcome(t *testing.T) {
	assert.True(t, IsSecurityOutcome(ErrAuthenticationAbsent))
	assert.True(t, IsSecurityOutcome(ErrAuthorizationDenied))
	assert.False(t, IsSecurityOutcome(ErrPairingConflict))
	assert.False(t, IsSecurityOutcome(ErrConsentOnVitalInterest))
	assert.False(t, IsSecurityOutcome(fmt.Errorf("plain error")))
}

func TestErrorTypeCheckers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
		want    bool
	}{
		{"authentication absent", ErrAuthenticationAbsent, IsAuthenticationAbsent, true},
		{"authorization denied", ErrAuthorizationDenied, IsAuthorizationDenied, true},
		{"policy configuration", ErrUnregisteredResourceType, IsPolicyConfigurationError, true},
		{"consent conflict", ErrConsentOnVitalInterest, IsConsentConflict, true},
		{"pairing conflict", ErrPairingConflict, IsConflictError, true},
		{"not found", ErrUserNotFound, IsNotFoundError, true},
		{"validation", ErrSelfPairing, IsValidationError, true},
		{"internal", ErrDatabaseError, IsInternalError, true},
		{"mismatch", ErrUserNotFound, IsConflictError, false},
		{"plain error", errors.New("plain"), IsNotFoundError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.checker(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeConflict, GetErrorType(ErrPairingConflict))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
}

func TestWrappedDomainErrorPreservesType(t *testing.T) {
	inner := NewDomainError(ErrorTypeConsentConflict, "consent on safety signal", nil)
	outer := fmt.Errorf("ledger write: %w", inner)

	assert.True(t, IsConsentConflict(outer))
	assert.Equal(t, ErrorTypeConsentConflict, GetErrorType(outer))
}
