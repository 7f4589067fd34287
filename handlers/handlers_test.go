package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/duetcare/access-engine/services"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHandleServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"authentication absent", services.ErrAuthenticationAbsent, http.StatusNotFound},
		{"authorization denied", services.ErrAuthorizationDenied, http.StatusNotFound},
		{"record not found", services.ErrAssessmentNotFound, http.StatusNotFound},
		{"user not found", services.ErrUserNotFound, http.StatusNotFound},
		{"unregistered resource type", services.ErrUnregisteredResourceType, http.StatusNotFound},
		{"consent on vital interest", services.ErrConsentOnVitalInterest, http.StatusConflict},
		{"pairing conflict", services.ErrPairingConflict, http.StatusConflict},
		{"stale version", services.ErrConcurrentUpdate, http.StatusConflict},
		{"validation", services.ErrInvalidInput, http.StatusBadRequest},
		{"unknown error", errors.New("database on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleServiceError(rec, tc.err, zap.NewNop())
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestDeniedAndMissingAreIndistinguishable(t *testing.T) {
	// The core non-disclosure property at the HTTP boundary. Absent
	// authentication, a denied read and a record that does not exist
	// must all produce byte-identical responses.
	outcomes := []error{
		services.ErrAuthenticationAbsent,
		services.ErrAuthorizationDenied,
		services.ErrAssessmentNotFound,
		services.ErrUnregisteredResourceType,
	}

	var bodies []string
	for _, err := range outcomes {
		rec := httptest.NewRecorder()
		HandleServiceError(rec, err, zap.NewNop())
		assert.Equal(t, http.StatusNotFound, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	for i := 1; i < len(bodies); i++ {
		assert.Equal(t, bodies[0], bodies[i])
	}
}

func TestInternalErrorBodyIsGeneric(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleServiceError(rec, errors.New("pq: connection refused to db-internal-host"), zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db-internal-host")
}

func TestHandleServiceErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleServiceError(rec, nil, zap.NewNop())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}
