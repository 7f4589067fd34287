package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/duetcare/access-engine/app"
	"github.com/duetcare/access-engine/middleware"
	"github.com/duetcare/access-engine/utils"
)

// GetOwnProfileHandler returns the joined view of the caller's own data.
// Anonymous callers get the same generic 404 any denied read produces.
func GetOwnProfileHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		profile, err := deps.Access.FetchOwnProfile(r.Context(), subject)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, profile)
	}
}

// DeactivateAccountHandler closes the caller's account. The account and
// its active pairing are closed together in one transaction; the
// caller's vital-interest records survive the closure.
func DeactivateAccountHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		if err := deps.Scopes.DeactivateUser(r.Context(), subject.ID); err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		utils.WriteNoContent(w)
	}
}

// UpsertPreferenceRequest is the body for PUT /me/preferences
type UpsertPreferenceRequest struct {
	Settings json.RawMessage `json:"settings" validate:"required"`
}

// UpsertPreferenceHandler writes the caller's preference record
func UpsertPreferenceHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		var req UpsertPreferenceRequest
		if err := decodeJSON(r, &req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		record, err := deps.Access.UpsertPreference(r.Context(), subject, req.Settings)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, record)
	}
}

// UpsertSafetyProfileRequest is the body for PUT /me/safety-profile
type UpsertSafetyProfileRequest struct {
	Plan json.RawMessage `json:"plan" validate:"required"`
}

// UpsertSafetyProfileHandler writes the caller's safety profile
func UpsertSafetyProfileHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		var req UpsertSafetyProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		profile, err := deps.Access.UpsertSafetyProfile(r.Context(), subject, req.Plan)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, profile)
	}
}

// AppendSafetySignalRequest is the body for POST /me/safety-signals
type AppendSafetySignalRequest struct {
	Source  string          `json:"source" validate:"required,max=128"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// AppendSafetySignalHandler appends a vital-interest signal to the
// caller's own stream. There is no route to update or delete one.
func AppendSafetySignalHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		var req AppendSafetySignalRequest
		if err := decodeJSON(r, &req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		signal, err := deps.Access.AppendSafetySignal(r.Context(), subject, req.Source, req.Payload)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteCreated(w, signal)
	}
}

// ListSafetySignalsHandler lists the caller's own safety signals
func ListSafetySignalsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())
		if subject == nil {
			_ = utils.WriteNotFound(w)
			return
		}

		signals, err := deps.Access.ListSafetySignals(r.Context(), subject, subject.ID, 100, 0)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, signals)
	}
}
