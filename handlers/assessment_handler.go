package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/duetcare/access-engine/app"
	"github.com/duetcare/access-engine/middleware"
	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/services/consent"
	"github.com/duetcare/access-engine/utils"
	"github.com/go-chi/chi/v5"
)

// SubmitAssessmentRequest is the body for POST /assessments
type SubmitAssessmentRequest struct {
	AssessmentKey string          `json:"assessment_key" validate:"required,max=128"`
	Score         json.RawMessage `json:"score" validate:"required"`
}

// SubmitAssessmentHandler stores a new assessment response for the
// caller's pairing. Consent starts false; the caller grants it
// separately through the consent route.
func SubmitAssessmentHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		var req SubmitAssessmentRequest
		if err := decodeJSON(r, &req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		response, err := deps.Access.SubmitAssessment(r.Context(), subject, req.AssessmentKey, req.Score)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteCreated(w, response)
	}
}

// ListAssessmentsHandler lists the assessment responses visible to the
// caller within their active pairing.
func ListAssessmentsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())
		if subject == nil {
			_ = utils.WriteNotFound(w)
			return
		}

		scope, err := deps.Scopes.ScopeFor(r.Context(), subject.ID)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		if !scope.Paired() {
			_ = utils.WriteOK(w, []*models.AssessmentResponse{})
			return
		}

		responses, err := deps.Access.ListAssessments(r.Context(), subject, *scope.PairingID)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, responses)
	}
}

// GetAssessmentHandler fetches one assessment response
func GetAssessmentHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		response, err := deps.Access.GetAssessment(r.Context(), subject, id)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, response)
	}
}

// SetConsentRequest is the body for PUT /assessments/{id}/consent
type SetConsentRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

// SetConsentHandler flips the sharing flag on the caller's own response
func SetConsentHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		var req SetConsentRequest
		if err := decodeJSON(r, &req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		ref := consent.ResourceRef{Type: models.ResourceAssessment, ID: id}
		if err := deps.Ledger.SetConsent(r.Context(), subject, ref, *req.Granted); err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		if deps.Audit != nil {
			if recordErr := deps.Audit.RecordConsentChange(subject.ID, id, *req.Granted); recordErr != nil {
				deps.Logger.Debug("consent audit record dropped")
			}
		}
		utils.WriteNoContent(w)
	}
}

// GetConsentHandler reports the sharing flag of the caller's own response
func GetConsentHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		ref := consent.ResourceRef{Type: models.ResourceAssessment, ID: id}
		granted, err := deps.Ledger.GetConsent(r.Context(), subject, ref)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, map[string]bool{"granted": granted})
	}
}
