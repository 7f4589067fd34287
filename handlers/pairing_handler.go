package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/duetcare/access-engine/app"
	"github.com/duetcare/access-engine/middleware"
	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/utils"
	"github.com/go-chi/chi/v5"
)

// CreatePairingRequest is the body for POST /pairings. The caller is
// always one member; PartnerID names the other.
type CreatePairingRequest struct {
	PartnerID        string `json:"partner_id" validate:"required,uuid"`
	RelationshipType string `json:"relationship_type" validate:"required,oneof=partners engaged married co_parents"`
}

// CreatePairingHandler pairs the caller with another user. A second
// active pairing for either member is rejected with 409, never silently
// replaced.
func CreatePairingHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		var req CreatePairingRequest
		if err := decodeJSON(r, &req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		partnerID, err := utils.ParseUUID(req.PartnerID, "partner_id")
		if err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		pairing, err := deps.Scopes.CreatePairing(r.Context(), subject.ID, partnerID,
			models.RelationshipType(req.RelationshipType))
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteCreated(w, pairing)
	}
}

// DeactivatePairingRequest is the body for POST /pairings/{id}/deactivate
type DeactivatePairingRequest struct {
	Version int64 `json:"version" validate:"required,min=1"`
}

// DeactivatePairingHandler ends the caller's pairing. The version field
// carries the compare-and-swap token; a stale version gets 409.
func DeactivatePairingHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		pairingID, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		var req DeactivatePairingRequest
		if err := decodeJSON(r, &req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		// Only a current member may end the pairing
		pairing, err := deps.Scopes.GetPairing(r.Context(), pairingID)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		if !pairing.Contains(subject.ID) {
			_ = utils.WriteNotFound(w)
			return
		}

		if err := deps.Scopes.DeactivatePairing(r.Context(), pairingID, req.Version); err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		utils.WriteNoContent(w)
	}
}

// SendCommunicationRequest is the body for POST /communications
type SendCommunicationRequest struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// SendCommunicationHandler writes a record into the caller's pairing
func SendCommunicationHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		var req SendCommunicationRequest
		if err := decodeJSON(r, &req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		record, err := deps.Access.SendCommunication(r.Context(), subject, req.Payload)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteCreated(w, record)
	}
}

// ListCommunicationsHandler lists the caller's pairing history.
// Unauthorized rows are dropped, so an outsider sees an empty list.
func ListCommunicationsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.SubjectFromContext(r.Context())

		pairingID, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		records, err := deps.Access.ListCommunications(r.Context(), subject, pairingID, 100, 0)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, records)
	}
}
