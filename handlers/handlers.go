// Package handlers contains the HTTP handlers. Handlers are thin: they
// read the resolved subject once at entry, pass it explicitly into the
// engine, and map the outcome. Security denials always collapse to the
// same generic 404 a missing record produces.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/duetcare/access-engine/services"
	"github.com/duetcare/access-engine/utils"
	"go.uber.org/zap"
)

// decodeJSON decodes a request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// HandleServiceError maps domain errors to HTTP responses. Silent
// security outcomes and genuine not-found cases share one response
// shape; loud usage errors keep their detail.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsSecurityOutcome(err), services.IsNotFoundError(err):
		if err := utils.WriteNotFound(w); err != nil {
			logger.Error("failed to write not found response", zap.Error(err))
		}

	case services.IsPolicyConfigurationError(err):
		// A deployment defect, loud in the logs, a plain denial outside
		logger.Error("policy configuration error", zap.Error(err))
		if err := utils.WriteNotFound(w); err != nil {
			logger.Error("failed to write not found response", zap.Error(err))
		}

	case services.IsConsentConflict(err):
		if err := utils.WriteConflict(w, err.Error(), details); err != nil {
			logger.Error("failed to write conflict response", zap.Error(err))
		}

	case services.IsConflictError(err):
		if err := utils.WriteConflict(w, err.Error(), details); err != nil {
			logger.Error("failed to write conflict response", zap.Error(err))
		}

	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, err.Error(), details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	default:
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
