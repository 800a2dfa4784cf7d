package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorResponse{Error: message})
}

// statusForError maps the outermost AppError type to an HTTP status
func statusForError(err error) (int, string) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, string(apperrors.ErrorTypeInternal)
	}
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest, string(appErr.Type)
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, string(appErr.Type)
	case apperrors.ErrorTypeExtraction, apperrors.ErrorTypeExternal:
		return http.StatusBadGateway, string(appErr.Type)
	case apperrors.ErrorTypeTaxonomyIntegrity, apperrors.ErrorTypeConflict:
		return http.StatusConflict, string(appErr.Type)
	default:
		return http.StatusInternalServerError, string(appErr.Type)
	}
}

// respondWithAppError writes err with the status of its type. Server-side
// failures are logged; their message is still returned to the caller.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := statusForError(err)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().
			Err(err).
			Str("error_type", errType).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	respondWithJSON(w, status, errorResponse{Error: err.Error(), Type: errType})
}
