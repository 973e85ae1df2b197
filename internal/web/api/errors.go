package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/schemakit/schemakit/internal/entity"
	"github.com/schemakit/schemakit/internal/query"
	"github.com/schemakit/schemakit/internal/schema"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error  ErrorDetail `json:"error"`
	Status int         `json:"status"`
}

// ErrorDetail contains detailed error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSONError(w, status, ErrorResponse{
		Error:  ErrorDetail{Code: code, Message: message},
		Status: status,
	})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Document problems are the operator's fault and surface as 500; bad record
// data is the caller's fault and surfaces as 422.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case schema.IsNotFound(err) || entity.IsNotFound(err) || errors.Is(err, query.ErrUnknownRelation):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())

	case entity.IsValidationFailed(err):
		resp := ErrorResponse{
			Error:  ErrorDetail{Code: "UNPROCESSABLE_ENTITY", Message: "validation failed"},
			Status: http.StatusUnprocessableEntity,
		}
		var ve *entity.ValidationError
		if errors.As(err, &ve) {
			fields := make(map[string]interface{}, len(ve.Errors))
			for _, fe := range ve.Errors {
				fields[fe.Field] = fe.Message
			}
			resp.Error.Details = fields
		}
		writeJSONError(w, http.StatusUnprocessableEntity, resp)

	case errors.Is(err, entity.ErrUniqueViolation),
		errors.Is(err, entity.ErrForeignKeyViolation),
		errors.Is(err, entity.ErrNotNullViolation):
		WriteError(w, http.StatusConflict, "CONSTRAINT_VIOLATION", err.Error())

	case schema.IsValidationError(err) || query.IsMisconfigured(err):
		WriteError(w, http.StatusInternalServerError, "SCHEMA_ERROR", err.Error())

	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
	}
}

// writeJSONError writes a JSON error response with the given status code
func writeJSONError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}
