// Package handlers provides HTTP request handlers for the netscope API.
// This file contains the response, request parsing and error mapping helpers
// shared by every handler.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/netscope/internal/api/middleware"
	"github.com/anstrom/netscope/internal/errors"
)

var validate = validator.New()

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string           `json:"error"`
	Code      errors.ErrorCode `json:"code,omitempty"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// The header is already out; log and give up.
		slog.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// WriteJSON is writeJSON for handlers outside this package.
func WriteJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	writeJSON(w, r, statusCode, data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		response.Code = code
	}

	writeJSON(w, r, statusCode, response)
}

// writeCodedError writes err with the status derived from its code.
func writeCodedError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusForError(err), err)
}

// statusForError maps error codes onto HTTP status codes.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeValidation, errors.CodeInvalidOctet, errors.CodeInvalidAddress, errors.CodeInvertedRange:
		return http.StatusBadRequest
	case errors.CodeBusy, errors.CodeInvalidState, errors.CodeNoHosts, errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeCommandRejected:
		return http.StatusBadGateway
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseJSON decodes the request body into dest and validates it. Unknown
// fields are rejected.
func parseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.NewValidationError(errors.CodeValidation, "request body is empty", "body", "")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		return errors.NewValidationError(errors.CodeValidation,
			fmt.Sprintf("invalid JSON: %v", err), "body", "")
	}

	if err := validate.Struct(dest); err != nil {
		return errors.NewValidationError(errors.CodeValidation, err.Error(), "body", "")
	}
	return nil
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r)
}
