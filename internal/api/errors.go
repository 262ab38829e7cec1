package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-mdm/internal/admin"
	"github.com/nerrad567/gray-logic-mdm/internal/command"
	"github.com/nerrad567/gray-logic-mdm/internal/device"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeNotEnrolled = "not_enrolled"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a service error to its HTTP response. Anything not
// recognised is logged and reported as a 500 with the generic message.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "Device not found")
	case errors.Is(err, command.ErrCommandNotFound):
		writeNotFound(w, "Command not found")
	case errors.Is(err, admin.ErrDeviceNotEnrolled):
		writeError(w, http.StatusBadRequest, ErrCodeNotEnrolled, "Device is not enrolled")
	case errors.Is(err, command.ErrUnknownCommandType):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error(message, "error", err)
		writeInternalError(w, message)
	}
}

// writeDeviceError writes a plain-text response on a device channel.
func writeDeviceError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write([]byte(message))
}
