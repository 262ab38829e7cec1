package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-mdm/internal/admin"
	"github.com/nerrad567/gray-logic-mdm/internal/command"
)

// messageRequest is the body of POST /devices/{udid}/notify.
type messageRequest struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber"`
	PIN         string `json:"pin"`
}

// lostModeRequest is the body of POST /devices/{udid}/lost-mode.
type lostModeRequest struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber"`
	Footnote    string `json:"footnote"`
}

// lockRequest is the body of POST /devices/{udid}/lock.
type lockRequest struct {
	PIN string `json:"pin"`
}

// commandRequest is the body of POST /devices/{udid}/commands.
type commandRequest struct {
	CommandType string `json:"command_type"`
	command.Params
}

// decodeOptionalJSON decodes r's body into v. An empty body leaves v at
// its zero value, so every parameter falls back to its default.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeActionResult reports the outcome of an admin action.
func (s *Server) writeActionResult(w http.ResponseWriter, res *admin.Result, err error) {
	if err != nil {
		s.writeDomainError(w, err, "failed to queue command")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleNotify queues a lock-screen message.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	res, err := s.admin.Notify(r.Context(), chi.URLParam(r, "udid"), command.SendMessage{
		Message:     req.Message,
		PhoneNumber: req.PhoneNumber,
		PIN:         req.PIN,
	})
	s.writeActionResult(w, res, err)
}

// handleEnableLostMode queues EnableLostMode.
func (s *Server) handleEnableLostMode(w http.ResponseWriter, r *http.Request) {
	var req lostModeRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	res, err := s.admin.EnableLostMode(r.Context(), chi.URLParam(r, "udid"), command.EnableLostMode{
		Message:     req.Message,
		PhoneNumber: req.PhoneNumber,
		Footnote:    req.Footnote,
	})
	s.writeActionResult(w, res, err)
}

// handleDisableLostMode queues DisableLostMode.
func (s *Server) handleDisableLostMode(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.DisableLostMode(r.Context(), chi.URLParam(r, "udid"))
	s.writeActionResult(w, res, err)
}

// handleUnenroll queues RemoveProfile and marks the device unenrolled.
func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.Unenroll(r.Context(), chi.URLParam(r, "udid"))
	s.writeActionResult(w, res, err)
}

// handleQuery queues DeviceInformation.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.QueryDeviceInfo(r.Context(), chi.URLParam(r, "udid"))
	s.writeActionResult(w, res, err)
}

// handleLock queues DeviceLock.
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	res, err := s.admin.Lock(r.Context(), chi.URLParam(r, "udid"), req.PIN)
	s.writeActionResult(w, res, err)
}

// handleErase queues EraseDevice.
func (s *Server) handleErase(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.Erase(r.Context(), chi.URLParam(r, "udid"))
	s.writeActionResult(w, res, err)
}

// handleQueueCommand queues any supported command kind by name.
func (s *Server) handleQueueCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.CommandType == "" {
		writeBadRequest(w, "command_type is required")
		return
	}
	res, err := s.admin.Execute(r.Context(), chi.URLParam(r, "udid"), req.CommandType, req.Params)
	s.writeActionResult(w, res, err)
}
