package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/gray-logic-mdm/internal/mdm"
)

// commandContentType is sent with a command payload on the server channel.
const commandContentType = "application/xml"

// handleCheckin serves PUT /mdm/checkin.
//
// Responses:
//   - 200 with an empty body when the message was applied
//   - 400 for a message type the server does not handle
//   - 500 when the body cannot be read, decoded or stored
func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("reading check-in body failed", "error", err)
		writeDeviceError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	_, err = s.protocol.HandleCheckin(r.Context(), body)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, mdm.ErrUnrecognizedMessageType):
		writeDeviceError(w, http.StatusBadRequest, "Unknown message type")
	default:
		s.logger.Error("check-in failed", "error", err)
		writeDeviceError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// handlePoll serves PUT /mdm/server. The response is the next command's
// plist payload, or an empty 200 when nothing is queued. A body that cannot
// be read, including one over the size limit, is treated like an
// undecodable one: empty 200, no state change.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Warn("ignoring unreadable poll body", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	cmd, err := s.protocol.HandlePoll(r.Context(), body)
	if err != nil {
		s.logger.Error("poll failed", "error", err)
		writeDeviceError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if cmd == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", commandContentType)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write; the command is already marked sent
	io.WriteString(w, cmd.Payload)
}
