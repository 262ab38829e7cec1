package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-mdm/internal/command"
	"github.com/nerrad567/gray-logic-mdm/internal/device"
)

// handleListDevices returns every device, most recently enrolled first.
//
// Query parameters:
//   - status: filter by enrolment status (enrolled, unenrolled)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err, "failed to list devices")
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		if !device.Status(status).Valid() {
			writeBadRequest(w, "status must be enrolled or unenrolled")
			return
		}
		filtered := devices[:0]
		for _, d := range devices {
			if string(d.Status) == status {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	}

	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by UDID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.devices.Get(r.Context(), chi.URLParam(r, "udid"))
	if err != nil {
		s.writeDomainError(w, err, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDeviceStats returns device counts per status and command counts
// per status.
func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := s.devices.Count(ctx)
	if err != nil {
		s.writeDomainError(w, err, "failed to count devices")
		return
	}
	commands, err := s.commands.Count(ctx)
	if err != nil {
		s.writeDomainError(w, err, "failed to count commands")
		return
	}

	total := 0
	for _, n := range devices {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_devices": total,
		"by_status":     devices,
		"commands":      commands,
	})
}

// handleListDeviceCommands returns a device's commands, newest first. An
// unknown UDID has no commands.
func (s *Server) handleListDeviceCommands(w http.ResponseWriter, r *http.Request) {
	commands, err := s.commands.ListForDevice(r.Context(), chi.URLParam(r, "udid"))
	if err != nil {
		s.writeDomainError(w, err, "failed to list commands")
		return
	}
	if commands == nil {
		commands = []command.Command{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": commands, "count": len(commands)})
}

// handleGetCommand returns a single command by UUID.
func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := s.commands.Get(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeDomainError(w, err, "failed to get command")
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}
