package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-mdm/internal/enroll"
)

// handleEnrollProfile serves the unsigned enrollment profile.
func (s *Server) handleEnrollProfile(w http.ResponseWriter, _ *http.Request) {
	profile, err := s.enroll.Profile()
	if err != nil {
		s.logger.Error("failed to generate enrollment profile", "error", err)
		writeInternalError(w, "Failed to generate enrollment profile")
		return
	}

	w.Header().Set("Content-Type", enroll.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+enroll.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(profile)
}

// handleEnrollmentInfo tells an administrator where devices enrol.
func (s *Server) handleEnrollmentInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.enroll.Info())
}
