package http

import (
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/log"

	"fintrack/internal/http/respond"
)

// handleDashboard composes the aggregate view for the authenticated
// user. An unauthenticated request gets the same shape with zeroed
// metrics and the default savings goal.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	d, err := s.dashboard.Dashboard(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "dashboard composition failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to compose dashboard")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", toDashboardResponse(d))
}
