package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/report"
)

// handleAttribution serves GET /v1/organizations/{orgID}/attribution?start=&end=.
func (s *Server) handleAttribution(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(chi.URLParam(r, "orgID"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "organization id is required")
		return
	}

	start, end, msg := s.parseRange(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	rep, err := s.runner.Run(r.Context(), orgID, start, end)
	if err != nil {
		if eris.Is(err, report.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		zap.L().Error("api: attribution report failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to build attribution report")
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// parseRange reads the start and end query parameters. A non-empty message
// describes the first problem found.
func (s *Server) parseRange(r *http.Request) (time.Time, time.Time, string) {
	q := r.URL.Query()
	rawStart, rawEnd := q.Get("start"), q.Get("end")
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, "start and end query parameters are required (YYYY-MM-DD)"
	}

	start, err := time.Parse(report.DateLayout, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Sprintf("invalid start date %q, expected YYYY-MM-DD", rawStart)
	}
	end, err := time.Parse(report.DateLayout, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Sprintf("invalid end date %q, expected YYYY-MM-DD", rawEnd)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, "end date must not be before start date"
	}
	if s.maxRangeDays > 0 {
		days := int(end.Sub(start).Hours()/24) + 1
		if days > s.maxRangeDays {
			return time.Time{}, time.Time{}, fmt.Sprintf("date range of %d days exceeds the maximum of %d", days, s.maxRangeDays)
		}
	}
	return start, end, ""
}
