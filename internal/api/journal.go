package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/homesim-core/internal/audit"
	"github.com/nerrad567/homesim-core/internal/home"
)

// handleGetJournal pages through the persisted activity of the caller's
// session. Query parameters: category, limit, offset.
func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal not configured")
		return
	}

	q := r.URL.Query()
	limit, ok := intParam(w, q.Get("limit"), "limit")
	if !ok {
		return
	}
	offset, ok := intParam(w, q.Get("offset"), "offset")
	if !ok {
		return
	}

	category := home.Category(q.Get("category"))
	if category != "" && !validCategory(category) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown category")
		return
	}

	claims := claimsFromContext(r.Context())
	result, err := s.journal.List(r.Context(), audit.Filter{
		SessionID: claims.SessionID,
		Category:  category,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		s.logger.ForSession(claims.SessionID).Error("listing journal", "error", err)
		writeInternalError(w, "failed to read journal")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetAlertJournal returns the alerts ever raised in the caller's
// session, newest first. Clearing alerts does not remove them here.
func (s *Server) handleGetAlertJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal not configured")
		return
	}

	limit, ok := intParam(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	claims := claimsFromContext(r.Context())
	alerts, err := s.journal.ListAlerts(r.Context(), claims.SessionID, limit)
	if err != nil {
		s.logger.ForSession(claims.SessionID).Error("listing alert journal", "error", err)
		writeInternalError(w, "failed to read journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// intParam parses an optional non-negative query parameter.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func validCategory(c home.Category) bool {
	for _, known := range home.AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}
