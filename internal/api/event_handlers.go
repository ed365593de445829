package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/storage"
)

// HandleListEvents lists fleet event log entries
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit == 0 {
		limit = 50
	}
	offset, _ := strconv.Atoi(q.Get("offset"))

	var filters storage.EventLogFilters
	if clientID := q.Get("client_id"); clientID != "" {
		filters.ClientID = &clientID
	}
	if t := q.Get("type"); t != "" {
		eventType := models.EventType(t)
		filters.Type = &eventType
	}
	if l := q.Get("level"); l != "" {
		level := models.EventLevel(l)
		filters.Level = &level
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.EndTime = &t
		}
	}

	events, total, err := s.store.ListEventLogs(ctx, filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}
