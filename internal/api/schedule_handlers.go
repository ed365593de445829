package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/storage"
)

type scheduleRequest struct {
	Name           string     `json:"name" validate:"required,min=1,max=200"`
	TargetClientID string     `json:"target_client_id"`
	TargetGroup    string     `json:"target_group"`
	ContentID      string     `json:"content_id" validate:"required"`
	StartTime      string     `json:"start_time" validate:"required,hhmm"`
	EndTime        string     `json:"end_time" validate:"required,hhmm"`
	DaysOfWeek     string     `json:"days_of_week"`
	Priority       int        `json:"priority" validate:"min=0"`
	Active         bool       `json:"active"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
}

func (req *scheduleRequest) apply(schedule *models.LayoutSchedule) {
	schedule.Name = req.Name
	schedule.TargetClientID = req.TargetClientID
	schedule.TargetGroup = req.TargetGroup
	schedule.ContentID = req.ContentID
	schedule.StartTime = req.StartTime
	schedule.EndTime = req.EndTime
	schedule.DaysOfWeek = req.DaysOfWeek
	schedule.Priority = req.Priority
	schedule.Active = req.Active
	schedule.ValidFrom = req.ValidFrom
	schedule.ValidUntil = req.ValidUntil

	if schedule.DaysOfWeek == "" {
		schedule.DaysOfWeek = "*"
	}
}

// ========== Layout schedule handlers ==========

// HandleListSchedules lists layout schedules
func (s *RESTServer) HandleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.store.ListSchedules(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"schedules": schedules,
		"total":     len(schedules),
	})
}

// HandleCreateSchedule creates a layout schedule
func (s *RESTServer) HandleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.TargetClientID != "" && req.TargetGroup != "" {
		s.respondError(w, http.StatusBadRequest, "schedule may target a client or a group, not both")
		return
	}

	schedule := &models.LayoutSchedule{}
	req.apply(schedule)

	if err := s.store.CreateSchedule(r.Context(), schedule); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, schedule)
}

// HandleGetSchedule gets a layout schedule
func (s *RESTServer) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	schedule, err := s.store.GetSchedule(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "schedule not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, schedule)
}

// HandleUpdateSchedule updates a layout schedule
func (s *RESTServer) HandleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.TargetClientID != "" && req.TargetGroup != "" {
		s.respondError(w, http.StatusBadRequest, "schedule may target a client or a group, not both")
		return
	}

	schedule, err := s.store.GetSchedule(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "schedule not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	req.apply(schedule)

	if err := s.store.UpdateSchedule(r.Context(), schedule); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, schedule)
}

// HandleDeleteSchedule deletes a layout schedule
func (s *RESTServer) HandleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	if err := s.store.DeleteSchedule(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "schedule not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
