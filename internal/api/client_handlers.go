package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/signage-server/signage-server-pro/internal/distributor"
	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/registry"
)

// ========== Client handlers ==========

// HandleListClients lists registered display units with live status
func (s *RESTServer) HandleListClients(w http.ResponseWriter, r *http.Request) {
	clients := s.registry.GetAll()

	if group := r.URL.Query().Get("group"); group != "" {
		filtered := clients[:0]
		for _, c := range clients {
			if c.GroupName == group {
				filtered = append(filtered, c)
			}
		}
		clients = filtered
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := clients[:0]
		for _, c := range clients {
			if string(c.Status) == status {
				filtered = append(filtered, c)
			}
		}
		clients = filtered
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"clients": clients,
		"total":   len(clients),
	})
}

// HandleGetClient gets one display unit
func (s *RESTServer) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	client, ok := s.registry.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "client not found")
		return
	}

	s.respondJSON(w, http.StatusOK, client)
}

// HandleUpdateClient updates display unit metadata
func (s *RESTServer) HandleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Name     string `json:"name" validate:"max=200"`
		Group    string `json:"group" validate:"max=200"`
		Location string `json:"location" validate:"max=500"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, ok := s.registry.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "client not found")
		return
	}

	if req.Name != "" {
		client.Name = req.Name
	}
	if req.Group != "" {
		client.GroupName = req.Group
	}
	if req.Location != "" {
		client.Location = req.Location
	}

	s.registry.Upsert(r.Context(), client)

	s.respondJSON(w, http.StatusOK, client)
}

// HandleDeleteClient removes a display unit from the fleet
func (s *RESTServer) HandleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.Remove(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrClientNotFound) {
			s.respondError(w, http.StatusNotFound, "client not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Content handlers ==========

// HandlePushContent pushes content to one unit
func (s *RESTServer) HandlePushContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		ContentID string `json:"content_id" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.distributor.Push(r.Context(), id, req.ContentID); err != nil {
		switch {
		case errors.Is(err, registry.ErrClientNotFound):
			s.respondError(w, http.StatusNotFound, "client not found")
		case errors.Is(err, distributor.ErrContentNotFound):
			s.respondError(w, http.StatusNotFound, "content not found")
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"client_id":  id,
		"content_id": req.ContentID,
		"delivered":  s.hub.IsConnected(id),
	})
}

// HandlePushToGroup pushes content to every unit in a group
func (s *RESTServer) HandlePushToGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	var req struct {
		ContentID string `json:"content_id" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sent, err := s.distributor.PushToGroup(r.Context(), group, req.ContentID)
	if err != nil {
		if errors.Is(err, distributor.ErrContentNotFound) {
			s.respondError(w, http.StatusNotFound, "content not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"group":      group,
		"content_id": req.ContentID,
		"sent":       sent,
	})
}

// HandleBroadcastContent pushes content to every registered unit
func (s *RESTServer) HandleBroadcastContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentID string `json:"content_id" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sent, err := s.distributor.Broadcast(r.Context(), req.ContentID)
	if err != nil {
		if errors.Is(err, distributor.ErrContentNotFound) {
			s.respondError(w, http.StatusNotFound, "content not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"content_id": req.ContentID,
		"sent":       sent,
	})
}

// HandleSendCommand sends an opaque command to one unit
func (s *RESTServer) HandleSendCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Command    string           `json:"command" validate:"required"`
		Parameters models.Variables `json:"parameters"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, ok := s.registry.Get(id); !ok {
		s.respondError(w, http.StatusNotFound, "client not found")
		return
	}

	if err := s.distributor.SendCommand(r.Context(), id, req.Command, req.Parameters); err != nil {
		s.respondError(w, http.StatusConflict, "client not connected")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"client_id": id,
		"command":   req.Command,
	})
}
