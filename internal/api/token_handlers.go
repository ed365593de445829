package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/storage"
	"github.com/signage-server/signage-server-pro/pkg/crypto"
)

// ========== Registration token handlers ==========

// HandleListTokens lists registration tokens
func (s *RESTServer) HandleListTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tokens, total, err := s.store.ListRegistrationTokens(ctx, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
		"total":  total,
	})
}

// HandleCreateToken mints a registration token
func (s *RESTServer) HandleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HardwareAddr string     `json:"hardware_addr"`
		Group        string     `json:"group" validate:"max=200"`
		Location     string     `json:"location" validate:"max=500"`
		MaxUses      int        `json:"max_uses" validate:"min=0"`
		ExpiresAt    *time.Time `json:"expires_at"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	value, err := crypto.GenerateRandomString(24)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	token := &models.RegistrationToken{
		Token:        value,
		HardwareAddr: req.HardwareAddr,
		GroupName:    req.Group,
		Location:     req.Location,
		MaxUses:      req.MaxUses,
		ExpiresAt:    req.ExpiresAt,
	}

	if err := s.store.CreateRegistrationToken(r.Context(), token); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, token)
}

// HandleDeleteToken revokes a registration token
func (s *RESTServer) HandleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	if err := s.store.DeleteRegistrationToken(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "token not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
