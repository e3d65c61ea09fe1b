package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"

	"fintrack/internal/http/respond"
)

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listCategories(w, r)
	case http.MethodPost:
		s.createCategory(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.JSON(w, http.StatusOK, "ok", []categoryResponse{})
		return
	}

	categories, err := s.store.ListCategories(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list categories failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	category := core.Category{
		UserID:   userID,
		Name:     strings.TrimSpace(req.Name),
		ParentID: req.ParentID,
		Color:    strings.TrimSpace(req.Color),
	}
	if err := category.Validate(); err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.store.CreateCategory(r.Context(), category)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "create category failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	respond.JSON(w, http.StatusCreated, "category created", toCategoryResponse(created))
}
