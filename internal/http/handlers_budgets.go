package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"

	"fintrack/internal/http/respond"
)

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBudgets(w, r)
	case http.MethodPut:
		s.upsertBudget(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// listBudgets returns the budgets for one (year, month) pair, defaulting
// to the current month. Months are zero-based.
func (s *Server) listBudgets(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.JSON(w, http.StatusOK, "ok", []budgetResponse{})
		return
	}

	now := time.Now()
	year := now.Year()
	month := int(now.Month()) - 1
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 0 || m > 11 {
			respond.Error(w, http.StatusBadRequest, "month must be between 0 and 11")
			return
		}
		month = m
	}

	budgets, err := s.store.BudgetsForMonth(r.Context(), userID, year, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list budgets failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to list budgets")
		return
	}
	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetResponse(b))
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func (s *Server) upsertBudget(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req upsertBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	budget := core.Budget{
		UserID:     userID,
		CategoryID: req.CategoryID,
		Year:       req.Year,
		Month:      req.Month,
		Amount:     core.Money{Cents: req.Amount.Cents()},
	}
	if err := budget.Validate(); err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	saved, err := s.store.UpsertBudget(r.Context(), budget)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "upsert budget failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to save budget")
		return
	}
	respond.JSON(w, http.StatusOK, "budget saved", toBudgetResponse(saved))
}
