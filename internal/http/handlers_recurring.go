package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"

	"fintrack/internal/http/respond"
)

func (s *Server) handleRecurringRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRecurringRules(w, r)
	case http.MethodPost:
		s.createRecurringRule(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listRecurringRules(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.JSON(w, http.StatusOK, "ok", []ruleResponse{})
		return
	}

	rules, err := s.store.ListRules(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list recurring rules failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to list recurring rules")
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func (s *Server) createRecurringRule(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	start := req.StartDate
	if start == 0 {
		start = time.Now().UnixMilli()
	}
	interval := req.Interval
	if interval == 0 {
		interval = 1
	}
	rule := core.RecurringRule{
		UserID:      userID,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      core.Money{Cents: req.Amount.Cents()},
		Currency:    currency,
		Payee:       strings.TrimSpace(req.Payee),
		Note:        req.Note,
		StartDate:   start,
		EndDate:     req.EndDate,
		Frequency:   core.Frequency(req.Frequency),
		Interval:    interval,
		NextDueDate: start,
	}
	if err := rule.Validate(); err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.store.CreateRule(r.Context(), rule)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "create recurring rule failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to create recurring rule")
		return
	}
	respond.JSON(w, http.StatusCreated, "recurring rule created", toRuleResponse(created))
}
