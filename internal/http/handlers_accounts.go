package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"

	"fintrack/internal/http/respond"
)

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listAccounts(w, r)
	case http.MethodPost:
		s.createAccount(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.JSON(w, http.StatusOK, "ok", []accountResponse{})
		return
	}

	accounts, err := s.store.ListAccounts(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list accounts failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	account := core.Account{
		UserID:   userID,
		Name:     strings.TrimSpace(req.Name),
		Type:     core.AccountType(req.Type),
		Balance:  core.Money{Cents: req.Balance.Cents()},
		Currency: currency,
	}
	if err := account.Validate(); err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.store.CreateAccount(r.Context(), account)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "create account failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	respond.JSON(w, http.StatusCreated, "account created", toAccountResponse(created))
}

func (s *Server) handleArchiveAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	if err := s.store.ArchiveAccount(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "archive account failed", log.FieldError, err, log.FieldAccountID, id)
		respond.Error(w, http.StatusInternalServerError, "failed to archive account")
		return
	}
	respond.JSON(w, http.StatusOK, "account archived", nil)
}
