package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"

	"fintrack/internal/http/respond"
)

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.JSON(w, http.StatusOK, "ok", []transactionResponse{})
		return
	}

	accountID := strings.TrimSpace(r.URL.Query().Get("accountId"))
	txs, err := s.transactions.List(r.Context(), userID, accountID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list transactions failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	tx := core.Transaction{
		UserID:              userID,
		AccountID:           req.AccountID,
		CategoryID:          req.CategoryID,
		Amount:              core.Money{Cents: req.Amount.Cents()},
		Currency:            currency,
		Date:                req.Date,
		Payee:               strings.TrimSpace(req.Payee),
		Note:                req.Note,
		Tags:                req.Tags,
		Type:                core.TransactionType(req.Type),
		TransferToAccountID: req.TransferToAccountID,
	}
	if tx.Date == 0 {
		tx.Date = time.Now().UnixMilli()
	}
	if err := tx.Validate(); err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.transactions.Create(r.Context(), tx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.Error(w, http.StatusUnprocessableEntity, "unknown account")
			return
		}
		s.logger.ErrorContext(r.Context(), "create transaction failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}
	respond.JSON(w, http.StatusCreated, "transaction created", toTransactionResponse(created))
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		respond.JSON(w, http.StatusOK, "ok", []recentTransactionResponse{})
		return
	}

	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respond.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recent, err := s.dashboard.RecentTransactions(r.Context(), userID, limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "recent transactions failed", log.FieldError, err, log.FieldUserID, userID)
		respond.Error(w, http.StatusInternalServerError, "failed to list recent transactions")
		return
	}
	out := make([]recentTransactionResponse, 0, len(recent))
	for _, t := range recent {
		out = append(out, toRecentTransactionResponse(t))
	}
	respond.JSON(w, http.StatusOK, "ok", out)
}
