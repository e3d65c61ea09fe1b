// Package http exposes the JSON API: auth, accounts, categories,
// transactions, budgets, recurring rules and the dashboard.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

type Server struct {
	http.Server

	store           store.Store
	transactions    *services.TransactionService
	dashboard       *services.DashboardService
	tokens          *auth.TokenManager
	defaultCurrency string

	logger       *log.Logger
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a
// ready-to-run server.
func NewServer(cfg *config.Config, st store.Store, transactions *services.TransactionService, dashboard *services.DashboardService, tokens *auth.TokenManager, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		store:           st,
		transactions:    transactions,
		dashboard:       dashboard,
		tokens:          tokens,
		defaultCurrency: cfg.DefaultCurrency,
		logger:          logger.WithComponent(log.ComponentHTTP),
		rateLimiter:     newRateLimiter(),
	}
	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           auth.Middleware(tokens)(log.Middleware(s.logger)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/auth/register", s.secure(s.handleRegister))
	mux.HandleFunc("/api/auth/login", s.secure(s.handleLogin))
	mux.HandleFunc("/api/accounts", s.secure(s.handleAccounts))
	mux.HandleFunc("/api/accounts/{id}/archive", s.secure(s.handleArchiveAccount))
	mux.HandleFunc("/api/categories", s.secure(s.handleCategories))
	mux.HandleFunc("/api/transactions", s.secure(s.handleTransactions))
	mux.HandleFunc("/api/transactions/recent", s.secure(s.handleRecentTransactions))
	mux.HandleFunc("/api/budgets", s.secure(s.handleBudgets))
	mux.HandleFunc("/api/recurring-rules", s.secure(s.handleRecurringRules))
	mux.HandleFunc("/api/dashboard", s.secure(s.handleDashboard))

	return s
}

// Shutdown stops the rate limiter cleanup goroutine and drains the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// secure adds request IDs, security headers, rate limiting on writes
// and request logging.
func (s *Server) secure(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if isWrite(r.Method) && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
