package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mlquiz/internal/account"
	"github.com/pavelanni/mlquiz/internal/auth"
	"github.com/pavelanni/mlquiz/internal/evaluator"
	appI18n "github.com/pavelanni/mlquiz/internal/i18n"
	"github.com/pavelanni/mlquiz/internal/model"
	"github.com/pavelanni/mlquiz/internal/questions"
	"github.com/pavelanni/mlquiz/internal/store"
	"github.com/pavelanni/mlquiz/internal/throttle"
)

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Store     *store.Store
	Accounts  *account.Service
	Evaluator *evaluator.Evaluator
	Bank      *questions.Bank
	Tokens    *auth.Tokens
	Limiter   throttle.Limiter
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	accounts *account.Service
	eval     *evaluator.Evaluator
	bank     *questions.Bank
	tokens   *auth.Tokens
	limiter  throttle.Limiter
	config   model.ServerConfig
}

// New creates a new Handler.
func New(d Deps, cfg model.ServerConfig) (*Handler, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("handler: store is required")
	case d.Accounts == nil:
		return nil, errors.New("handler: account service is required")
	case d.Evaluator == nil:
		return nil, errors.New("handler: evaluator is required")
	case d.Bank == nil:
		return nil, errors.New("handler: question bank is required")
	case d.Tokens == nil:
		return nil, errors.New("handler: token service is required")
	case d.Limiter == nil:
		return nil, errors.New("handler: login limiter is required")
	}
	return &Handler{
		store:    d.Store,
		accounts: d.Accounts,
		eval:     d.Evaluator,
		bank:     d.Bank,
		tokens:   d.Tokens,
		limiter:  d.Limiter,
		config:   cfg,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(appI18n.Middleware)

		r.Get("/health", h.handleHealth)
		r.Get("/questions", h.handleQuestions)

		r.Post("/auth/signup", h.handleSignup)
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/check-username", h.handleCheckUsername)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/submit", h.handleSubmit)
			r.Get("/submissions/{username}", h.handleOwnSubmissions)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAuth, requireAdmin)
			r.Get("/users", h.handleAdminUsers)
			r.Get("/submissions/{username}", h.handleAdminSubmissions)
			r.Get("/submission/{id}", h.handleAdminSubmission)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"message":   "Server is running",
		"grader":    h.config.Grader,
		"questions": h.bank.Len(),
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bank.Public())
}

// messageResponse is the body of every failed request.
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeMessage sends a localized failure message.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, msgID string, data map[string]any) {
	writeJSON(w, status, messageResponse{Message: appI18n.Td(r.Context(), msgID, data)})
}

// writeError maps a service error to a status code and a localized message.
// serverMsgID is the message used when the failure is internal.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, serverMsgID string) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, r, http.StatusBadRequest, verr.MessageID, map[string]any{"Expected": h.bank.Len()})
	case errors.Is(err, model.ErrInvalidInput):
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest", nil)
	case errors.Is(err, model.ErrDuplicateUsername):
		writeMessage(w, r, http.StatusConflict, "UsernameTaken", nil)
	case errors.Is(err, model.ErrInvalidCredentials):
		writeMessage(w, r, http.StatusUnauthorized, "InvalidCredentials", nil)
	case errors.Is(err, model.ErrNotFound):
		writeMessage(w, r, http.StatusNotFound, "NotFound", nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, r, http.StatusInternalServerError, serverMsgID, nil)
	}
}

// decodeJSON reads a JSON request body into v, replying 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidRequest", nil)
		return false
	}
	return true
}

func minutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
