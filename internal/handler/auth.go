package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jinzhu/copier"

	"github.com/pavelanni/mlquiz/internal/account"
	appI18n "github.com/pavelanni/mlquiz/internal/i18n"
	"github.com/pavelanni/mlquiz/internal/model"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	Token    string `json:"token"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.accounts.CreateAccount(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	slog.Info("account created", "username", a.Username)
	h.writeSession(w, r, http.StatusCreated, a, "SignupSuccess")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	key := account.Normalize(req.Username)

	// The attempt is counted before the password check. Limiter errors
	// are logged and ignored so logins keep working while the shared
	// counter store is unreachable.
	allowed, err := h.limiter.Attempt(ctx, key)
	if err != nil {
		slog.Warn("login limiter unavailable", "error", err)
		allowed = true
	}
	if !allowed {
		slog.Warn("login throttled", "username", key)
		writeMessage(w, r, http.StatusTooManyRequests, "TooManyAttempts",
			map[string]any{"Minutes": minutes(h.config.LoginWindow)})
		return
	}

	a, err := h.accounts.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	if err := h.limiter.Reset(ctx, key); err != nil {
		slog.Warn("reset login attempts", "error", err)
	}
	h.writeSession(w, r, http.StatusOK, a, "LoginSuccess")
}

// writeSession issues a bearer token for a and writes the auth response.
func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int, a model.Account, msgID string) {
	tok, err := h.tokens.Issue(a)
	if err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	resp := authResponse{Success: true, Message: appI18n.T(r.Context(), msgID), Token: tok}
	if err := copier.Copy(&resp, &a); err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	ok, err := h.accounts.UsernameAvailable(r.Context(), req.Username)
	if err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	msgID := "UsernameAvailable"
	if !ok {
		msgID = "UsernameUnavailable"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": ok,
		"message":   appI18n.T(r.Context(), msgID),
	})
}

// requireAuth is middleware that checks for a valid bearer token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tok == "" {
			writeMessage(w, r, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		p, err := h.tokens.Parse(tok)
		if err != nil {
			slog.Debug("rejected token", "error", err)
			writeMessage(w, r, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		ctx := model.ContextWithPrincipal(r.Context(), p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin lets only administrators through. It must run after requireAuth.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := model.PrincipalFromContext(r.Context())
		if p == nil {
			writeMessage(w, r, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		if !p.IsAdmin {
			writeMessage(w, r, http.StatusForbidden, "Forbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
