package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mlquiz/internal/account"
	"github.com/pavelanni/mlquiz/internal/model"
)

// handleAdminUsers lists everyone with at least one submission, most
// recently active first. The administrator is left out.
func (h *Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsernames(r.Context(), h.accounts.AdminUsername())
	if err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleAdminSubmissions(w http.ResponseWriter, r *http.Request) {
	username := account.Normalize(chi.URLParam(r, "username"))
	subs, err := h.store.ListSubmissionsByUser(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// handleAdminSubmission returns a single attempt by id.
func (h *Handler) handleAdminSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.store.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
