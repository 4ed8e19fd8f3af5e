package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jinzhu/copier"

	"github.com/pavelanni/mlquiz/internal/account"
	appI18n "github.com/pavelanni/mlquiz/internal/i18n"
	"github.com/pavelanni/mlquiz/internal/model"
)

type submitRequest struct {
	// Username is optional; when present it must match the token.
	Username string   `json:"username"`
	Answers  []string `json:"answers"`
}

type submitResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	SubmissionID string               `json:"submissionId" copier:"ID"`
	TotalScore   float64              `json:"totalScore"`
	MaxScore     int                  `json:"maxScore"`
	Answers      []model.AnswerRecord `json:"answers"`
	SubmittedAt  time.Time            `json:"submittedAt"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p := model.PrincipalFromContext(r.Context())
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username != "" && account.Normalize(req.Username) != p.Username {
		writeMessage(w, r, http.StatusForbidden, "Forbidden", nil)
		return
	}

	sub, err := h.eval.Evaluate(r.Context(), p.Username, req.Answers)
	if err != nil {
		h.writeError(w, r, err, "SubmitFailed")
		return
	}
	resp := submitResponse{Success: true, Message: appI18n.T(r.Context(), "SubmitSuccess")}
	if err := copier.Copy(&resp, &sub); err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleOwnSubmissions lists score summaries. Users may only read their
// own history; administrators may read anyone's.
func (h *Handler) handleOwnSubmissions(w http.ResponseWriter, r *http.Request) {
	p := model.PrincipalFromContext(r.Context())
	username := account.Normalize(chi.URLParam(r, "username"))
	if username != p.Username && !p.IsAdmin {
		writeMessage(w, r, http.StatusForbidden, "Forbidden", nil)
		return
	}

	summaries, err := h.store.ListSubmissionSummaries(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err, "ServerError")
		return
	}
	if summaries == nil {
		summaries = []model.SubmissionSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}
