package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/service"
)

// ResolutionService defines what the resolution handler needs from the
// service layer.
type ResolutionService interface {
	Open(ctx context.Context, contractID string) (service.SessionState, error)
	State(id string) (service.SessionState, error)
	SetMode(id string, mode domain.ResolutionMode) (service.SessionState, error)
	Choose(id, answerID string, weight *float64) (service.SessionState, error)
	Deselect(id, answerID string) (service.SessionState, error)
	Submit(ctx context.Context, id string) (service.SubmitResult, error)
	Close(id string)
}

// ResolutionHandler serves the resolution session endpoints.
type ResolutionHandler struct {
	sessions ResolutionService
	logger   *slog.Logger
}

// NewResolutionHandler creates a ResolutionHandler.
func NewResolutionHandler(sessions ResolutionService, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{sessions: sessions, logger: logHandler(logger, "resolution")}
}

type openSessionRequest struct {
	ContractID string `json:"contractId"`
}

type setModeRequest struct {
	Mode string `json:"mode"`
}

type chooseRequest struct {
	Weight *float64 `json:"weight"`
}

// OpenSession starts a resolution session.
// POST /api/resolutions/sessions {"contractId": "..."}
func (h *ResolutionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ContractID == "" {
		writeError(w, http.StatusBadRequest, "missing contractId")
		return
	}

	st, err := h.sessions.Open(r.Context(), req.ContractID)
	if err != nil {
		writeDomainError(w, r, h.logger, "open session", err)
		return
	}
	w.Header().Set("Location", "/api/resolutions/sessions/"+st.SessionID)
	writeJSON(w, http.StatusCreated, st)
}

// GetSession returns a session's state.
// GET /api/resolutions/sessions/{id}
func (h *ResolutionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.State(pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SetMode switches a session's mode and clears its choice.
// PUT /api/resolutions/sessions/{id}/mode {"mode": "CHOOSE_MULTIPLE"}
func (h *ResolutionHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.sessions.SetMode(pathParam(r, "id"), domain.ResolutionMode(req.Mode))
	if err != nil {
		writeDomainError(w, r, h.logger, "set mode", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Choose selects an answer, optionally with a weight.
// PUT /api/resolutions/sessions/{id}/choices/{answerId} {"weight": 50}
func (h *ResolutionHandler) Choose(w http.ResponseWriter, r *http.Request) {
	var req chooseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.sessions.Choose(pathParam(r, "id"), pathParam(r, "answerId"), req.Weight)
	if err != nil {
		writeDomainError(w, r, h.logger, "choose", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Deselect removes an answer from the choice.
// DELETE /api/resolutions/sessions/{id}/choices/{answerId}
func (h *ResolutionHandler) Deselect(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Deselect(pathParam(r, "id"), pathParam(r, "answerId"))
	if err != nil {
		writeDomainError(w, r, h.logger, "deselect", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Submit sends the session's choice upstream. The response status is 200
// whatever the outcome; the body's status field says what happened.
// POST /api/resolutions/sessions/{id}/submit
func (h *ResolutionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Submit(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "submit", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CloseSession discards a session.
// DELETE /api/resolutions/sessions/{id}
func (h *ResolutionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Close(pathParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
