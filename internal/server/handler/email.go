package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketresolver/internal/email"
	"github.com/alanyoungcy/marketresolver/internal/service"
)

// EmailService queues transactional email.
type EmailService interface {
	Send(ctx context.Context, kind email.Kind, req service.EmailRequest) (service.EmailResult, error)
}

// EmailHandler serves the email trigger endpoint.
type EmailHandler struct {
	emails EmailService
	logger *slog.Logger
}

// NewEmailHandler creates an EmailHandler.
func NewEmailHandler(emails EmailService, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{emails: emails, logger: logHandler(logger, "email")}
}

// Send composes and queues one email.
// POST /api/emails/{kind}
func (h *EmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	kind, err := email.ParseKind(pathParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req service.EmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.emails.Send(r.Context(), kind, req)
	if err != nil {
		writeDomainError(w, r, h.logger, "send email", err)
		return
	}
	status := http.StatusAccepted
	if !res.Queued {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}
