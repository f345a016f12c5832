package handler

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// HistoryService defines what the history handler needs.
type HistoryService interface {
	History(ctx context.Context, contractID string, limit, offset int) ([]domain.ResolutionRecord, error)
	Archives(ctx context.Context, contractID string) ([]domain.BlobInfo, error)
	Archived(ctx context.Context, contractID, name string) (domain.ResolutionRecord, error)
}

// HistoryHandler serves past submissions of a contract.
type HistoryHandler struct {
	history HistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(history HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logHandler(logger, "history")}
}

type archiveEntry struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ListResolutions returns the audit log of a contract.
// GET /api/markets/{id}/resolutions?limit=50&offset=0
func (h *HistoryHandler) ListResolutions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.history.History(r.Context(), pathParam(r, "id"),
		queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeDomainError(w, r, h.logger, "list resolutions", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// ListArchives returns the archived submissions of a contract.
// GET /api/markets/{id}/archives
func (h *HistoryHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := h.history.Archives(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "list archives", err)
		return
	}
	out := make([]archiveEntry, 0, len(infos))
	for _, info := range infos {
		out = append(out, archiveEntry{
			Name:         path.Base(info.Path),
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetArchive returns one archived submission.
// GET /api/markets/{id}/archives/{name}
func (h *HistoryHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	rec, err := h.history.Archived(r.Context(), pathParam(r, "id"), pathParam(r, "name"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get archive", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
