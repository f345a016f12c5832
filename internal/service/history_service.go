package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// defaultHistoryLimit bounds History when the caller gives no limit.
const defaultHistoryLimit = 50

// HistoryService answers questions about past submissions from the audit
// log and the blob archive.
type HistoryService struct {
	records  domain.ResolutionStore
	archives domain.BlobReader
	logger   *slog.Logger
}

// NewHistoryService creates a HistoryService. archives may be nil when blob
// storage is disabled.
func NewHistoryService(records domain.ResolutionStore, archives domain.BlobReader, logger *slog.Logger) *HistoryService {
	return &HistoryService{records: records, archives: archives, logger: logger}
}

// History lists a contract's submissions, newest first.
func (s *HistoryService) History(ctx context.Context, contractID string, limit, offset int) ([]domain.ResolutionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	recs, err := s.records.ListByContract(ctx, contractID, domain.ListOpts{Limit: limit, Offset: max(offset, 0)})
	if err != nil {
		return nil, fmt.Errorf("history_service: list %q: %w", contractID, err)
	}
	if recs == nil {
		recs = []domain.ResolutionRecord{}
	}
	return recs, nil
}

// Archives lists the archived copies of a contract's submissions. It is
// empty when blob storage is disabled.
func (s *HistoryService) Archives(ctx context.Context, contractID string) ([]domain.BlobInfo, error) {
	if s.archives == nil {
		return []domain.BlobInfo{}, nil
	}
	infos, err := s.archives.List(ctx, domain.ArchivePrefix(contractID))
	if err != nil {
		return nil, fmt.Errorf("history_service: list archives %q: %w", contractID, err)
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	return infos, nil
}

// Archived reads one archived submission of a contract by object name.
func (s *HistoryService) Archived(ctx context.Context, contractID, name string) (domain.ResolutionRecord, error) {
	if s.archives == nil || name == "" || strings.Contains(name, "/") || name != path.Clean(name) {
		return domain.ResolutionRecord{}, fmt.Errorf("history_service: archive %q: %w", name, domain.ErrNotFound)
	}
	p := domain.ArchivePrefix(contractID) + name

	ok, err := s.archives.Exists(ctx, p)
	if err != nil {
		return domain.ResolutionRecord{}, fmt.Errorf("history_service: stat %s: %w", p, err)
	}
	if !ok {
		return domain.ResolutionRecord{}, fmt.Errorf("history_service: archive %s: %w", p, domain.ErrNotFound)
	}

	rc, err := s.archives.Get(ctx, p)
	if err != nil {
		return domain.ResolutionRecord{}, fmt.Errorf("history_service: get %s: %w", p, err)
	}
	defer rc.Close()

	var rec domain.ResolutionRecord
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return domain.ResolutionRecord{}, fmt.Errorf("history_service: decode %s: %w", p, err)
	}
	return rec, nil
}
