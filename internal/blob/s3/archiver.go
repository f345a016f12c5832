package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

const (
	contentTypeJSON  = "application/json"
	contentTypeJSONL = "application/x-ndjson"

	// archiveBatchSize bounds how many log rows one export file holds.
	archiveBatchSize = 1000
)

// ResolutionLog is the subset of domain.ResolutionStore the archiver needs.
type ResolutionLog interface {
	SetArchivePath(ctx context.Context, id int64, path string) error
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ResolutionRecord, error)
}

// Archiver implements domain.ResolutionArchiver. Each submission is copied to
// its own JSON object as it happens; ArchiveBefore sweeps up rows that were
// never copied (for example because blob storage was down) into JSONL
// exports.
//
// Rows are never deleted from the database here.
type Archiver struct {
	writer domain.BlobWriter
	log    ResolutionLog
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, log ResolutionLog, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		log:    log,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// ArchiveRecord uploads one record to resolutions/{contractId}/{ts}.json and,
// when the record has been persisted, stores the path on the row.
func (a *Archiver) ArchiveRecord(ctx context.Context, rec domain.ResolutionRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal resolution: %w", err)
	}

	path := RecordPath(rec.ContractID, rec.SubmittedAt)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), contentTypeJSON); err != nil {
		return "", fmt.Errorf("s3blob: archive resolution %s: %w", rec.ContractID, err)
	}
	if rec.ID != 0 {
		if err := a.log.SetArchivePath(ctx, rec.ID, path); err != nil {
			return path, fmt.Errorf("s3blob: record archive path: %w", err)
		}
	}
	return path, nil
}

// ArchiveBefore exports every unarchived row submitted before the cutoff as
// JSONL, in batches, and returns how many rows were exported.
func (a *Archiver) ArchiveBefore(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for batch := 0; ; batch++ {
		recs, err := a.log.ListBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive query: %w", err)
		}
		if len(recs) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(recs)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive marshal: %w", err)
		}

		path := exportPath(before, a.now(), batch)
		if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize); err != nil {
			return total, fmt.Errorf("s3blob: archive upload: %w", err)
		}
		for _, rec := range recs {
			if err := a.log.SetArchivePath(ctx, rec.ID, path); err != nil {
				return total, fmt.Errorf("s3blob: archive mark %d: %w", rec.ID, err)
			}
			total++
		}

		a.logger.InfoContext(ctx, "archived resolution batch",
			slog.String("path", path),
			slog.Int("count", len(recs)),
		)
		if len(recs) < archiveBatchSize {
			return total, nil
		}
	}
}

// RecordPath is the object path of a single archived submission.
//
//	resolutions/{contractId}/20250102T150405.000Z.json
func RecordPath(contractID string, submittedAt time.Time) string {
	return fmt.Sprintf("resolutions/%s/%s.json", contractID, submittedAt.UTC().Format("20060102T150405.000Z"))
}

// ContractPrefix lists every archived submission of a contract.
func ContractPrefix(contractID string) string {
	return domain.ArchivePrefix(contractID)
}

// exportPath partitions batch exports by the month of the cutoff.
//
//	archive/resolutions/2025-01/1735689600-0.jsonl
func exportPath(before, now time.Time, batch int) string {
	return fmt.Sprintf("archive/resolutions/%s/%d-%d.jsonl", before.UTC().Format("2006-01"), now.Unix(), batch)
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.ResolutionArchiver = (*Archiver)(nil)
