package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL.
// Rows are append-only apart from the archive path.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a new ResolutionStore.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

const resolutionCols = `id, contract_id, session_id, mechanism, mode, request,
	status, error, response, submitted_at, archive_path`

// Insert appends a record and returns its id.
func (s *ResolutionStore) Insert(ctx context.Context, rec domain.ResolutionRecord) (int64, error) {
	reqJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return 0, fmt.Errorf("postgres: marshal resolution request: %w", err)
	}
	var response []byte
	if len(rec.Response) > 0 {
		response = rec.Response
	}
	submittedAt := rec.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO resolution_log (contract_id, session_id, mechanism, mode, request, status, error, response, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		rec.ContractID, rec.SessionID, string(rec.Mechanism), string(rec.Mode), reqJSON,
		string(rec.Status), rec.Error, response, submittedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert resolution for %s: %w", rec.ContractID, err)
	}
	return id, nil
}

// SetArchivePath records where a row was copied in blob storage.
func (s *ResolutionStore) SetArchivePath(ctx context.Context, id int64, path string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE resolution_log SET archive_path = $2 WHERE id = $1`, id, path)
	if err != nil {
		return fmt.Errorf("postgres: set archive path %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByContract returns submissions for a contract, newest first.
func (s *ResolutionStore) ListByContract(ctx context.Context, contractID string, opts domain.ListOpts) ([]domain.ResolutionRecord, error) {
	query := `SELECT ` + resolutionCols + ` FROM resolution_log WHERE contract_id = $1`
	args := []any{contractID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND submitted_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND submitted_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += " ORDER BY submitted_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.list(ctx, query, args...)
}

// ListBefore returns unarchived records submitted before the cutoff, oldest
// first.
func (s *ResolutionStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ResolutionRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	return s.list(ctx, `
		SELECT `+resolutionCols+` FROM resolution_log
		WHERE submitted_at < $1 AND archive_path = ''
		ORDER BY submitted_at ASC LIMIT $2`, before, limit)
}

func (s *ResolutionStore) list(ctx context.Context, query string, args ...any) ([]domain.ResolutionRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolutions: %w", err)
	}
	defer rows.Close()

	var list []domain.ResolutionRecord
	for rows.Next() {
		rec, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan resolution: %w", err)
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func scanResolution(row pgx.Row) (domain.ResolutionRecord, error) {
	var rec domain.ResolutionRecord
	var mechanism, mode, status string
	var reqJSON, response []byte
	if err := row.Scan(&rec.ID, &rec.ContractID, &rec.SessionID, &mechanism, &mode, &reqJSON,
		&status, &rec.Error, &response, &rec.SubmittedAt, &rec.ArchivePath); err != nil {
		return domain.ResolutionRecord{}, err
	}
	rec.Mechanism = domain.Mechanism(mechanism)
	rec.Mode = domain.ResolutionMode(mode)
	rec.Status = domain.ResolutionStatus(status)
	if len(response) > 0 {
		rec.Response = json.RawMessage(response)
	}
	if err := json.Unmarshal(reqJSON, &rec.Request); err != nil {
		return domain.ResolutionRecord{}, fmt.Errorf("request: %w", err)
	}
	return rec, nil
}
