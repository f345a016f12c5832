package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// ContractStore implements domain.ContractStore using PostgreSQL.
type ContractStore struct {
	pool *pgxpool.Pool
}

// NewContractStore creates a new ContractStore backed by the given connection pool.
func NewContractStore(pool *pgxpool.Pool) *ContractStore {
	return &ContractStore{pool: pool}
}

const contractCols = `id, slug, question, creator_id, creator_username, creator_name,
	outcome_type, mechanism, add_answers_mode, total_shares, pool,
	resolution, resolutions, resolution_probability, resolution_time,
	volume, volume_24_hours, close_time, created_at, updated_at`

const answerCols = `id, contract_id, user_id, text, idx, prob, subsidy_pool,
	resolution, resolution_time, is_other, name, username, avatar_url, created_at`

// Upsert inserts or updates a contract and replaces its answers.
func (s *ContractStore) Upsert(ctx context.Context, c domain.Contract) error {
	totalShares, err := marshalFloatMap(c.TotalShares)
	if err != nil {
		return fmt.Errorf("postgres: marshal total_shares: %w", err)
	}
	pool, err := marshalFloatMap(c.Pool)
	if err != nil {
		return fmt.Errorf("postgres: marshal pool: %w", err)
	}
	resolutions, err := marshalFloatMap(c.Resolutions)
	if err != nil {
		return fmt.Errorf("postgres: marshal resolutions: %w", err)
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO contracts (`+contractCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW())
		ON CONFLICT (id) DO UPDATE SET
			slug                   = EXCLUDED.slug,
			question               = EXCLUDED.question,
			creator_username       = EXCLUDED.creator_username,
			creator_name           = EXCLUDED.creator_name,
			add_answers_mode       = EXCLUDED.add_answers_mode,
			total_shares           = EXCLUDED.total_shares,
			pool                   = EXCLUDED.pool,
			resolution             = EXCLUDED.resolution,
			resolutions            = EXCLUDED.resolutions,
			resolution_probability = EXCLUDED.resolution_probability,
			resolution_time        = EXCLUDED.resolution_time,
			volume                 = EXCLUDED.volume,
			volume_24_hours        = EXCLUDED.volume_24_hours,
			close_time             = EXCLUDED.close_time,
			updated_at             = NOW()`,
		c.ID, c.Slug, c.Question, c.CreatorID, c.CreatorUsername, c.CreatorName,
		string(c.OutcomeType), string(c.Mechanism), string(c.AddAnswersMode), totalShares, pool,
		c.Resolution, resolutions, c.ResolutionProbability, c.ResolutionTime,
		c.Volume, c.Volume24Hours, c.CloseTime, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert contract %s: %w", c.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE contract_id = $1`, c.ID); err != nil {
		return fmt.Errorf("postgres: clear answers %s: %w", c.ID, err)
	}
	if len(c.Answers) > 0 {
		batch := &pgx.Batch{}
		for _, a := range c.Answers {
			answerCreated := a.CreatedAt
			if answerCreated.IsZero() {
				answerCreated = createdAt
			}
			batch.Queue(`
				INSERT INTO answers (`+answerCols+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
				a.ID, c.ID, a.UserID, a.Text, a.Index, a.Prob, a.SubsidyPool,
				a.Resolution, a.ResolutionTime, a.IsOther, a.Name, a.Username, a.AvatarURL, answerCreated,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range c.Answers {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert answer batch item %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close answer batch: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a contract and its answers.
func (s *ContractStore) GetByID(ctx context.Context, id string) (domain.Contract, error) {
	return s.getOne(ctx, `SELECT `+contractCols+` FROM contracts WHERE id = $1`, id)
}

// GetBySlug retrieves a contract by its URL slug.
func (s *ContractStore) GetBySlug(ctx context.Context, slug string) (domain.Contract, error) {
	return s.getOne(ctx, `SELECT `+contractCols+` FROM contracts WHERE slug = $1`, slug)
}

func (s *ContractStore) getOne(ctx context.Context, query, arg string) (domain.Contract, error) {
	c, err := scanContract(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contract{}, domain.ErrNotFound
		}
		return domain.Contract{}, fmt.Errorf("postgres: get contract %s: %w", arg, err)
	}
	list := []domain.Contract{c}
	if err := s.attachAnswers(ctx, list); err != nil {
		return domain.Contract{}, err
	}
	return list[0], nil
}

// ListAll returns contracts, newest first.
func (s *ContractStore) ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.Contract, error) {
	query := `SELECT ` + contractCols + ` FROM contracts WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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

// ListHot returns open contracts with the most trading in the last day.
func (s *ContractStore) ListHot(ctx context.Context, limit int) ([]domain.Contract, error) {
	if limit <= 0 {
		limit = 16
	}
	return s.list(ctx, `
		SELECT `+contractCols+` FROM contracts
		WHERE resolution = '' AND (close_time IS NULL OR close_time > NOW())
		ORDER BY volume_24_hours DESC
		LIMIT $1`, limit)
}

func (s *ContractStore) list(ctx context.Context, query string, args ...any) ([]domain.Contract, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list contracts: %w", err)
	}
	defer rows.Close()

	var list []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan contract: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list contracts rows: %w", err)
	}
	if err := s.attachAnswers(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// attachAnswers loads the answers of all given contracts in one query.
func (s *ContractStore) attachAnswers(ctx context.Context, list []domain.Contract) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	pos := make(map[string]int, len(list))
	for i, c := range list {
		ids[i] = c.ID
		pos[c.ID] = i
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+answerCols+` FROM answers WHERE contract_id = ANY($1) ORDER BY contract_id, idx`, ids)
	if err != nil {
		return fmt.Errorf("postgres: list answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(
			&a.ID, &a.ContractID, &a.UserID, &a.Text, &a.Index, &a.Prob, &a.SubsidyPool,
			&a.Resolution, &a.ResolutionTime, &a.IsOther, &a.Name, &a.Username, &a.AvatarURL, &a.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: scan answer: %w", err)
		}
		i := pos[a.ContractID]
		list[i].Answers = append(list[i].Answers, a)
	}
	return rows.Err()
}

func scanContract(row pgx.Row) (domain.Contract, error) {
	var c domain.Contract
	var outcomeType, mechanism, addAnswersMode string
	var totalShares, pool, resolutions []byte
	err := row.Scan(
		&c.ID, &c.Slug, &c.Question, &c.CreatorID, &c.CreatorUsername, &c.CreatorName,
		&outcomeType, &mechanism, &addAnswersMode, &totalShares, &pool,
		&c.Resolution, &resolutions, &c.ResolutionProbability, &c.ResolutionTime,
		&c.Volume, &c.Volume24Hours, &c.CloseTime, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Contract{}, err
	}
	c.OutcomeType = domain.OutcomeType(outcomeType)
	c.Mechanism = domain.Mechanism(mechanism)
	c.AddAnswersMode = domain.AddAnswersMode(addAnswersMode)
	if c.TotalShares, err = unmarshalFloatMap(totalShares); err != nil {
		return domain.Contract{}, fmt.Errorf("total_shares: %w", err)
	}
	if c.Pool, err = unmarshalFloatMap(pool); err != nil {
		return domain.Contract{}, fmt.Errorf("pool: %w", err)
	}
	if c.Resolutions, err = unmarshalFloatMap(resolutions); err != nil {
		return domain.Contract{}, fmt.Errorf("resolutions: %w", err)
	}
	return c, nil
}

func marshalFloatMap(m map[string]float64) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalFloatMap(data []byte) (map[string]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
