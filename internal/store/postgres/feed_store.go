package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// FeedStore implements domain.FeedStore by calling the
// get_recommended_contracts_embeddings database function, which is owned by
// the Supabase project rather than these migrations.
type FeedStore struct {
	pool *pgxpool.Pool
}

// NewFeedStore creates a new FeedStore.
func NewFeedStore(pool *pgxpool.Pool) *FeedStore {
	return &FeedStore{pool: pool}
}

// Recommended returns up to n contracts recommended for a user, skipping the
// excluded ids. Each row carries the contract document in its data column.
func (s *FeedStore) Recommended(ctx context.Context, userID string, n int, excludedContractIDs []string) ([]domain.Contract, error) {
	if excludedContractIDs == nil {
		excludedContractIDs = []string{}
	}
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM get_recommended_contracts_embeddings(uid => $1, n => $2, excluded_contract_ids => $3)`,
		userID, n, excludedContractIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: recommended contracts for %s: %w", userID, err)
	}
	defer rows.Close()

	var list []domain.Contract
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres: scan recommended contract: %w", err)
		}
		var doc domain.ContractDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("postgres: decode recommended contract: %w", err)
		}
		list = append(list, doc.ToDomain())
	}
	return list, rows.Err()
}
