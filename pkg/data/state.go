package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var stateQueries = map[string]string{
	"wallets":      "SELECT COUNT(*) FROM wallet_fetch",
	"transactions": "SELECT COUNT(*) FROM wallet_tx",
	"chains":       "SELECT COUNT(DISTINCT chain_id) FROM wallet_fetch",
	"schema":       "SELECT COALESCE(MAX(version), 0) FROM schema_version",
}

// GetDataState returns row counts describing the cache.
func (s *Store) GetDataState(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64, len(stateQueries))
	for k, q := range stateQueries {
		var count int64
		err := s.db.QueryRowContext(ctx, q).Scan(&count)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("error getting %s count: %w", k, err)
		}
		state[k] = count
	}

	return state, nil
}
