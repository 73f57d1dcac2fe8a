package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	selectFetchSQL = `SELECT fetched_at FROM wallet_fetch
		WHERE wallet = ? AND chain_id = ? AND protocol = ?
	`

	selectTransactionsSQL = `SELECT payload FROM wallet_tx
		WHERE wallet = ? AND chain_id = ? AND protocol = ?
		ORDER BY seq ASC
	`

	deleteTransactionsSQL = `DELETE FROM wallet_tx
		WHERE wallet = ? AND chain_id = ? AND protocol = ?
	`

	insertTransactionSQL = `INSERT INTO wallet_tx (wallet, chain_id, protocol, seq, payload)
		VALUES (?, ?, ?, ?, ?)
	`

	upsertFetchSQL = `INSERT INTO wallet_fetch (wallet, chain_id, protocol, tx_count, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (wallet, chain_id, protocol) DO UPDATE
		SET tx_count = excluded.tx_count, fetched_at = excluded.fetched_at
	`

	clearTransactionsSQL = `DELETE FROM wallet_tx`
	clearFetchSQL        = `DELETE FROM wallet_fetch`
)

// CacheKey identifies one wallet history fetch. The protocol filter is part
// of the key because it changes which transactions were kept.
type CacheKey struct {
	Wallet   string
	ChainID  int
	Protocol string
}

func (k CacheKey) validate() error {
	if strings.TrimSpace(k.Wallet) == "" || k.ChainID <= 0 {
		return fmt.Errorf("wallet: %q, chain: %d are both required", k.Wallet, k.ChainID)
	}
	return nil
}

// SaveTransactions replaces the cached history for key.
func (s *Store) SaveTransactions(ctx context.Context, key CacheKey, payloads []json.RawMessage) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}
	if err := key.validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting cache tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(deleteTransactionsSQL), key.Wallet, key.ChainID, key.Protocol); err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("error clearing cached transactions for %s: %w", key.Wallet, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertTransactionSQL))
	if err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("error preparing transaction insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range payloads {
		if _, err := stmt.ExecContext(ctx, key.Wallet, key.ChainID, key.Protocol, i, string(p)); err != nil {
			rollbackTransaction(tx)
			return fmt.Errorf("error caching transaction %d for %s: %w", i, key.Wallet, err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(upsertFetchSQL), key.Wallet, key.ChainID, key.Protocol, len(payloads), s.timestamp()); err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("error saving fetch state for %s: %w", key.Wallet, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing cache tx: %w", err)
	}
	return nil
}

// GetTransactions returns the cached history for key. The boolean is false
// when nothing is cached or the fetch is older than maxAge. A zero maxAge
// accepts any age.
func (s *Store) GetTransactions(ctx context.Context, key CacheKey, maxAge time.Duration) ([]json.RawMessage, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, errDBNotInitialized
	}
	if err := key.validate(); err != nil {
		return nil, false, err
	}

	var fetchedAt string
	err := s.db.QueryRowContext(ctx, s.rebind(selectFetchSQL), key.Wallet, key.ChainID, key.Protocol).Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query fetch state for %s: %w", key.Wallet, err)
	}

	if maxAge > 0 {
		t, parseErr := time.Parse(timeFormat, fetchedAt)
		if parseErr != nil || s.now().UTC().Sub(t) > maxAge {
			return nil, false, nil
		}
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(selectTransactionsSQL), key.Wallet, key.ChainID, key.Protocol)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cached transactions for %s: %w", key.Wallet, err)
	}
	defer rows.Close()

	list := make([]json.RawMessage, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, false, fmt.Errorf("failed to scan cached transaction: %w", err)
		}
		list = append(list, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read cached transactions: %w", err)
	}

	return list, true, nil
}

// ClearCache deletes every cached history and returns the number of wallet
// fetches removed.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errDBNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting clear tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, clearTransactionsSQL); err != nil {
		rollbackTransaction(tx)
		return 0, fmt.Errorf("error clearing transactions: %w", err)
	}

	res, err := tx.ExecContext(ctx, clearFetchSQL)
	if err != nil {
		rollbackTransaction(tx)
		return 0, fmt.Errorf("error clearing fetch state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing clear tx: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting cleared rows: %w", err)
	}
	return n, nil
}
