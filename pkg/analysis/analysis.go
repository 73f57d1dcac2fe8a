// Package analysis runs a scoring batch: it fetches each wallet's history,
// classifies it and scores the whole batch at once.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/data"
	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/risk"
)

const concurrencyDefault = 4

var errNoWallets = errors.New("at least one wallet is required")

// Source returns the raw transaction history of a wallet.
type Source interface {
	Transactions(ctx context.Context, wallet string) ([]json.RawMessage, error)
}

// Cache stores fetched histories between runs.
type Cache interface {
	GetTransactions(ctx context.Context, key data.CacheKey, maxAge time.Duration) ([]json.RawMessage, bool, error)
	SaveTransactions(ctx context.Context, key data.CacheKey, payloads []json.RawMessage) error
}

// Options control a run.
type Options struct {
	// ChainID and Protocol form the cache key together with the wallet.
	ChainID  int
	Protocol string
	// Concurrency is the number of wallets fetched at once.
	Concurrency int
	// CacheTTL is the maximum age of a cached history. Zero accepts any age.
	CacheTTL time.Duration
	// Refresh skips cache reads; fetched histories are still saved.
	Refresh bool
	// Strict fails the run when any wallet can not be fetched. Otherwise the
	// wallet is scored with an empty history.
	Strict bool
}

// Analyzer ties a transaction source and an optional cache to the scorer.
type Analyzer struct {
	source Source
	cache  Cache
	opts   Options
}

// Result is the outcome of a scoring run.
type Result struct {
	Records    []risk.ScoredRecord `json:"records" yaml:"records"`
	Degenerate bool                `json:"degenerate,omitempty" yaml:"degenerate,omitempty"`
	Failed     []string            `json:"failed,omitempty" yaml:"failed,omitempty"`
	CacheHits  int                 `json:"cache_hits" yaml:"cacheHits"`
	Duration   string              `json:"duration" yaml:"duration"`
}

// FeatureResult is the outcome of a classification-only run.
type FeatureResult struct {
	Records   []risk.FeatureRecord `json:"records" yaml:"records"`
	Failed    []string             `json:"failed,omitempty" yaml:"failed,omitempty"`
	CacheHits int                  `json:"cache_hits" yaml:"cacheHits"`
	Duration  string               `json:"duration" yaml:"duration"`
}

// New creates an Analyzer. cache may be nil.
func New(source Source, cache Cache, opts Options) *Analyzer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = concurrencyDefault
	}
	return &Analyzer{source: source, cache: cache, opts: opts}
}

// Classify fetches and classifies every wallet. Records are in wallet order.
func (a *Analyzer) Classify(ctx context.Context, wallets []string) (*FeatureResult, error) {
	if len(wallets) == 0 {
		return nil, errNoWallets
	}
	if a.source == nil && a.cache == nil {
		return nil, errors.New("transaction source is required")
	}

	start := time.Now()
	res := &FeatureResult{
		Records: make([]risk.FeatureRecord, len(wallets)),
	}

	failed := make([]bool, len(wallets))
	hits := make([]bool, len(wallets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)

	for i, w := range wallets {
		g.Go(func() error {
			txs, hit, err := a.history(gctx, w)
			if err != nil {
				if a.opts.Strict || gctx.Err() != nil {
					return fmt.Errorf("error getting transactions for %s: %w", w, err)
				}
				slog.Warn("failed to get transactions, scoring with empty history", "wallet", w, "error", err)
				failed[i] = true
			}
			hits[i] = hit

			res.Records[i] = risk.Classify(w, toRaw(txs))
			slog.Debug("wallet classified", "wallet", w, "total_tx", res.Records[i].TotalTx, "cached", hit)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, w := range wallets {
		if failed[i] {
			res.Failed = append(res.Failed, w)
		}
		if hits[i] {
			res.CacheHits++
		}
	}

	res.Duration = time.Since(start).String()
	return res, nil
}

// Run classifies every wallet and scores the batch.
func (a *Analyzer) Run(ctx context.Context, wallets []string) (*Result, error) {
	start := time.Now()

	fr, err := a.Classify(ctx, wallets)
	if err != nil {
		return nil, err
	}

	e, err := risk.Evaluate(fr.Records)
	if err != nil {
		return nil, fmt.Errorf("error scoring batch: %w", err)
	}

	if e.Degenerate {
		slog.Info("batch has no discriminating activity, all wallets scored neutral",
			"wallets", len(wallets),
			"score", risk.NeutralScore,
		)
	}

	return &Result{
		Records:    risk.Attach(fr.Records, e.Scores),
		Degenerate: e.Degenerate,
		Failed:     fr.Failed,
		CacheHits:  fr.CacheHits,
		Duration:   time.Since(start).String(),
	}, nil
}

func (a *Analyzer) history(ctx context.Context, wallet string) ([]json.RawMessage, bool, error) {
	key := data.CacheKey{Wallet: wallet, ChainID: a.opts.ChainID, Protocol: a.opts.Protocol}

	if a.cache != nil && !a.opts.Refresh {
		txs, ok, err := a.cache.GetTransactions(ctx, key, a.opts.CacheTTL)
		if err != nil {
			slog.Warn("cache read failed", "wallet", wallet, "error", err)
		} else if ok {
			return txs, true, nil
		}
	}

	if a.source == nil {
		return nil, false, fmt.Errorf("no cached history for %s and no source configured", wallet)
	}

	txs, err := a.source.Transactions(ctx, wallet)
	if err != nil {
		return nil, false, err
	}

	if a.cache != nil {
		if err := a.cache.SaveTransactions(ctx, key, txs); err != nil {
			slog.Warn("cache write failed", "wallet", wallet, "error", err)
		}
	}

	return txs, false, nil
}

func toRaw(list []json.RawMessage) []risk.RawTransaction {
	txs := make([]risk.RawTransaction, len(list))
	for i, m := range list {
		txs[i] = risk.JSONTransaction(m)
	}
	return txs
}
