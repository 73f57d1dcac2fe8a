package risk

import (
	"log/slog"
	"strings"
)

const (
	keywordBorrow      = "borrow"
	keywordRepay       = "repay"
	keywordLiquidation = "liquidat"
	keywordSupply      = "supply"
	keywordMint        = "mint"
)

// FeatureRecord holds per-wallet activity counts.
// The sum of the four category counts never exceeds TotalTx.
type FeatureRecord struct {
	WalletID         string `json:"wallet_id" yaml:"walletID"`
	SupplyCount      int    `json:"supply_tx_count" yaml:"supplyTxCount"`
	BorrowCount      int    `json:"borrow_tx_count" yaml:"borrowTxCount"`
	RepayCount       int    `json:"repay_tx_count" yaml:"repayTxCount"`
	LiquidationCount int    `json:"liquidation_count" yaml:"liquidationCount"`
	TotalTx          int    `json:"total_tx" yaml:"totalTx"`
}

// Classify counts the lending activity in a single wallet's transactions.
// Each transaction increments at most one category, checked in the order
// borrow, repay, liquidation, supply/mint. Transactions that match nothing,
// or can not be rendered, only count toward TotalTx.
func Classify(walletID string, txs []RawTransaction) FeatureRecord {
	f := FeatureRecord{
		WalletID: walletID,
		TotalTx:  len(txs),
	}

	for i, tx := range txs {
		if tx == nil {
			continue
		}

		text, err := tx.Text()
		if err != nil {
			slog.Debug("skipping unrenderable transaction", "wallet", walletID, "index", i, "error", err)
			continue
		}

		switch text = strings.ToLower(text); {
		case strings.Contains(text, keywordBorrow):
			f.BorrowCount++
		case strings.Contains(text, keywordRepay):
			f.RepayCount++
		case strings.Contains(text, keywordLiquidation):
			f.LiquidationCount++
		case strings.Contains(text, keywordSupply), strings.Contains(text, keywordMint):
			f.SupplyCount++
		}
	}

	return f
}
