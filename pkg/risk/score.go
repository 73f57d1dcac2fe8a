package risk

import (
	"errors"
	"log/slog"
	"math"
)

const (
	// MaxScore is the score of the most favorable wallet in a batch.
	MaxScore = 1000

	// NeutralScore is assigned to every wallet when the batch carries no
	// discriminating information (all raw scores equal).
	NeutralScore = 500

	// tiedDimensionValue is the normalized value of a dimension on which
	// all wallets in the batch are tied.
	tiedDimensionValue = 0.5

	supplyWeight      = 0.4
	repayWeight       = 0.3
	borrowWeight      = -0.1
	liquidationWeight = -0.2
)

// ErrInvalidBatch is returned when a batch can not be scored.
var ErrInvalidBatch = errors.New("invalid batch: at least one record is required")

// Evaluation is the full breakdown of a batch scoring run.
type Evaluation struct {
	Supply      []float64 `json:"supply" yaml:"supply"`
	Repay       []float64 `json:"repay" yaml:"repay"`
	Borrow      []float64 `json:"borrow" yaml:"borrow"`
	Liquidation []float64 `json:"liquidation" yaml:"liquidation"`
	Raw         []float64 `json:"raw" yaml:"raw"`
	Scores      []int     `json:"scores" yaml:"scores"`
	// Degenerate is set when all raw scores are equal and every wallet
	// received NeutralScore.
	Degenerate bool `json:"degenerate" yaml:"degenerate"`
}

// Score returns one score in [0, MaxScore] per record, in batch order.
// Scores are relative to the batch: adding or removing a wallet can change
// every other wallet's score.
func Score(batch []FeatureRecord) ([]int, error) {
	e, err := Evaluate(batch)
	if err != nil {
		return nil, err
	}
	return e.Scores, nil
}

// Evaluate scores the batch and returns the intermediate values.
func Evaluate(batch []FeatureRecord) (*Evaluation, error) {
	if len(batch) == 0 {
		return nil, ErrInvalidBatch
	}

	n := len(batch)
	supply := make([]int, n)
	repay := make([]int, n)
	borrow := make([]int, n)
	liquidation := make([]int, n)
	for i, r := range batch {
		supply[i] = r.SupplyCount
		repay[i] = r.RepayCount
		borrow[i] = r.BorrowCount
		liquidation[i] = r.LiquidationCount
	}

	e := &Evaluation{
		Supply:      Normalize(supply),
		Repay:       Normalize(repay),
		Borrow:      Normalize(borrow),
		Liquidation: Normalize(liquidation),
		Raw:         make([]float64, n),
		Scores:      make([]int, n),
	}

	for i := range batch {
		e.Raw[i] = supplyWeight*e.Supply[i] +
			repayWeight*e.Repay[i] +
			borrowWeight*e.Borrow[i] +
			liquidationWeight*e.Liquidation[i]
	}

	lo, hi := bounds(e.Raw)
	if hi == lo {
		slog.Debug("degenerate batch, assigning neutral score", "wallets", n, "score", NeutralScore)
		e.Degenerate = true
		for i := range e.Scores {
			e.Scores[i] = NeutralScore
		}
		return e, nil
	}

	for i, raw := range e.Raw {
		e.Scores[i] = roundScore((raw - lo) / (hi - lo) * MaxScore)
	}

	return e, nil
}

// roundScore rounds half to even, so 0.5 becomes 0 and 1.5 becomes 2.
func roundScore(v float64) int {
	return int(math.RoundToEven(v))
}

// Normalize min-max scales values to [0, 1]. When all values are equal,
// including the single-value case, every result is 0.5.
func Normalize(values []int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	for i, v := range values {
		if hi == lo {
			out[i] = tiedDimensionValue
			continue
		}
		out[i] = float64(v-lo) / float64(hi-lo)
	}
	return out
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
