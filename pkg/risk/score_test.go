package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_EmptyBatch(t *testing.T) {
	_, err := Score(nil)
	assert.ErrorIs(t, err, ErrInvalidBatch)

	_, err = Score([]FeatureRecord{})
	assert.ErrorIs(t, err, ErrInvalidBatch)

	_, err = Rank(nil)
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

func TestNormalize_Bounds(t *testing.T) {
	got := Normalize([]int{3, 7, 5, 11})
	require.Len(t, got, 4)
	assert.Equal(t, 0.0, got[0])
	assert.Equal(t, 0.5, got[1])
	assert.Equal(t, 0.25, got[2])
	assert.Equal(t, 1.0, got[3])
	for _, v := range got {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestNormalize_Tied(t *testing.T) {
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, Normalize([]int{4, 4, 4}))
	assert.Equal(t, []float64{0.5}, Normalize([]int{9}))
	assert.Empty(t, Normalize(nil))
}

func TestEvaluate_TiedBorrowDimension(t *testing.T) {
	batch := []FeatureRecord{
		{WalletID: "a", SupplyCount: 1, BorrowCount: 2, TotalTx: 3},
		{WalletID: "b", SupplyCount: 4, BorrowCount: 2, TotalTx: 6},
		{WalletID: "c", RepayCount: 3, BorrowCount: 2, TotalTx: 5},
	}
	e, err := Evaluate(batch)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, e.Borrow)
	assert.False(t, e.Degenerate)
}

func TestScore_Range(t *testing.T) {
	batches := [][]FeatureRecord{
		{
			{WalletID: "a", SupplyCount: 1},
			{WalletID: "b", BorrowCount: 9, LiquidationCount: 3},
			{WalletID: "c", RepayCount: 2, SupplyCount: 8},
			{WalletID: "d"},
		},
		{
			{WalletID: "a", SupplyCount: 100, RepayCount: 1},
			{WalletID: "b", SupplyCount: 99, RepayCount: 2},
		},
	}

	for _, batch := range batches {
		scores, err := Score(batch)
		require.NoError(t, err)
		require.Len(t, scores, len(batch))
		lo, hi := MaxScore, 0
		for _, s := range scores {
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, MaxScore)
			lo = min(lo, s)
			hi = max(hi, s)
		}
		assert.Equal(t, 0, lo)
		assert.Equal(t, MaxScore, hi)
	}
}

func TestScore_SaferProfileScoresHigher(t *testing.T) {
	batch := []FeatureRecord{
		{WalletID: "A", SupplyCount: 10, RepayCount: 5, TotalTx: 15},
		{WalletID: "B", BorrowCount: 10, LiquidationCount: 5, TotalTx: 15},
	}
	scores, err := Score(batch)
	require.NoError(t, err)
	assert.Greater(t, scores[0], scores[1])
	assert.Equal(t, []int{1000, 0}, scores)
}

func TestScore_SingleWallet(t *testing.T) {
	profiles := []FeatureRecord{
		{WalletID: "solo"},
		{WalletID: "solo", SupplyCount: 3, BorrowCount: 7, RepayCount: 1, LiquidationCount: 2, TotalTx: 20},
	}
	for _, p := range profiles {
		e, err := Evaluate([]FeatureRecord{p})
		require.NoError(t, err)
		assert.True(t, e.Degenerate)
		assert.Equal(t, []int{NeutralScore}, e.Scores)
	}
}

func TestScore_IdenticalWallets(t *testing.T) {
	r := FeatureRecord{SupplyCount: 2, BorrowCount: 2, RepayCount: 2, LiquidationCount: 2, TotalTx: 8}
	scores, err := Score([]FeatureRecord{r, r, r})
	require.NoError(t, err)
	assert.Equal(t, []int{NeutralScore, NeutralScore, NeutralScore}, scores)
}

func TestScore_EndToEnd(t *testing.T) {
	batch := []FeatureRecord{
		{WalletID: "W1", SupplyCount: 5, RepayCount: 5, TotalTx: 10},
		{WalletID: "W2", BorrowCount: 5, TotalTx: 5},
		{WalletID: "W3", LiquidationCount: 5, TotalTx: 5},
	}

	e, err := Evaluate(batch)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, e.Raw[0], 1e-9)
	assert.InDelta(t, -0.1, e.Raw[1], 1e-9)
	assert.InDelta(t, -0.2, e.Raw[2], 1e-9)

	assert.Equal(t, 1000, e.Scores[0])
	assert.Equal(t, 111, e.Scores[1])
	assert.Equal(t, 0, e.Scores[2])
	assert.Less(t, e.Scores[2], e.Scores[1])
	assert.Less(t, e.Scores[1], e.Scores[0])
}

func TestScore_OrderFollowsInput(t *testing.T) {
	batch := []FeatureRecord{
		{WalletID: "W3", LiquidationCount: 5, TotalTx: 5},
		{WalletID: "W1", SupplyCount: 5, RepayCount: 5, TotalTx: 10},
		{WalletID: "W2", BorrowCount: 5, TotalTx: 5},
	}
	scores, err := Score(batch)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1000, 111}, scores)
}

func TestScore_BatchRelative(t *testing.T) {
	a := FeatureRecord{WalletID: "a", SupplyCount: 2, TotalTx: 2}
	b := FeatureRecord{WalletID: "b", BorrowCount: 2, TotalTx: 2}
	c := FeatureRecord{WalletID: "c", SupplyCount: 10, TotalTx: 10}

	two, err := Score([]FeatureRecord{a, b})
	require.NoError(t, err)
	three, err := Score([]FeatureRecord{a, b, c})
	require.NoError(t, err)

	assert.Equal(t, 1000, two[0])
	assert.Less(t, three[0], 1000)
	assert.Equal(t, 1000, three[2])
}

func TestRoundScore(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.5, 0},
		{1.5, 2},
		{2.5, 2},
		{110.5, 110},
		{111.1111, 111},
		{998.5, 998},
		{999.5, 1000},
		{1000, 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundScore(tt.in), "%v", tt.in)
	}
}
