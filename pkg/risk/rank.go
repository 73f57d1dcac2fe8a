package risk

import "math"

// Risk categories derived from a batch score.
const (
	CategoryLow     = "Low"
	CategoryMedium  = "Medium"
	CategoryHigh    = "High"
	CategoryExtreme = "Extreme"

	lowThreshold    = 800
	mediumThreshold = 600
	highThreshold   = 400
)

// ScoredRecord is a FeatureRecord with its batch score and derived
// presentation fields.
type ScoredRecord struct {
	FeatureRecord `yaml:",inline"`
	Score         int     `json:"score" yaml:"score"`
	Risk          string  `json:"risk" yaml:"risk"`
	BorrowRatio   float64 `json:"borrow_ratio" yaml:"borrowRatio"`
}

// Rank scores the batch and attaches the risk category and borrow ratio
// to each record. Order matches the input.
func Rank(batch []FeatureRecord) ([]ScoredRecord, error) {
	scores, err := Score(batch)
	if err != nil {
		return nil, err
	}
	return Attach(batch, scores), nil
}

// Attach pairs each record with the score at the same index. scores must
// come from scoring the same batch.
func Attach(batch []FeatureRecord, scores []int) []ScoredRecord {
	list := make([]ScoredRecord, len(batch))
	for i, r := range batch {
		list[i] = ScoredRecord{
			FeatureRecord: r,
			Score:         scores[i],
			Risk:          Category(scores[i]),
			BorrowRatio:   BorrowRatio(r),
		}
	}
	return list
}

// Category maps a score to its risk label.
func Category(score int) string {
	switch {
	case score >= lowThreshold:
		return CategoryLow
	case score >= mediumThreshold:
		return CategoryMedium
	case score >= highThreshold:
		return CategoryHigh
	default:
		return CategoryExtreme
	}
}

// BorrowRatio is the share of borrow transactions in percent, rounded half
// to even at two decimals (1 of 32 is 3.12).
func BorrowRatio(r FeatureRecord) float64 {
	if r.TotalTx == 0 || r.BorrowCount == 0 {
		return 0
	}
	ratio := float64(r.BorrowCount) / float64(r.TotalTx) * 100
	return math.RoundToEven(ratio*100) / 100
}
