// Package risk implements the wallet lending-activity classifier and the
// batch-relative risk scorer. It exposes [Classify], [Score], [Evaluate]
// and [Rank]. All functions are pure; scores are only meaningful within
// the batch they were computed for.
package risk
