// Package export writes scored wallet batches to files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/risk"
)

// Layout selects the CSV columns.
type Layout string

const (
	// LayoutScores writes wallet_id and score only.
	LayoutScores Layout = "scores"
	// LayoutFull adds risk, total_tx and borrow_ratio.
	LayoutFull Layout = "full"

	fileMode = 0600
)

var layoutHeaders = map[Layout][]string{
	LayoutScores: {"wallet_id", "score"},
	LayoutFull:   {"wallet_id", "score", "risk", "total_tx", "borrow_ratio"},
}

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	l := Layout(s)
	if _, ok := layoutHeaders[l]; !ok {
		return "", fmt.Errorf("invalid layout %q (valid: %s, %s)", s, LayoutScores, LayoutFull)
	}
	return l, nil
}

// WriteCSV writes the records with a header row.
func WriteCSV(w io.Writer, layout Layout, list []risk.ScoredRecord) error {
	header, ok := layoutHeaders[layout]
	if !ok {
		return fmt.Errorf("invalid layout: %q", layout)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	for _, r := range list {
		row := []string{r.WalletID, strconv.Itoa(r.Score)}
		if layout == LayoutFull {
			row = append(row,
				r.Risk,
				strconv.Itoa(r.TotalTx),
				strconv.FormatFloat(r.BorrowRatio, 'f', -1, 64),
			)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("error writing %s: %w", r.WalletID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("error flushing csv: %w", err)
	}
	return nil
}

// SaveCSV writes the records to a file at path, replacing it if present.
func SaveCSV(path string, layout Layout, list []risk.ScoredRecord) (retErr error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing file: %w", cerr)
		}
	}()

	return WriteCSV(out, layout, list)
}
