// Package wallets loads the list of wallet addresses to analyze.
package wallets

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnName is the header of the wallet column in spreadsheet inputs.
const ColumnName = "wallet_id"

const commentPrefix = "#"

var errPathRequired = errors.New("wallet list path is required")

// Load reads wallet addresses from path. Spreadsheets (.xlsx) and .csv files
// use the wallet_id column, or the first column when there is no such
// header. Any other file is read one address per line. Blank entries and
// duplicates are dropped; order of first appearance is kept.
func Load(path string) ([]string, error) {
	if path == "" {
		return nil, errPathRequired
	}

	var (
		list []string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		list, err = loadSpreadsheet(path)
	case ".csv":
		list, err = loadCSV(path)
	default:
		list, err = loadText(path)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("wallets loaded", "path", path, "count", len(list))
	return list, nil
}

// Merge concatenates lists, keeping the first occurrence of each wallet.
func Merge(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, l := range lists {
		for _, w := range l {
			w = strings.TrimSpace(w)
			if w == "" || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func loadSpreadsheet(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("error reading sheet %s: %w", sheet, err)
	}

	return fromRows(rows), nil
}

func loadCSV(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}

	return fromRows(rows), nil
}

func loadText(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer file.Close()

	return readLines(file)
}

func readLines(r io.Reader) ([]string, error) {
	list := make([]string, 0)
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		list = append(list, line)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("error reading wallet list: %w", err)
	}
	return Merge(list), nil
}

func fromRows(rows [][]string) []string {
	if len(rows) == 0 {
		return []string{}
	}

	col, start := 0, 0
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), ColumnName) {
			col, start = i, 1
			break
		}
	}

	list := make([]string, 0, len(rows))
	for _, row := range rows[start:] {
		if col < len(row) {
			list = append(list, row[col])
		}
	}
	return Merge(list)
}
