package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LabelRow is one external judgment keyed to a post's positional offset
// in the canonical table at label-creation time. IndexGet is 1-based: by
// convention it is one greater than the zero-based row offset it refers
// to.
type LabelRow struct {
	IndexGet   int `json:"index_get"`
	FinalLabel int `json:"final_label"`
}

// LoadLabels reads the label table. A missing file is ErrNotFound; a
// header lacking index_get or final_label is ErrMalformed. Rows whose
// index_get does not parse as an integer are skipped.
func LoadLabels(path string) ([]LabelRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file: %w", path, ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", path, err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idxGet, ok := idx["index_get"]
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q: %w", path, "index_get", ErrMalformed)
	}
	idxLabel, ok := idx["final_label"]
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q: %w", path, "final_label", ErrMalformed)
	}

	var rows []LabelRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if idxGet >= len(rec) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(rec[idxGet]))
		if err != nil {
			continue
		}
		row := LabelRow{IndexGet: n}
		if idxLabel < len(rec) {
			row.FinalLabel, _ = strconv.Atoi(strings.TrimSpace(rec[idxLabel]))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
