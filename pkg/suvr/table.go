package suvr

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"petpipe/internal/models"
)

// Table holds one row of reference means for a subject/session. Regions
// without a value are written as empty cells.
type Table struct {
	ID    models.Identity
	means map[models.Region]float64
}

// NewTable returns an empty table for id.
func NewTable(id models.Identity) *Table {
	return &Table{ID: id, means: make(map[models.Region]float64)}
}

// Record stores the mean of a region, replacing any earlier value.
func (t *Table) Record(r models.Region, mean float64) {
	t.means[r] = mean
}

// Means returns a copy of the recorded values keyed by region name.
func (t *Table) Means() map[string]float64 {
	out := make(map[string]float64, len(t.means))
	for r, m := range t.means {
		out[r.String()] = m
	}
	return out
}

// Header returns the fixed column names.
func Header() []string {
	cols := []string{"subject", "session"}
	for _, r := range models.Regions() {
		cols = append(cols, r.String())
	}
	return cols
}

// Row returns the table's single data row.
func (t *Table) Row() []string {
	row := []string{t.ID.Subject, t.ID.Session}
	for _, r := range models.Regions() {
		cell := ""
		if m, ok := t.means[r]; ok {
			cell = strconv.FormatFloat(m, 'g', -1, 64)
		}
		row = append(row, cell)
	}
	return row
}

// WriteCSV writes the header and the row to path, replacing the file.
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create reference table: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll([][]string{Header(), t.Row()}); err != nil {
		return fmt.Errorf("failed to write reference table: %w", err)
	}
	return f.Close()
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}
