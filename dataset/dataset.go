// Package dataset loads the raw HowLongToBeat table and derives the
// train and test splits consumed by the training stage.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Column names of the raw table this pipeline consumes.
const (
	ColID              = "id"
	ColName            = "name"
	ColReleaseYear     = "release_year"
	ColReleaseMonth    = "release_month"
	ColMainStory       = "main_story"
	ColMainStoryPolled = "main_story_polled"
	ColMainPlusSides   = "main_plus_sides"
	ColMainPlusPolled  = "main_plus_sides_polled"
	ColCompletionist   = "completionist"
	RawFile            = "hltb_game.csv"
	FileXTrain         = "X_train.csv"
	FileYTrain         = "y_train.csv"
	FileXTest          = "X_test.csv"
	FileYTest          = "y_test.csv"
	trainingCutoffYear = 2020
)

// TrainFeatures are the model inputs. Release time is dropped after
// the year split; it only exists to separate past from future data.
var TrainFeatures = []string{
	ColMainStory,
	ColMainStoryPolled,
	ColMainPlusSides,
	ColMainPlusPolled,
}

// TestFeatures keep release time so scoring can slice by year.
var TestFeatures = []string{
	ColReleaseYear,
	ColReleaseMonth,
	ColMainStory,
	ColMainStoryPolled,
	ColMainPlusSides,
	ColMainPlusPolled,
}

var cleanColumns = []string{
	ColID,
	ColReleaseYear,
	ColReleaseMonth,
	ColMainStory,
	ColMainStoryPolled,
	ColMainPlusSides,
	ColMainPlusPolled,
	ColCompletionist,
}

// Table is an in-memory CSV table. Cells stay strings so that a
// prepared table written back to disk is byte-identical across runs.
type Table struct {
	Header []string
	Rows   [][]string
}

func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %s has no header row", path)
	}
	return &Table{Header: records[0], Rows: records[1:]}, nil
}

func (t *Table) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Select projects the table onto the named columns, in order.
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j := t.Index(name)
		if j < 0 {
			return nil, fmt.Errorf("dataset: missing column %q", name)
		}
		idx[i] = j
	}
	out := &Table{Header: append([]string(nil), names...)}
	for _, row := range t.Rows {
		selected := make([]string, len(idx))
		for i, j := range idx {
			selected[i] = row[j]
		}
		out.Rows = append(out.Rows, selected)
	}
	return out, nil
}

// Column parses the named column as float64.
func (t *Table) Column(name string) ([]float64, error) {
	j := t.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("dataset: missing column %q", name)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		v, err := strconv.ParseFloat(row[j], 64)
		if err != nil {
			return nil, fmt.Errorf("dataset: row %d column %q: %w", i, name, err)
		}
		out[i] = v
	}
	return out, nil
}

// Matrix parses the named columns as a row-major feature matrix.
func (t *Table) Matrix(names ...string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for i, name := range names {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	out := make([][]float64, t.Len())
	for i := range out {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		out[i] = row
	}
	return out, nil
}

// Clean deduplicates by game name keeping the first occurrence,
// projects onto the modelling columns, and drops rows with missing or
// unparseable values.
func Clean(raw *Table) (*Table, error) {
	nameIdx := raw.Index(ColName)
	if nameIdx < 0 {
		return nil, fmt.Errorf("dataset: missing column %q", ColName)
	}

	seen := make(map[string]bool, len(raw.Rows))
	deduped := &Table{Header: raw.Header}
	for _, row := range raw.Rows {
		// truncated export rows carry missing values
		if len(row) != len(raw.Header) {
			continue
		}
		if seen[row[nameIdx]] {
			continue
		}
		seen[row[nameIdx]] = true
		deduped.Rows = append(deduped.Rows, row)
	}

	selected, err := deduped.Select(cleanColumns...)
	if err != nil {
		return nil, err
	}

	out := &Table{Header: selected.Header}
	for _, row := range selected.Rows {
		if complete(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// complete reports whether every cell parses as a number. Empty cells
// are how missing values appear in the raw export.
func complete(row []string) bool {
	for _, cell := range row {
		if cell == "" {
			return false
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
	}
	return true
}

// Split holds the prepared train and test tables.
type Split struct {
	XTrain *Table
	YTrain *Table
	XTest  *Table
	YTest  *Table
}

// Prepare cleans the raw table and splits it by release year: games
// released up to the cutoff train the model, later games simulate
// scoring on unseen data.
func Prepare(raw *Table) (*Split, error) {
	cleaned, err := Clean(raw)
	if err != nil {
		return nil, err
	}

	yearIdx := cleaned.Index(ColReleaseYear)
	train := &Table{Header: cleaned.Header}
	test := &Table{Header: cleaned.Header}
	for _, row := range cleaned.Rows {
		year, err := strconv.ParseFloat(row[yearIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("dataset: release year %q: %w", row[yearIdx], err)
		}
		if year <= trainingCutoffYear {
			train.Rows = append(train.Rows, row)
		} else {
			test.Rows = append(test.Rows, row)
		}
	}

	split := new(Split)
	if split.XTrain, err = train.Select(TrainFeatures...); err != nil {
		return nil, err
	}
	if split.YTrain, err = train.Select(ColCompletionist); err != nil {
		return nil, err
	}
	if split.XTest, err = test.Select(TestFeatures...); err != nil {
		return nil, err
	}
	if split.YTest, err = test.Select(ColCompletionist); err != nil {
		return nil, err
	}
	return split, nil
}

// Save writes the four split files into dir, creating it if needed.
func (s *Split) Save(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	files := map[string]*Table{
		FileXTrain: s.XTrain,
		FileYTrain: s.YTrain,
		FileXTest:  s.XTest,
		FileYTest:  s.YTest,
	}
	for name, table := range files {
		if err := table.WriteFile(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// FilterRows keeps the rows at the given indexes, preserving order.
func (t *Table) FilterRows(keep []int) *Table {
	out := &Table{Header: t.Header}
	for _, i := range keep {
		out.Rows = append(out.Rows, t.Rows[i])
	}
	return out
}
