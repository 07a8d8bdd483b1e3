package pipeline

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"go-sales-etl/internal/model"
)

// Fatal extraction errors. Anything else that goes wrong with a single line
// stays row-level and is settled by the validator downstream.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSchemaMismatch    = errors.New("source schema mismatch")
)

// CSVExtractor reads a delimited UTF-8 source file into RawRows. The header
// is checked once, before any row is yielded; per-row content is not
// validated here. The sequence is lazy and restartable: each call to Rows
// re-opens the file.
type CSVExtractor struct {
	path string
}

// NewCSVExtractor points an extractor at a source file.
func NewCSVExtractor(path string) *CSVExtractor {
	return &CSVExtractor{path: path}
}

// Rows yields every data row of the source. A non-nil error is fatal
// (ErrSourceUnavailable or ErrSchemaMismatch) and terminates the sequence.
// Lines that fail CSV parsing are yielded with their verbatim text and no
// fields, so the transformer can quarantine them with the original content.
// Records are read one physical line at a time: a quoted field containing an
// embedded newline is not supported and surfaces as two quarantined rows.
func (e *CSVExtractor) Rows() iter.Seq2[model.RawRow, error] {
	return func(yield func(model.RawRow, error) bool) {
		file, err := os.Open(e.path)
		if err != nil {
			yield(model.RawRow{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				yield(model.RawRow{}, fmt.Errorf("%w: reading header: %v", ErrSourceUnavailable, err))
			} else {
				yield(model.RawRow{}, fmt.Errorf("%w: empty source", ErrSchemaMismatch))
			}
			return
		}

		header, err := splitLine(scanner.Text())
		if err != nil {
			yield(model.RawRow{}, fmt.Errorf("%w: unparseable header: %v", ErrSchemaMismatch, err))
			return
		}
		columns := cleanHeader(header)
		if err := checkHeader(columns); err != nil {
			yield(model.RawRow{}, err)
			return
		}

		line := 1
		for scanner.Scan() {
			line++
			raw := scanner.Text()
			if strings.TrimSpace(raw) == "" {
				continue
			}

			row := model.RawRow{LineNumber: line, Raw: raw}
			if cells, err := splitLine(raw); err == nil {
				row.Fields = make(map[string]string, len(columns))
				for i, col := range columns {
					if i < len(cells) {
						row.Fields[col] = cells[i]
					}
				}
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(model.RawRow{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
		}
	}
}

// splitLine parses a single physical line as one CSV record. Parsing line by
// line keeps the verbatim text available for quarantine diagnostics.
func splitLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	cells, err := r.Read()
	if err != nil && err != io.EOF {
		return nil, err
	}
	return cells, nil
}

func cleanHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		h = strings.ReplaceAll(h, `"`, "")
		columns[i] = strings.ToLower(h)
	}
	return columns
}

// checkHeader enforces the expected column set: every required column
// present, nothing outside the known set, no duplicates. Order is free.
func checkHeader(columns []string) error {
	known := make(map[string]bool, len(model.RequiredColumns)+len(model.OptionalColumns))
	for _, c := range model.RequiredColumns {
		known[c] = true
	}
	for _, c := range model.OptionalColumns {
		known[c] = true
	}

	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if !known[c] {
			return fmt.Errorf("%w: unexpected column %q", ErrSchemaMismatch, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate column %q", ErrSchemaMismatch, c)
		}
		seen[c] = true
	}
	for _, c := range model.RequiredColumns {
		if !seen[c] {
			return fmt.Errorf("%w: missing column %q", ErrSchemaMismatch, c)
		}
	}
	return nil
}
