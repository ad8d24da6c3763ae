// Package csvimport reads transaction rows from delimited text.
//
// The first line is a header and is skipped. Every following row carries
// exactly four fields in the order title, type, value, category.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"gofinances/internal/core"
)

const fieldsPerRow = 4

// Row is one parsed import line.
type Row struct {
	Line     int // 1-based, header included
	Title    string
	Type     core.TransactionType
	Value    core.Money
	Category string
}

// Parse consumes r entirely and returns its rows in source order. The first
// malformed row aborts parsing with a *core.ParseError.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var rows []Row
	header := true
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			line := 0
			if errors.As(err, &csvErr) {
				line = csvErr.StartLine
			}
			return nil, &core.ParseError{Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)
		if header {
			header = false
			continue
		}

		row, err := parseRecord(line, record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(line int, record []string) (Row, error) {
	if len(record) != fieldsPerRow {
		return Row{}, &core.ParseError{
			Line: line,
			Err:  fmt.Errorf("%w: got %d fields", core.ErrMissingFields, len(record)),
		}
	}

	title := core.NormalizeTitle(record[0])
	if title == "" {
		return Row{}, &core.ParseError{Line: line, Field: "title", Err: core.ErrEmptyTitle}
	}

	typ, err := core.ParseTransactionType(record[1])
	if err != nil {
		return Row{}, &core.ParseError{Line: line, Field: "type", Err: err}
	}

	value, err := core.ParseAmount(record[2])
	if err != nil {
		return Row{}, &core.ParseError{Line: line, Field: "value", Err: fmt.Errorf("%w: %q", err, record[2])}
	}

	category := core.NormalizeTitle(record[3])
	if category == "" {
		return Row{}, &core.ParseError{Line: line, Field: "category", Err: core.ErrEmptyCategory}
	}

	return Row{
		Line:     line,
		Title:    title,
		Type:     typ,
		Value:    value,
		Category: category,
	}, nil
}

// Categories returns the category title of every row, duplicates included.
func Categories(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Category
	}
	return out
}
