package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors for workbook import.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrInvalidCell   = errors.New("invalid cell value")
	ErrEmptySheet    = errors.New("sheet has no header row")
)

// RowError locates a bad cell in the source sheet.
type RowError struct {
	Sheet  string
	Row    int // 1-based, as shown by spreadsheet tools
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("sheet %q row %d column %q: %v", e.Sheet, e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
