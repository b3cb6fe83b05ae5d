// Package ingest loads emission workbooks into a repository.Writer.
//
// The first sheet (or the one selected with WithSheet) must start with a
// header row. Recognised columns, matched case-insensitively:
//
//	country      required
//	year         required
//	iso_code     optional
//	surface_km2  optional
//	co2          optional, empty cells are stored as absent
//	population   optional
//
// co2_per_km2 is derived from co2 and surface_km2 when both are present.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	repository "github.com/okian/co2charts/internal/adapters/repository"
	"github.com/okian/co2charts/internal/domain/model"
	"github.com/okian/co2charts/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// Column names.
const (
	ColCountry    = "country"
	ColYear       = "year"
	ColISOCode    = "iso_code"
	ColSurfaceKm2 = "surface_km2"
	ColCO2        = "co2"
	ColPopulation = "population"
)

// Result summarises an import.
type Result struct {
	Rows      int
	Countries int
	Years     int
	Emissions int
	Skipped   int
}

// Option configures an Importer.
type Option func(*Importer)

// WithSheet selects the sheet to read instead of the first one.
func WithSheet(name string) Option {
	return func(i *Importer) {
		if name != "" {
			i.sheet = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(i *Importer) {
		if l != nil {
			i.logger = l
		}
	}
}

// Importer reads workbooks and upserts their rows.
type Importer struct {
	writer repository.Writer
	sheet  string
	logger logger.Logger
}

// NewImporter creates an Importer writing to w.
func NewImporter(w repository.Writer, opts ...Option) *Importer {
	i := &Importer{
		writer: w,
		logger: logger.Get().Named("ingest"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportFile opens the workbook at path and imports it.
func (i *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return i.importWorkbook(ctx, f)
}

// Import reads a workbook from r and imports it.
func (i *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	return i.importWorkbook(ctx, f)
}

func (i *Importer) importWorkbook(ctx context.Context, f *excelize.File) (Result, error) {
	sheet := i.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("%w: %q", ErrEmptySheet, sheet)
	}

	cols, err := headerIndex(rows[0])
	if err != nil {
		return Result{}, fmt.Errorf("sheet %q: %w", sheet, err)
	}

	var (
		res       Result
		countries = map[string]int64{}
		years     = map[int]int64{}
	)
	for n, raw := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rowNum := n + 2
		row, ok, rowErr := parseRow(raw, cols)
		if rowErr != nil {
			rowErr.Sheet = sheet
			rowErr.Row = rowNum
			return res, rowErr
		}
		if !ok {
			res.Skipped++
			continue
		}
		res.Rows++

		countryID, seen := countries[row.country.Name]
		if !seen || row.country.ISOCode != nil || row.country.SurfaceKm2 != nil {
			countryID, err = i.writer.UpsertCountry(ctx, row.country)
			if err != nil {
				return res, err
			}
			if !seen {
				countries[row.country.Name] = countryID
				res.Countries++
			}
		}

		yearID, seen := years[row.year]
		if !seen {
			yearID, err = i.writer.UpsertYear(ctx, row.year)
			if err != nil {
				return res, err
			}
			years[row.year] = yearID
			res.Years++
		}

		row.emission.CountryID = countryID
		row.emission.YearID = yearID
		if err := i.writer.UpsertEmission(ctx, row.emission); err != nil {
			return res, err
		}
		res.Emissions++
	}

	i.logger.Info(ctx, "workbook imported",
		logger.String("sheet", sheet),
		logger.Int("rows", res.Rows),
		logger.Int("countries", res.Countries),
		logger.Int("years", res.Years),
		logger.Int("skipped", res.Skipped))
	return res, nil
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for idx, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = idx
		}
	}
	for _, required := range []string{ColCountry, ColYear} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return cols, nil
}

type parsedRow struct {
	country  model.Country
	year     int
	emission model.Emission
}

// parseRow returns ok=false for blank rows.
func parseRow(raw []string, cols map[string]int) (parsedRow, bool, *RowError) {
	cell := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(raw) {
			return ""
		}
		return strings.TrimSpace(raw[idx])
	}

	name := cell(ColCountry)
	yearText := cell(ColYear)
	if name == "" && yearText == "" {
		return parsedRow{}, false, nil
	}
	if name == "" {
		return parsedRow{}, false, &RowError{Column: ColCountry, Err: ErrInvalidCell}
	}
	year, err := strconv.Atoi(strings.TrimSuffix(yearText, ".0"))
	if err != nil {
		return parsedRow{}, false, &RowError{Column: ColYear, Err: fmt.Errorf("%w: %q", ErrInvalidCell, yearText)}
	}

	var out parsedRow
	out.year = year
	out.country.Name = name
	if iso := cell(ColISOCode); iso != "" {
		out.country.ISOCode = &iso
	}
	if out.country.SurfaceKm2, err = optionalFloat(cell(ColSurfaceKm2)); err != nil {
		return parsedRow{}, false, &RowError{Column: ColSurfaceKm2, Err: err}
	}
	if out.emission.CO2, err = optionalFloat(cell(ColCO2)); err != nil {
		return parsedRow{}, false, &RowError{Column: ColCO2, Err: err}
	}
	if pop, err := optionalFloat(cell(ColPopulation)); err != nil {
		return parsedRow{}, false, &RowError{Column: ColPopulation, Err: err}
	} else if pop != nil {
		p := int64(*pop)
		out.emission.Population = &p
	}
	if co2, area := out.emission.CO2, out.country.SurfaceKm2; co2 != nil && area != nil && *area > 0 {
		density := *co2 / *area
		out.emission.CO2PerKm2 = &density
	}
	return out, true, nil
}

func optionalFloat(text string) (*float64, error) {
	if text == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCell, text)
	}
	return &v, nil
}
