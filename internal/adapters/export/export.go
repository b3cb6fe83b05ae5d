// Package export renders chart payloads as PNG images and XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/okian/co2charts/internal/domain/chart"
)

// Format names an export encoding.
type Format string

// Supported formats.
const (
	FormatPNG  Format = "png"
	FormatXLSX Format = "xlsx"
)

// ParseFormat resolves a query value. An empty value means PNG.
func ParseFormat(v string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(v))) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%q: %w", v, ErrUnsupportedFormat)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "image/png"
}

// Filename returns a download name for the format.
func (f Format) Filename() string {
	return "co2-chart." + string(f)
}

// Write encodes p in format f.
func Write(w io.Writer, f Format, p chart.Payload) error {
	switch f {
	case FormatPNG:
		return RenderPNG(w, p)
	case FormatXLSX:
		return WriteXLSX(w, p)
	default:
		return fmt.Errorf("%q: %w", f, ErrUnsupportedFormat)
	}
}
