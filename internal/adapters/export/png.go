package export

import (
	"fmt"
	"io"

	"github.com/okian/co2charts/internal/domain/chart"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	pngWidth  = 10 * vg.Inch
	pngHeight = 6 * vg.Inch
)

// RenderPNG draws one line per series. Absent values break the line so a
// gap is never drawn as a slope.
func RenderPNG(w io.Writer, p chart.Payload) error {
	if len(p.Series) == 0 {
		return ErrEmptyChart
	}

	pl := plot.New()
	pl.Title.Text = "CO2 emissions"
	pl.Title.TextStyle.Font.Size = vg.Points(14)
	pl.X.Label.Text = "Year"
	pl.Y.Label.Text = "CO2"
	pl.Legend.Top = true
	pl.Add(plotter.NewGrid())

	for i, s := range p.Series {
		colour := plotutil.Color(i)
		var legend plot.Thumbnailer
		for _, run := range runs(p.Years, s.Data) {
			if len(run) == 1 {
				dot, err := plotter.NewScatter(run)
				if err != nil {
					return fmt.Errorf("series %q: %w", s.Name, err)
				}
				dot.GlyphStyle.Color = colour
				dot.GlyphStyle.Shape = draw.CircleGlyph{}
				dot.GlyphStyle.Radius = vg.Points(2)
				pl.Add(dot)
				if legend == nil {
					legend = dot
				}
				continue
			}
			line, err := plotter.NewLine(run)
			if err != nil {
				return fmt.Errorf("series %q: %w", s.Name, err)
			}
			line.Color = colour
			line.Width = vg.Points(1.5)
			pl.Add(line)
			if legend == nil {
				legend = line
			}
		}
		if legend != nil {
			pl.Legend.Add(s.Name, legend)
		}
	}

	wt, err := pl.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// runs splits a series into contiguous stretches of present values.
func runs(years []int, data []*float64) []plotter.XYs {
	var (
		out     []plotter.XYs
		current plotter.XYs
	)
	for i, v := range data {
		if v == nil || i >= len(years) {
			if len(current) > 0 {
				out = append(out, current)
				current = nil
			}
			continue
		}
		current = append(current, plotter.XY{X: float64(years[i]), Y: *v})
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}
