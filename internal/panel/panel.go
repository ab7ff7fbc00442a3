// Package panel renders transport time-series comparison figures: a fixed
// grid of subplots, one per section, colored against observed ranges.
package panel

import (
	"fmt"
	"image/color"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// The figure is a fixed 6x3 grid of panels.
const (
	GridRows = 6
	GridCols = 3
)

// Line colors: neutral when no reference range applies, green when the
// series mean falls inside the observed range, red when it falls outside.
var (
	colorNeutral = color.RGBA{R: 0xc3, G: 0xc3, B: 0xc3, A: 0xff}
	colorWithin  = color.RGBA{R: 0x90, G: 0xee, B: 0x90, A: 0xff}
	colorOutside = color.RGBA{R: 0xf2, G: 0x61, B: 0x61, A: 0xff}
)

// Section is one already-reduced transport time series.
type Section struct {
	Label string
	Time  []float64
	Data  []float64
	YLim  *[2]float64
}

// Mean returns the NaN-skipping mean of the section data.
func (s Section) Mean() float64 {
	var sum float64
	var n int
	for _, v := range s.Data {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// ObservedFlow is a reference transport: a scalar value or a (min, max)
// range when Range is set.
type ObservedFlow struct {
	Min   float64
	Max   float64
	Range bool
}

// Label renders the observed reference annotation.
func (o ObservedFlow) Label() string {
	if o.Range {
		return fmt.Sprintf("%g to %g", o.Min, o.Max)
	}
	return fmt.Sprintf("%g", o.Min)
}

// LineColor decides the panel line color. Range coloring applies only when
// an observed range exists and colorCode is enabled; otherwise the line is
// neutral.
func LineColor(mean float64, obs *ObservedFlow, colorCode bool) color.Color {
	if obs == nil || !obs.Range || !colorCode {
		return colorNeutral
	}
	if obs.Min <= mean && mean <= obs.Max {
		return colorWithin
	}
	return colorOutside
}

// Render draws each section into its grid cell and writes the figure as a
// PNG. At most GridRows*GridCols sections fit.
func Render(sections []Section, observed map[string]ObservedFlow, colorCode bool, outPath string) error {
	if len(sections) > GridRows*GridCols {
		return fmt.Errorf("too many sections: %d for a %dx%d grid", len(sections), GridRows, GridCols)
	}

	plots := make([][]*plot.Plot, GridRows)
	for r := range plots {
		plots[r] = make([]*plot.Plot, GridCols)
	}

	for n, s := range sections {
		p, err := buildPanel(s, observed, colorCode, n%GridCols == 0)
		if err != nil {
			return fmt.Errorf("section %s: %w", s.Label, err)
		}
		plots[n/GridCols][n%GridCols] = p
	}

	img := vgimg.New(12*vg.Inch, 16*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: GridRows,
		Cols: GridCols,
		PadX: vg.Millimeter * 3,
		PadY: vg.Millimeter * 3,
	}
	canvases := plot.Align(plots, tiles, dc)
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			if plots[r][c] != nil {
				plots[r][c].Draw(canvases[r][c])
			}
		}
	}

	w, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer func() { _ = w.Close() }()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return nil
}

func buildPanel(s Section, observed map[string]ObservedFlow, colorCode, leftColumn bool) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = s.Label
	p.Title.TextStyle.Font.Size = vg.Points(12)
	if leftColumn {
		p.Y.Label.Text = "Transport (Sv)"
	}

	var obs *ObservedFlow
	if o, ok := observed[s.Label]; ok {
		obs = &o
	}
	mean := s.Mean()

	xys := make(plotter.XYs, len(s.Data))
	for i := range s.Data {
		xys[i].X = s.Time[i]
		xys[i].Y = s.Data[i]
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.Color = LineColor(mean, obs, colorCode)
	p.Add(line)

	if s.YLim != nil {
		p.Y.Min = s.YLim[0]
		p.Y.Max = s.YLim[1]
	}

	// Annotate the mean and, when available, the observed reference in the
	// lower-left corner.
	annotations := plotter.XYLabels{}
	x0, y0, dy := annotationAnchor(s)
	annotations.XYs = append(annotations.XYs, plotter.XY{X: x0, Y: y0 + dy})
	annotations.Labels = append(annotations.Labels, fmt.Sprintf("Mean = %.2f", mean))
	if obs != nil {
		annotations.XYs = append(annotations.XYs, plotter.XY{X: x0, Y: y0})
		annotations.Labels = append(annotations.Labels, "Obs. = "+obs.Label())
	}
	labels, err := plotter.NewLabels(annotations)
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Font.Size = vg.Points(10)
	}
	p.Add(labels)

	return p, nil
}

// annotationAnchor picks data coordinates near the lower-left corner of the
// panel for the text annotations.
func annotationAnchor(s Section) (x, y, dy float64) {
	xmin, ymin, ymax := math.Inf(1), math.Inf(1), math.Inf(-1)
	for i := range s.Data {
		xmin = math.Min(xmin, s.Time[i])
		if !math.IsNaN(s.Data[i]) {
			ymin = math.Min(ymin, s.Data[i])
			ymax = math.Max(ymax, s.Data[i])
		}
	}
	if s.YLim != nil {
		ymin, ymax = s.YLim[0], s.YLim[1]
	}
	if math.IsInf(ymin, 1) {
		ymin, ymax = 0, 1
	}
	span := ymax - ymin
	if span == 0 {
		span = 1
	}
	return xmin, ymin + 0.04*span, 0.07 * span
}
