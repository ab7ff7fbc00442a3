// Package usecase orchestrates the horizontal-mean diagnostics: residual
// construction, global and per-basin reductions, and transport section
// assembly for rendering and serving.
package usecase

import (
	"fmt"
	"log"
	"math"

	"github.com/rmshkv/mom6-tools/internal/adapter/store/basins"
	"github.com/rmshkv/mom6-tools/internal/adapter/store/climo"
	"github.com/rmshkv/mom6-tools/internal/adapter/store/grid"
	"github.com/rmshkv/mom6-tools/internal/adapter/store/nc"
	"github.com/rmshkv/mom6-tools/internal/adapter/store/obs"
	"github.com/rmshkv/mom6-tools/internal/config"
	"github.com/rmshkv/mom6-tools/internal/domain"
	"github.com/rmshkv/mom6-tools/internal/panel"
)

// MOM6 mass transports are kg/s; 1 Sv = 1e6 m3/s of seawater at the
// Boussinesq reference density.
const kgPerSecPerSv = 1035.0 * 1e6

// Diagnostics wires the providers together for one diagnosed case.
type Diagnostics struct {
	cfg      *config.Config
	grid     *grid.Grid
	obsStore *obs.Store
	climoGen *climo.Generator
	basinSet *domain.BasinSet
	debug    bool
}

// NewDiagnostics loads the case grid and basin masks and prepares the
// climatology and observation providers.
func NewDiagnostics(cfg *config.Config, debug bool) (*Diagnostics, error) {
	g, err := grid.Load(cfg.Case.StaticFile)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", cfg.Case.Name, err)
	}

	d := &Diagnostics{
		cfg:      cfg,
		grid:     g,
		obsStore: obs.NewStore(cfg.Obs.PHCTemp, cfg.Obs.PHCSalt),
		climoGen: climo.NewGenerator(cfg.Case.ClimoDir, cfg.Case.Name, cfg.Climo.StartYear, cfg.Climo.EndYear),
		debug:    debug,
	}

	if cfg.Basins.File != "" {
		bs, err := basins.Load(cfg.Basins.File, cfg.Basins.Variable)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", cfg.Case.Name, err)
		}
		d.basinSet = bs
	}

	return d, nil
}

// Variables returns the diagnosed variable names.
func (d *Diagnostics) Variables() []string {
	return d.cfg.Climo.Variables
}

// Regions returns the basin labels, in mask-set order.
func (d *Diagnostics) Regions() []string {
	if d.basinSet == nil {
		return nil
	}
	return d.basinSet.Regions
}

// ReducedSeries is one reduced statistic over (time, z_l), optionally also
// split by basin.
type ReducedSeries struct {
	Global   [][]float64   `json:"global"`
	PerBasin [][][]float64 `json:"per_basin,omitempty"`
}

// VariableStats holds the bias and RMSE reductions for one variable's
// residual against observations.
type VariableStats struct {
	Variable string    `json:"variable"`
	Time     []float64 `json:"time"`
	Depth    []float64 `json:"z_l"`
	Regions  []string  `json:"regions,omitempty"`

	Bias ReducedSeries `json:"bias"`
	RMSE ReducedSeries `json:"rmse"`
}

// ResidualStats stages the climatology for a variable, forms the residual
// against the matching observation, and reduces it globally and per basin.
func (d *Diagnostics) ResidualStats(varName string) (*VariableStats, error) {
	model, err := d.climoGen.Stage(varName)
	if err != nil {
		return nil, err
	}

	observed, err := d.loadObservation(varName)
	if err != nil {
		return nil, err
	}

	residual, err := model.Sub(observed)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", varName, err)
	}

	weights := d.weights()
	if weights == nil {
		return nil, fmt.Errorf("case %s: static file carries neither volcello nor areacello", d.cfg.Case.Name)
	}

	stats := &VariableStats{
		Variable: varName,
		Time:     residual.Coords[domain.DimTime],
		Depth:    residual.Coords[domain.DimZl],
	}

	opts := domain.ReduceOptions{Weights: weights, Debug: d.debug}
	bias, err := domain.HorizontalMeanDiff(residual, opts)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", varName, err)
	}
	rmse, err := domain.HorizontalMeanRMSE(residual, opts)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", varName, err)
	}
	stats.Bias.Global = timeDepthGrid(bias)
	stats.RMSE.Global = timeDepthGrid(rmse)

	// Per-basin reductions need 3-D (volume) weights.
	if d.basinSet != nil && d.grid.Volume != nil {
		opts.Basins = d.basinSet
		basinBias, err := domain.HorizontalMeanDiff(residual, opts)
		if err != nil {
			return nil, fmt.Errorf("variable %s per basin: %w", varName, err)
		}
		basinRMSE, err := domain.HorizontalMeanRMSE(residual, opts)
		if err != nil {
			return nil, fmt.Errorf("variable %s per basin: %w", varName, err)
		}
		stats.Regions = basinBias.Labels[domain.DimRegion]
		stats.Bias.PerBasin = basinGrid(basinBias)
		stats.RMSE.PerBasin = basinGrid(basinRMSE)
	}

	return stats, nil
}

// weights picks the weighting field: cell volume when available (required
// for basin mode), cell area otherwise.
func (d *Diagnostics) weights() *domain.Field {
	if d.grid.Volume != nil {
		return d.grid.Volume
	}
	return d.grid.Area
}

func (d *Diagnostics) loadObservation(varName string) (*domain.Field, error) {
	switch varName {
	case "thetao":
		return d.obsStore.LoadTemperature(d.grid.Xh, d.grid.Yh)
	case "so":
		return d.obsStore.LoadSalinity(d.grid.Xh, d.grid.Yh)
	default:
		return nil, fmt.Errorf("variable %s: no observational reference configured", varName)
	}
}

// timeDepthGrid lays a (time, z_l) field out as [time][z].
func timeDepthGrid(f *domain.Field) [][]float64 {
	nt := f.Data.Shape[0]
	nz := f.Data.Shape[1]
	out := make([][]float64, nt)
	for t := 0; t < nt; t++ {
		out[t] = make([]float64, nz)
		for k := 0; k < nz; k++ {
			out[t][k] = f.Data.Get(t, k)
		}
	}
	return out
}

// basinGrid lays a (region, time, z_l) field out as [region][time][z].
func basinGrid(f *domain.Field) [][][]float64 {
	nb := f.Data.Shape[0]
	nt := f.Data.Shape[1]
	nz := f.Data.Shape[2]
	out := make([][][]float64, nb)
	for b := 0; b < nb; b++ {
		out[b] = make([][]float64, nt)
		for t := 0; t < nt; t++ {
			out[b][t] = make([]float64, nz)
			for k := 0; k < nz; k++ {
				out[b][t][k] = f.Data.Get(b, t, k)
			}
		}
	}
	return out
}

// TransportSections assembles the configured transport time series. A
// section that fails to load is skipped with a warning, matching the
// tolerant behavior of the plotting driver; the error list is returned for
// the caller's log.
func (d *Diagnostics) TransportSections() ([]panel.Section, []error) {
	sections := make([]panel.Section, 0, len(d.cfg.Sections))
	var failures []error
	for _, sc := range d.cfg.Sections {
		s, err := d.transport(sc)
		if err != nil {
			failures = append(failures, fmt.Errorf("section %s: %w", sc.Label, err))
			continue
		}
		sections = append(sections, s)
	}
	return sections, failures
}

func (d *Diagnostics) transport(sc config.Section) (panel.Section, error) {
	f, err := nc.ReadField(sc.File, sc.Variable)
	if err != nil {
		return panel.Section{}, err
	}
	if len(f.Dims) == 0 || f.Dims[0] != domain.DimTime {
		return panel.Section{}, fmt.Errorf("variable %s: %w: %s", sc.Variable, domain.ErrMissingDim, domain.DimTime)
	}
	f, err = climo.SelectYears(f, d.cfg.Climo.StartYear, d.cfg.Climo.EndYear)
	if err != nil {
		return panel.Section{}, err
	}

	series := SectionTransport(f)
	times := f.Coords[domain.DimTime]
	if times == nil {
		times = make([]float64, len(series))
		for i := range times {
			times[i] = float64(i)
		}
	}
	if d.debug {
		log.Printf("section %s: %d time steps, mean %.3f Sv", sc.Label, len(series), mean(series))
	}

	return panel.Section{
		Label: sc.Label,
		Time:  times,
		Data:  series,
		YLim:  sc.YLim,
	}, nil
}

// SectionTransport collapses a (time, ...) mass-transport field to a Sv time
// series by summing each time step across the section, skipping missing
// cells.
func SectionTransport(f *domain.Field) []float64 {
	nt := f.Data.Shape[0]
	stride := 1
	for _, n := range f.Data.Shape[1:] {
		stride *= n
	}
	out := make([]float64, nt)
	for t := 0; t < nt; t++ {
		var sum float64
		var seen bool
		for i := t * stride; i < (t+1)*stride; i++ {
			v := f.Data.Elements[i]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			seen = true
		}
		if !seen {
			out[t] = math.NaN()
			continue
		}
		out[t] = sum / kgPerSecPerSv
	}
	return out
}

// ObservedFlows converts the configured references into the plotter's form.
func (d *Diagnostics) ObservedFlows() map[string]panel.ObservedFlow {
	out := make(map[string]panel.ObservedFlow, len(d.cfg.ObservedFlows))
	for label, r := range d.cfg.ObservedFlows {
		out[label] = panel.ObservedFlow{Min: r.Min, Max: r.Max, Range: r.Range}
	}
	return out
}

func mean(xs []float64) float64 {
	var sum float64
	var n int
	for _, v := range xs {
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
