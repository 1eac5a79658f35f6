/*
Copyright © 2024 the SUSI authors.
This file is part of SUSI.

SUSI is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SUSI is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SUSI.  If not, see <http://www.gnu.org/licenses/>.
*/

package susi

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/kr/pretty"
	"github.com/spatialmodel/susi/science/canopy"
	"github.com/spatialmodel/susi/science/esom"
	"github.com/spatialmodel/susi/science/fertilization"
	"github.com/spatialmodel/susi/science/stand"
	"github.com/spatialmodel/susi/science/strip"
	"github.com/spatialmodel/susi/science/temperature"
)

// LayerParams describes the initial state of one canopy layer.
type LayerParams struct {
	Species string  `toml:"species"`
	Age     float64 `toml:"age"` // yr
}

// Scenario is one ditch depth configuration. Depths are in m and
// negative below the ground surface.
type Scenario struct {
	Name                                 string
	DitchDepthWest, DitchDepthEast       float64
	DitchDepth20yWest, DitchDepth20yEast float64
}

// Params holds every parameter of a simulation. It is read-only once
// validated.
type Params struct {
	StartYear int `toml:"start_year"`
	EndYear   int `toml:"end_year"`

	// Strip geometry and peat stratigraphy.
	N          int       `toml:"n"`           // computation nodes, including the ditches
	L          float64   `toml:"l"`           // ditch spacing [m]
	NLyrs      int       `toml:"nlyrs"`       // peat layers
	DzLyr      float64   `toml:"dzlyr"`       // layer thickness [m]
	VonPTop    []float64 `toml:"vonp_top"`    // von Post degree of the topmost layers
	VonPBottom float64   `toml:"vonp_bottom"` // von Post degree of the remaining layers
	Anisotropy float64   `toml:"anisotropy"`
	Slope      float64   `toml:"slope"`      // %
	InitialH   float64   `toml:"initial_h"`  // m
	RootDepth  float64   `toml:"root_depth"` // m

	// Ditch depth scenarios, one entry per scenario in every list.
	ScenarioName      []string  `toml:"scenario_name"`
	DitchDepthWest    []float64 `toml:"ditch_depth_west"`
	DitchDepthEast    []float64 `toml:"ditch_depth_east"`
	DitchDepth20yWest []float64 `toml:"ditch_depth_20y_west"`
	DitchDepth20yEast []float64 `toml:"ditch_depth_20y_east"`

	// Stand.
	SFC           int         `toml:"sfc"` // site fertility class
	Dominant      LayerParams `toml:"dominant"`
	Subdominant   LayerParams `toml:"subdominant"`
	Under         LayerParams `toml:"under"`
	GrowthTempSum float64     `toml:"growth_temp_sum"`
	OptimalAFP    float64     `toml:"optimal_afp"`

	// MottiFile optionally gives an Excel workbook of growth tables.
	// The built-in table is used when it is empty.
	MottiFile string `toml:"motti_file"`

	CuttingYear int     `toml:"cutting_yr"`
	CuttingToBA float64 `toml:"cutting_to_ba"` // m2 ha-1

	Fertilization fertilization.Config `toml:"fertilization"`

	// Atmospheric deposition [kg ha-1 yr-1].
	DepoN float64 `toml:"depo_n"`
	DepoP float64 `toml:"depo_p"`
	DepoK float64 `toml:"depo_k"`

	TemperatureSolveMode temperature.Mode `toml:"temperature_solve_mode"`

	Canopy canopy.CanopyConfig `toml:"canopy"`
	Moss   canopy.MossConfig   `toml:"moss"`
}

// DefaultParams returns the parameters of a drained, moderately
// fertile Scots pine site with a single 0.5 m ditch depth scenario.
func DefaultParams() *Params {
	return &Params{
		StartYear:  2004,
		EndYear:    2005,
		N:          21,
		L:          40,
		NLyrs:      20,
		DzLyr:      0.1,
		VonPTop:    []float64{2, 2, 3, 4, 5, 6},
		VonPBottom: 7,
		Anisotropy: 10,
		InitialH:   -0.3,
		RootDepth:  0.4,

		ScenarioName:      []string{"D50"},
		DitchDepthWest:    []float64{-0.5},
		DitchDepthEast:    []float64{-0.5},
		DitchDepth20yWest: []float64{-0.5},
		DitchDepth20yEast: []float64{-0.5},

		SFC:           3,
		Dominant:      LayerParams{Species: "pine", Age: 40},
		Subdominant:   LayerParams{Species: "spruce", Age: 25},
		Under:         LayerParams{Species: "birch", Age: 10},
		GrowthTempSum: 1100,
		OptimalAFP:    0.1,

		CuttingYear: 0,
		CuttingToBA: 10,

		Fertilization: fertilization.Config{
			ApplicationYear: 2201,
			N:               fertilization.Nutrient{Dose: 0, DecayK: 0.5, Efficiency: 1},
			P:               fertilization.Nutrient{Dose: 45, DecayK: 0.2, Efficiency: 1},
			K:               fertilization.Nutrient{Dose: 100, DecayK: 0.3, Efficiency: 1},
			PHIncrement:     1,
			PHDecayK:        0.1,
		},

		DepoN: 4,
		DepoP: 0.1,
		DepoK: 1,

		TemperatureSolveMode: temperature.Sparse,

		Canopy: canopy.DefaultCanopyConfig(),
		Moss:   canopy.DefaultMossConfig(),
	}
}

// ReadParams decodes TOML parameters from r on top of the defaults
// and validates them.
func ReadParams(r io.Reader) (*Params, error) {
	p := DefaultParams()
	if _, err := toml.NewDecoder(r).Decode(p); err != nil {
		return nil, fmt.Errorf("susi: reading parameters: %w: %v", ErrConfig, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks every parameter and returns all violations together.
func (p *Params) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	if p.EndYear < p.StartYear {
		add("end year %d before start year %d", p.EndYear, p.StartYear)
	}
	if p.N < 3 {
		add("need at least 3 nodes, have %d", p.N)
	}
	if p.L <= 0 {
		add("ditch spacing must be positive, got %g", p.L)
	}
	if p.NLyrs < 1 || p.DzLyr <= 0 {
		add("invalid peat layering: %d layers of %g m", p.NLyrs, p.DzLyr)
	}
	if len(p.VonPTop) > p.NLyrs {
		add("%d von Post values for %d layers", len(p.VonPTop), p.NLyrs)
	}
	for _, vp := range append(append([]float64(nil), p.VonPTop...), p.VonPBottom) {
		if _, err := strip.Properties(vp, 1); err != nil {
			add("%v", err)
			break
		}
	}
	if p.Anisotropy <= 0 {
		add("anisotropy must be positive, got %g", p.Anisotropy)
	}
	if p.InitialH > 0 || p.InitialH < -float64(p.NLyrs)*p.DzLyr {
		add("initial water table %g m outside the peat column", p.InitialH)
	}
	if p.RootDepth <= 0 {
		add("root depth must be positive, got %g", p.RootDepth)
	}

	ns := len(p.ScenarioName)
	if ns == 0 {
		add("no ditch depth scenarios")
	}
	for _, l := range []struct {
		name string
		n    int
	}{
		{"ditch_depth_west", len(p.DitchDepthWest)},
		{"ditch_depth_east", len(p.DitchDepthEast)},
		{"ditch_depth_20y_west", len(p.DitchDepth20yWest)},
		{"ditch_depth_20y_east", len(p.DitchDepth20yEast)},
	} {
		if l.n != ns {
			add("%s has %d entries but there are %d scenario names", l.name, l.n, ns)
		}
	}
	seen := make(map[string]bool)
	for _, name := range p.ScenarioName {
		if name == "" || seen[name] {
			add("scenario names must be unique and not empty: %q", name)
		}
		seen[name] = true
	}
	for _, list := range [][]float64{p.DitchDepthWest, p.DitchDepthEast, p.DitchDepth20yWest, p.DitchDepth20yEast} {
		for _, h := range list {
			if h > 0 {
				add("ditch depth %g m is above the ground surface", h)
			}
		}
	}

	if p.SFC < 1 || p.SFC > 6 {
		add("site fertility class %d outside [1, 6]", p.SFC)
	}
	for _, l := range []struct {
		name string
		lp   LayerParams
	}{{"dominant", p.Dominant}, {"subdominant", p.Subdominant}, {"under", p.Under}} {
		if _, ok := stand.SpeciesTraits[l.lp.Species]; !ok {
			add("%s layer: unsupported species %q", l.name, l.lp.Species)
		}
		if l.lp.Age < 0 {
			add("%s layer: negative age %g", l.name, l.lp.Age)
		}
	}
	if p.GrowthTempSum <= 0 || p.OptimalAFP <= 0 {
		add("growth temperature sum and optimal air-filled porosity must be positive")
	}
	if p.MottiFile != "" {
		if _, err := os.Stat(p.MottiFile); err != nil {
			add("growth table: %v", err)
		}
	}
	if p.CuttingToBA < 0 {
		add("negative cutting target basal area %g", p.CuttingToBA)
	}
	if err := p.Fertilization.Validate(); err != nil {
		errs = append(errs, err)
	}
	if p.DepoN < 0 || p.DepoP < 0 || p.DepoK < 0 {
		add("negative deposition")
	}
	switch p.TemperatureSolveMode {
	case temperature.Sparse, temperature.Dense, temperature.DenseBanded:
	default:
		add("unknown temperature solution mode %q", p.TemperatureSolveMode)
	}
	if err := p.Canopy.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := p.Moss.Validate(); err != nil {
		errs = append(errs, err)
	}
	return configError(errs)
}

// Scenarios returns the ditch depth scenarios.
func (p *Params) Scenarios() []Scenario {
	s := make([]Scenario, len(p.ScenarioName))
	for i, name := range p.ScenarioName {
		s[i] = Scenario{
			Name:              name,
			DitchDepthWest:    p.DitchDepthWest[i],
			DitchDepthEast:    p.DitchDepthEast[i],
			DitchDepth20yWest: p.DitchDepth20yWest[i],
			DitchDepth20yEast: p.DitchDepth20yEast[i],
		}
	}
	return s
}

// Years returns the number of simulated years.
func (p *Params) Years() int { return p.EndYear - p.StartYear + 1 }

// nodeAges returns the initial age of layer l at every node.
func (p *Params) nodeAges(l LayerParams) []float64 {
	a := make([]float64, p.N)
	for i := range a {
		a[i] = l.Age
	}
	return a
}

// vonPost returns the von Post degree of every peat layer.
func (p *Params) vonPost() []float64 {
	vp := make([]float64, p.NLyrs)
	for i := range vp {
		if i < len(p.VonPTop) {
			vp[i] = p.VonPTop[i]
		} else {
			vp[i] = p.VonPBottom
		}
	}
	return vp
}

func (p *Params) stripConfig() strip.Config {
	return strip.Config{
		N:          p.N,
		L:          p.L,
		NLyrs:      p.NLyrs,
		DzLyr:      p.DzLyr,
		VonPTop:    p.VonPTop,
		VonPBottom: p.VonPBottom,
		Anisotropy: p.Anisotropy,
		InitialH:   p.InitialH,
		Slope:      p.Slope,
		RootDepth:  p.RootDepth,
	}
}

func (p *Params) standConfig() stand.Config {
	return stand.Config{
		N:             p.N,
		SFC:           p.SFC,
		Dominant:      stand.LayerConfig{Species: p.Dominant.Species, Age: p.nodeAges(p.Dominant)},
		Subdominant:   stand.LayerConfig{Species: p.Subdominant.Species, Age: p.nodeAges(p.Subdominant)},
		Under:         stand.LayerConfig{Species: p.Under.Species, Age: p.nodeAges(p.Under)},
		GrowthTempSum: p.GrowthTempSum,
		OptimalAFP:    p.OptimalAFP,
	}
}

func (p *Params) esomConfig() esom.Config {
	return esom.DefaultConfig(p.vonPost(), p.DzLyr)
}

// Describe writes a description of the site and its scenarios to w.
func (p *Params) Describe(w io.Writer) {
	fmt.Fprintf(w, "SUSI simulation %d-%d\n", p.StartYear, p.EndYear)
	fmt.Fprintf(w, "Strip: %d nodes over %g m, %d peat layers of %g m\n", p.N, p.L, p.NLyrs, p.DzLyr)
	fmt.Fprintf(w, "Stand: site fertility class %d\n", p.SFC)
	fmt.Fprintf(w, "%# v\n", pretty.Formatter(struct{ Dominant, Subdominant, Under LayerParams }{p.Dominant, p.Subdominant, p.Under}))
	fmt.Fprintln(w, "Scenarios:")
	for _, s := range p.Scenarios() {
		fmt.Fprintf(w, "%# v\n", pretty.Formatter(s))
	}
	if p.CuttingYear >= p.StartYear && p.CuttingYear <= p.EndYear {
		fmt.Fprintf(w, "Cutting in %d to %g m2 ha-1\n", p.CuttingYear, p.CuttingToBA)
	}
	if fy := p.Fertilization.ApplicationYear; fy >= p.StartYear && fy <= p.EndYear {
		fmt.Fprintf(w, "Fertilization in %d\n", fy)
	}
}
