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
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/susi/science/methane"
)

const testTolerance = 1e-9

func different(a, b, tolerance float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) > tolerance*scale
}

// runDefault simulates p with synthetic weather and returns the
// finished simulation.
func runDefault(t *testing.T, p *Params, opts ...Option) *Susi {
	t.Helper()
	w := SyntheticWeather(p.StartYear, p.EndYear, 61.8, 24.3)
	s, err := New(p, w, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestEndToEnd(t *testing.T) {
	p := DefaultParams()
	s := runDefault(t, p)
	o := s.Outputs()

	dwt, err := o.Get("strip_dwts")
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 731, 21}
	for i, n := range want {
		if dwt.Shape[i] != n {
			t.Fatalf("strip_dwts shape %v, want %v", dwt.Shape, want)
		}
	}
	hdom, err := o.Get("stand_hdom")
	if err != nil {
		t.Fatal(err)
	}
	if hdom.Shape[1] != 3 {
		t.Errorf("yr dimension %d, want 3", hdom.Shape[1])
	}
	for _, name := range o.Variables() {
		a, _ := o.Get(name)
		for i, v := range a.Elements {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s: element %d is %g", name, i, v)
			}
		}
	}
	for d := 0; d < 731; d++ {
		for i := 0; i < p.N; i++ {
			if v := dwt.Get(0, d, i); v > 0 {
				t.Fatalf("day %d node %d: water table %g above the surface", d, i, v)
			}
		}
	}
	for y := 1; y <= 2; y++ {
		if hdom.Get(0, y, 10) < hdom.Get(0, y-1, 10) {
			t.Errorf("year %d: dominant height decreased from %g to %g",
				y, hdom.Get(0, y-1, 10), hdom.Get(0, y, 10))
		}
	}
}

func TestScenarioIndependence(t *testing.T) {
	p := DefaultParams()
	p.ScenarioName = []string{"a", "b"}
	p.DitchDepthWest = []float64{-0.4, -0.4}
	p.DitchDepthEast = []float64{-0.4, -0.4}
	p.DitchDepth20yWest = []float64{-0.6, -0.6}
	p.DitchDepth20yEast = []float64{-0.6, -0.6}
	o := runDefault(t, p).Outputs()
	for _, name := range []string{"strip_dwts", "peat_temperature", "stand_volume", "esom_Mass_total", "methane_mean"} {
		a, _ := o.Get(name)
		half := len(a.Elements) / 2
		for i := 0; i < half; i++ {
			if different(a.Elements[i], a.Elements[half+i], testTolerance) {
				t.Fatalf("%s: element %d differs between identical scenarios: %g != %g",
					name, i, a.Elements[i], a.Elements[half+i])
			}
		}
	}
}

func TestDeeperDitchesLowerWaterTable(t *testing.T) {
	p := DefaultParams()
	p.ScenarioName = []string{"shallow", "deep"}
	p.DitchDepthWest = []float64{-0.3, -0.9}
	p.DitchDepthEast = []float64{-0.3, -0.9}
	p.DitchDepth20yWest = []float64{-0.3, -0.9}
	p.DitchDepth20yEast = []float64{-0.3, -0.9}
	o := runDefault(t, p).Outputs()
	wt, _ := o.Get("strip_water_table_avg")
	for i := 0; i < p.N; i++ {
		if wt.Get(1, 2, i) > wt.Get(0, 2, i)+testTolerance {
			t.Errorf("node %d: deep ditch water table %g above shallow %g", i, wt.Get(1, 2, i), wt.Get(0, 2, i))
		}
	}
}

func TestCutting(t *testing.T) {
	p := DefaultParams()
	p.EndYear = 2006
	p.CuttingYear = 2004
	o := runDefault(t, p).Outputs()
	ba, _ := o.Get("dominant_ba")
	harvested, _ := o.Get("stand_harvested")
	lresid, _ := o.Get("stand_lresid")
	for i := 0; i < p.N; i++ {
		if ba.Get(0, 0, i) <= p.CuttingToBA {
			t.Fatalf("node %d: initial basal area %g does not exceed the cutting target", i, ba.Get(0, 0, i))
		}
		if different(ba.Get(0, 1, i), p.CuttingToBA, testTolerance) {
			t.Errorf("node %d: basal area after cutting %g, want %g", i, ba.Get(0, 1, i), p.CuttingToBA)
		}
		if harvested.Get(0, 0, i) != 0 {
			t.Errorf("node %d: harvest before cutting %g", i, harvested.Get(0, 0, i))
		}
		if harvested.Get(0, 1, i) <= 0 {
			t.Errorf("node %d: nothing harvested in the cutting year", i)
		}
		// The year after the cutting the stand grows again undisturbed.
		if ba.Get(0, 2, i) <= p.CuttingToBA {
			t.Errorf("node %d: basal area %g the year after cutting has not grown past %g", i, ba.Get(0, 2, i), p.CuttingToBA)
		}
		if harvested.Get(0, 2, i) != harvested.Get(0, 1, i) {
			t.Errorf("node %d: harvested volume changed from %g to %g without a cutting",
				i, harvested.Get(0, 1, i), harvested.Get(0, 2, i))
		}
		if lresid.Get(0, 2, i) != 0 {
			t.Errorf("node %d: logging residues %g the year after cutting", i, lresid.Get(0, 2, i))
		}
	}
	if lresid.Get(0, 1, 10) <= 0 {
		t.Errorf("no logging residues in the cutting year")
	}
}

func TestEcosystemCarbonBalance(t *testing.T) {
	p := DefaultParams()
	p.EndYear = 2006
	p.CuttingYear = 2004
	mass := map[[2]int][]float64{}
	record := func(s *Susi, r, y int) error {
		mass[[2]int{r, y}] = append([]float64(nil), s.vegMass...)
		return nil
	}
	s := runDefault(t, p, WithYearFuncs(record))
	o := s.Outputs()
	eco, _ := o.Get("co2_ecosystem_balance")
	soil, _ := o.Get("co2_soil_balance")
	ch4, _ := o.Get("methane_ch4")
	for r := range s.scenarios {
		for y := 1; y <= p.Years(); y++ {
			for i := 0; i < p.N; i++ {
				v := eco.Get(r, y, i)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("scenario %d year %d node %d: balance %g", r, y, i, v)
				}
				if y == 1 {
					continue
				}
				gain := mass[[2]int{r, y}][i] - mass[[2]int{r, y - 1}][i]
				want := soil.Get(r, y, i) - gain*litterCO2 + ch4.Get(r, y, i)*methane.GWP100
				if different(v, want, testTolerance) {
					t.Errorf("scenario %d year %d node %d: balance %g, want %g", r, y, i, v, want)
				}
			}
		}
	}
}

func TestZeroNDose(t *testing.T) {
	p := DefaultParams()
	p.Fertilization.ApplicationYear = 2004
	p.Fertilization.N.Dose = 0
	o := runDefault(t, p).Outputs()
	nFert, _ := o.Get("balance_N_fert")
	for i, v := range nFert.Elements {
		if v != 0 {
			t.Fatalf("element %d: N fertilizer release %g with zero dose", i, v)
		}
	}
	pFert, _ := o.Get("balance_P_fert")
	if pFert.Get(0, 1, 0) <= 0 {
		t.Errorf("P fertilizer release %g, want > 0", pFert.Get(0, 1, 0))
	}
	ph, _ := o.Get("fert_ph_effect")
	if ph.Get(0, 1) <= 0 {
		t.Errorf("pH effect %g in the application year, want > 0", ph.Get(0, 1))
	}

	get := func(name string) float64 {
		a, err := o.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		return a.Get(0, 2, 5)
	}
	net := get("balance_N_release") + get("balance_N_depo") + get("balance_N_fert") -
		get("balance_N_demand") - get("balance_N_leaf_demand") - get("balance_N_gv_uptake")
	if different(net, get("balance_N_net"), testTolerance) {
		t.Errorf("N balance %g, want %g", get("balance_N_net"), net)
	}
}

func TestValidate(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("default parameters: %v", err)
	}
	p.N = 2
	p.SFC = 7
	p.Dominant.Species = "oak"
	p.DitchDepthEast = nil
	err := p.Validate()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("error %v is not a configuration error", err)
	}
	for _, s := range []string{"3 nodes", "fertility class 7", `"oak"`, "ditch_depth_east"} {
		if !strings.Contains(err.Error(), s) {
			t.Errorf("error %q does not mention %s", err, s)
		}
	}
	if _, err := New(p, SyntheticWeather(2004, 2005, 60, 25)); !errors.Is(err, ErrConfig) {
		t.Errorf("New accepted invalid parameters: %v", err)
	}
}

func TestValidateCanopy(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(p *Params)
		want   string
	}{
		{"snow and rain limits", func(p *Params) { p.Canopy.TMin, p.Canopy.TMax = 0, 0 }, "rain temperature"},
		{"photosynthetic capacity", func(p *Params) { p.Canopy.Amax = 0 }, "photosynthetic capacity"},
		{"capacity range", func(p *Params) { p.Canopy.AmaxRange = [2]float64{1, 0.5} }, "range"},
		{"alpha", func(p *Params) { p.Canopy.Alpha = -1 }, "Priestley-Taylor"},
		{"moss storage", func(p *Params) { p.Moss.MaxStorage = 1 }, "moss"},
		{"moss initial storage", func(p *Params) { p.Moss.InitialStorage = 100 }, "initial storage"},
	} {
		t.Run(test.name, func(t *testing.T) {
			p := DefaultParams()
			test.modify(p)
			err := p.Validate()
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("error %v is not a configuration error", err)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %s", err, test.want)
			}
			if _, err := New(p, SyntheticWeather(2004, 2005, 60, 25)); !errors.Is(err, ErrConfig) {
				t.Errorf("New accepted invalid parameters: %v", err)
			}
		})
	}
}

func TestWeatherCoverage(t *testing.T) {
	p := DefaultParams()
	_, err := New(p, SyntheticWeather(2004, 2004, 60, 25))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("weather ending before the last year: %v", err)
	}
}

func TestReadParams(t *testing.T) {
	const cfg = `
start_year = 2010
end_year = 2011
scenario_name = ["D30", "D90"]
ditch_depth_west = [-0.3, -0.9]
ditch_depth_east = [-0.3, -0.9]
ditch_depth_20y_west = [-0.3, -0.9]
ditch_depth_20y_east = [-0.3, -0.9]
sfc = 4

[dominant]
species = "spruce"
age = 55

[fertilization.p]
dose = 30
`
	p, err := ReadParams(strings.NewReader(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if p.StartYear != 2010 || p.SFC != 4 || p.Dominant.Species != "spruce" || p.Dominant.Age != 55 {
		t.Errorf("decoded %+v", p)
	}
	if p.Fertilization.P.Dose != 30 || p.Fertilization.K.Dose != 100 {
		t.Errorf("fertilization %+v", p.Fertilization)
	}
	if p.N != 21 {
		t.Errorf("default node count lost: %d", p.N)
	}
	sc := p.Scenarios()
	if len(sc) != 2 || sc[1].Name != "D90" || sc[1].DitchDepthEast != -0.9 {
		t.Errorf("scenarios %+v", sc)
	}

	if _, err := ReadParams(strings.NewReader("sfc = 0")); !errors.Is(err, ErrConfig) {
		t.Errorf("invalid site fertility class: %v", err)
	}
	if _, err := ReadParams(strings.NewReader("sfc = ")); !errors.Is(err, ErrConfig) {
		t.Errorf("malformed TOML: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	var buf bytes.Buffer
	DefaultParams().Describe(&buf)
	for _, s := range []string{"2004-2005", "D50", "pine"} {
		if !strings.Contains(buf.String(), s) {
			t.Errorf("description does not contain %q:\n%s", s, buf.String())
		}
	}
}

func TestNetCDF(t *testing.T) {
	p := DefaultParams()
	p.EndYear = 2005
	w := SyntheticWeather(2004, 2005, 61.8, 24.3)
	d, err := OutputDims(p, w)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "susi.nc")
	o, err := NewOutputs(d, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(p, w, WithOutputs(o))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}

	ff, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		t.Fatal(err)
	}
	if names := f.Header.GetAttribute("", "scenarios"); names != "D50" {
		t.Errorf("scenario names %v", names)
	}
	for _, name := range []string{"strip_dwts", "peat_temperature", "stand_volume", "methane_mean", "ditch_depth_west"} {
		want, _ := o.Get(name)
		got := make([]float64, len(want.Elements))
		if _, err := f.Reader(name, nil, nil).Read(got); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		for i := range got {
			if got[i] != want.Elements[i] {
				t.Fatalf("%s: element %d is %g in the file, %g in memory", name, i, got[i], want.Elements[i])
			}
		}
		if u := f.Header.GetAttribute(name, "units"); u != o.vars[name].Units {
			t.Errorf("%s: units %v", name, u)
		}
	}
}

func TestOutputDimensionMismatch(t *testing.T) {
	p := DefaultParams()
	w := SyntheticWeather(2004, 2005, 60, 25)
	d, err := OutputDims(p, w)
	if err != nil {
		t.Fatal(err)
	}
	d.Nodes++
	o, err := NewOutputs(d, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(p, w, WithOutputs(o)); !errors.Is(err, ErrDimension) {
		t.Errorf("mismatched outputs accepted: %v", err)
	}
}

func TestYearFuncs(t *testing.T) {
	var buf bytes.Buffer
	var calls []int
	count := func(s *Susi, r, y int) error {
		calls = append(calls, y)
		return nil
	}
	runDefault(t, DefaultParams(), WithYearFuncs(Log(&buf), MassBalanceCheck(1), count))
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("year function called for years %v", calls)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "year 2005") {
		t.Errorf("log output:\n%s", buf.String())
	}
}

func TestYearFuncError(t *testing.T) {
	stop := errors.New("stop")
	p := DefaultParams()
	s, err := New(p, SyntheticWeather(2004, 2005, 60, 25), WithYearFuncs(func(s *Susi, r, y int) error {
		if y == 2 {
			return stop
		}
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	err = s.Run()
	var se *SimulationError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a simulation error", err)
	}
	if se.Scenario != "D50" || se.Year != 2005 || se.Day != -1 || !errors.Is(err, stop) {
		t.Errorf("simulation error %+v", se)
	}
}
