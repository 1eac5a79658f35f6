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

package stand

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/kr/pretty"
	"github.com/spatialmodel/susi/science"
	"github.com/tealeg/xlsx"
	"gonum.org/v1/gonum/floats"
)

const nodes = 3

func ages(a float64) []float64 {
	v := make([]float64, nodes)
	science.Fill(v, a)
	return v
}

func testConfig() Config {
	return Config{
		N:             nodes,
		SFC:           3,
		Dominant:      LayerConfig{Species: "pine", Age: ages(40)},
		Subdominant:   LayerConfig{Species: "spruce", Age: ages(25)},
		Under:         LayerConfig{Species: "birch", Age: ages(10)},
		GrowthTempSum: 1100,
		OptimalAFP:    0.1,
	}
}

// year returns a year of daily forcing with a constant air-filled porosity.
func year(afp float64) (ta []float64, wt, air [][]float64) {
	for d := 0; d < 365; d++ {
		ta = append(ta, 4-14*math.Cos(2*math.Pi*float64(d)/365))
		wt = append(wt, ages(-0.4))
		air = append(air, ages(afp))
	}
	return
}

type noUptake struct{}

func (noUptake) Uptake() (n, p, k []float64) {
	return make([]float64, nodes), make([]float64, nodes), make([]float64, nodes)
}

func TestGrowth(t *testing.T) {
	s, err := New(testConfig(), DefaultTable{})
	if err != nil {
		t.Fatal(err)
	}
	ba, hdom := s.BasalArea[0], s.Hdom[0]
	if err := s.Assimilate(year(0.15)); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(); err != nil {
		t.Fatal(err)
	}
	if s.BasalArea[0] <= ba || s.Hdom[0] <= hdom {
		t.Errorf("stand did not grow: ba %g -> %g, hdom %g -> %g", ba, s.BasalArea[0], hdom, s.Hdom[0])
	}
	if s.Litter.NonWoody[Mass][0] <= 0 || s.Litter.Woody[N][0] <= 0 {
		t.Error("no litter")
	}
	if s.Demand[N][0] <= 0 || s.LeafDemand[P][0] <= 0 {
		t.Error("no nutrient demand")
	}
}

func TestWaterlogging(t *testing.T) {
	dry, err := New(testConfig(), DefaultTable{})
	if err != nil {
		t.Fatal(err)
	}
	wet, err := New(testConfig(), DefaultTable{})
	if err != nil {
		t.Fatal(err)
	}
	if err := dry.Assimilate(year(0.2)); err != nil {
		t.Fatal(err)
	}
	if err := wet.Assimilate(year(0.02)); err != nil {
		t.Fatal(err)
	}
	if wet.Growth()[0] >= dry.Growth()[0] {
		t.Errorf("waterlogged growth %g >= drained growth %g", wet.Growth()[0], dry.Growth()[0])
	}
}

func TestCutting(t *testing.T) {
	s, err := New(testConfig(), DefaultTable{})
	if err != nil {
		t.Fatal(err)
	}
	const toBA = 8.0
	before := append([]float64(nil), s.Dominant.BA...)
	bioBefore := s.Biomass()
	if err := s.Cutting(2005, toBA); err != nil {
		t.Fatal(err)
	}
	s.UpdateLresid()
	bio, harvested := s.Biomass(), s.HarvestedBiomass()
	for i := range bio {
		if harvested[i] <= 0 || bioBefore[i]-bio[i] < harvested[i]*(1-1e-12) {
			t.Errorf("node %d: biomass %g -> %g with %g harvested", i, bioBefore[i], bio[i], harvested[i])
		}
	}
	for i, ba := range s.Dominant.BA {
		if before[i] > toBA && ba != toBA {
			t.Errorf("node %d: basal area %g != %g after cutting", i, ba, toBA)
		}
	}
	if s.Lresid.NonWoody[Mass][0] <= 0 || s.Lresid.Woody[K][0] <= 0 {
		t.Error("cutting left no residues")
	}
	if s.Dominant.Harvested[0] <= 0 {
		t.Error("no harvested volume")
	}
	nw, _ := s.TotalLitter(Mass)
	if nw[0] <= s.Litter.NonWoody[Mass][0] {
		t.Error("residues missing from the total litter")
	}
	s.ResetLresid()
	if floats.Sum(s.Lresid.NonWoody[Mass]) != 0 || floats.Sum(s.Dominant.Lresid.Woody[Mass]) != 0 {
		t.Error("residues not reset")
	}

	// The thinned stand keeps growing from the reduced basal area.
	if err := s.Assimilate(year(0.15)); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(); err != nil {
		t.Fatal(err)
	}
	if s.Dominant.BA[0] <= toBA || s.Dominant.BA[0] >= before[0] {
		t.Errorf("basal area after regrowth %g, want between %g and %g", s.Dominant.BA[0], toBA, before[0])
	}
}

func TestNutrientStatus(t *testing.T) {
	s, err := New(testConfig(), DefaultTable{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Assimilate(year(0.15)); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(); err != nil {
		t.Fatal(err)
	}
	demand := func(e Element) []float64 {
		d := make([]float64, nodes)
		floats.Add(d, s.Demand[e])
		floats.Add(d, s.LeafDemand[e])
		return d
	}
	// Half of the N demand, double the P and K demand.
	nSup, pSup, kSup := demand(N), demand(P), demand(K)
	floats.Scale(0.5, nSup)
	floats.Scale(2, pSup)
	floats.Scale(2, kSup)
	if err := s.UpdateNutrientStatus(noUptake{}, nSup, pSup, kSup); err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(s.NutStat, ages(0.5), 1e-12) {
		t.Errorf("nutrient status %v, want 0.5", s.NutStat)
	}
	if !floats.Equal(s.Supply[N], nSup) {
		t.Error("supply not recorded")
	}
}

func TestReset(t *testing.T) {
	s, err := New(testConfig(), DefaultTable{})
	if err != nil {
		t.Fatal(err)
	}
	ba := append([]float64(nil), s.BasalArea...)
	lai := append([]float64(nil), s.LeafArea...)
	for y := 0; y < 3; y++ {
		if err := s.Assimilate(year(0.15)); err != nil {
			t.Fatal(err)
		}
		if err := s.Update(); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Cutting(2000, 5); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(ba, s.BasalArea); len(diff) > 0 {
		t.Errorf("basal area after reset: %v", diff)
	}
	if !floats.Equal(lai, s.LeafArea) || !floats.Equal(s.NutStat, ages(1)) {
		t.Error("reset did not restore the initial stand")
	}
}

func TestDefaultTable(t *testing.T) {
	var tab DefaultTable
	good, err := tab.Lookup("spruce", 2, 60)
	if err != nil {
		t.Fatal(err)
	}
	poor, err := tab.Lookup("spruce", 5, 60)
	if err != nil {
		t.Fatal(err)
	}
	if poor.Hdom >= good.Hdom || poor.Volume >= good.Volume {
		t.Errorf("poor site grows faster: %# v vs %# v", pretty.Formatter(poor), pretty.Formatter(good))
	}
	if _, err := tab.Lookup("oak", 3, 10); err == nil {
		t.Error("expected an error for an unsupported species")
	}
}

func TestReadMottiXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Pine")
	if err != nil {
		t.Fatal(err)
	}
	header := sheet.AddRow()
	for _, h := range []string{"Age", "Hdom", "BA", "Vol", "Stems", "Leaf"} {
		header.AddCell().SetString(h)
	}
	data := [][]float64{
		{10, 4, 3, 8, 2400, 700},
		{30, 12, 15, 85, 1500, 3500},
		{50, 18, 24, 200, 1000, 5500},
	}
	for _, d := range data {
		row := sheet.AddRow()
		for _, v := range d {
			row.AddCell().SetFloat(v)
		}
	}
	path := filepath.Join(t.TempDir(), "motti.xlsx")
	if err := f.Save(path); err != nil {
		t.Fatal(err)
	}
	tab, err := ReadMottiXLSX(path)
	if err != nil {
		t.Fatal(err)
	}
	r, err := tab.Lookup("pine", 0, 20)
	if err != nil {
		t.Fatal(err)
	}
	want := Row{Hdom: 8, BA: 9, Volume: 46.5, Stems: 1950, Leaf: 2100}
	if diff := pretty.Diff(r, want); len(diff) > 0 {
		t.Errorf("interpolated row differs: %v", diff)
	}
	if r, _ := tab.Lookup("pine", 0, 80); r.BA != 24 {
		t.Errorf("beyond the table: %+v", r)
	}

	s, err := New(Config{
		N: nodes, SFC: 3,
		Dominant:      LayerConfig{Species: "pine", Age: ages(30)},
		Subdominant:   LayerConfig{Species: "pine", Age: ages(10)},
		Under:         LayerConfig{Species: "pine", Age: ages(10)},
		GrowthTempSum: 1100, OptimalAFP: 0.1,
	}, tab)
	if err != nil {
		t.Fatal(err)
	}
	if s.Dominant.BA[0] != 15 {
		t.Errorf("dominant basal area %g from the Motti table", s.Dominant.BA[0])
	}
}
