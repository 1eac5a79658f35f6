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

package temperature

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

const testTolerance = 1e-8

// different reports whether a and b differ by more than tolerance
// relative to their magnitude. Values near zero are compared absolutely.
func different(a, b, tolerance float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) > tolerance*scale
}

// forcing is a year of synthetic air temperature, snow and
// evaporation used to exercise the solvers.
func forcing(day int) (ta, swe, efloor float64) {
	ta = 4 - 14*math.Cos(2*math.Pi*float64(day)/365)
	if ta < -2 {
		swe = 0.05
	}
	efloor = 0.0005 * math.Max(0, ta) / 10
	return
}

func TestSolverEquivalence(t *testing.T) {
	modes := []Mode{Sparse, Dense, DenseBanded}
	cols := make([]*PeatTemperature, len(modes))
	for i, m := range modes {
		var err error
		cols[i], err = New(60, 0.05, 3.5, m)
		if err != nil {
			t.Fatal(err)
		}
	}
	for day := 0; day < 365; day++ {
		ta, swe, efloor := forcing(day)
		results := make([][]float64, len(modes))
		for i, c := range cols {
			_, temps, err := c.RunTimestep(ta, swe, efloor)
			if err != nil {
				t.Fatalf("%s: day %d: %v", modes[i], day, err)
			}
			results[i] = temps
		}
		for i := 1; i < len(modes); i++ {
			for j := range results[0] {
				if different(results[0][j], results[i][j], testTolerance) {
					t.Fatalf("day %d layer %d: %s=%g, %s=%g", day, j,
						modes[0], results[0][j], modes[i], results[i][j])
				}
			}
		}
	}
}

func TestSnowClamp(t *testing.T) {
	const heatCapacity = volumetricHeatCapacity * 0.05
	for _, ta := range []float64{-5.0001, -7, -20, -40} {
		for _, efloor := range []float64{0, 0.001} {
			if got := TopBoundary(ta, 0.02, efloor, heatCapacity); got != SnowFloor {
				t.Errorf("ta=%g efloor=%g: top boundary %g, want %g", ta, efloor, got, SnowFloor)
			}
		}
	}
	// Above the floor, snow passes the air temperature through.
	if got := TopBoundary(-3, 0.02, 0.001, heatCapacity); got != -3 {
		t.Errorf("got %g, want -3", got)
	}
	// Without snow, evaporation cools the surface.
	got := TopBoundary(10, 0, 0.001, heatCapacity)
	want := 10 - 0.001*1000*heatOfVaporization/Nt/heatCapacity
	if different(got, want, testTolerance) {
		t.Errorf("got %g, want %g", got, want)
	}
}

func TestSteadyState(t *testing.T) {
	p, err := New(20, 0.05, 5, Sparse)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		_, temps, err := p.RunTimestep(5, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		for j, v := range temps {
			if math.Abs(v-5) > testTolerance {
				t.Fatalf("day %d layer %d: %g != 5", i, j, v)
			}
		}
	}
}

func TestReset(t *testing.T) {
	p, err := New(10, 0.05, 2, DenseBanded)
	if err != nil {
		t.Fatal(err)
	}
	initial := p.Temperature()
	for day := 0; day < 30; day++ {
		if _, _, err := p.RunTimestep(15, 0, 0.001); err != nil {
			t.Fatal(err)
		}
	}
	if floats.Equal(initial, p.Temperature()) {
		t.Fatal("temperature did not change")
	}
	p.Reset()
	if !floats.Equal(initial, p.Temperature()) {
		t.Errorf("after reset %v != %v", p.Temperature(), initial)
	}
}

func TestDepths(t *testing.T) {
	p, err := New(4, 0.1, 0, Dense)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.05, 0.15, 0.25, 0.35}
	if !floats.EqualApprox(p.Z(), want, 1e-12) {
		t.Errorf("z = %v, want %v", p.Z(), want)
	}
}

func TestInvalidMode(t *testing.T) {
	if _, err := New(10, 0.05, 2, Mode("cholesky")); err == nil {
		t.Error("expected an error for an invalid mode")
	}
}

func TestWarming(t *testing.T) {
	p, err := New(20, 0.05, 0, Sparse)
	if err != nil {
		t.Fatal(err)
	}
	_, temps, err := p.RunTimestep(20, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if temps[0] != 20 {
		t.Errorf("surface node %g != 20", temps[0])
	}
	for j := 1; j < len(temps); j++ {
		if temps[j] > temps[j-1] {
			t.Errorf("layer %d warmer than the layer above: %g > %g", j, temps[j], temps[j-1])
		}
	}
}
