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

package respiration

import (
	"math"
	"testing"
)

func TestLloydTaylor(t *testing.T) {
	if f := lloydTaylor(10); math.Abs(f-1) > 1e-12 {
		t.Errorf("response at 10 °C is %g", f)
	}
	if lloydTaylor(20) <= lloydTaylor(5) {
		t.Error("respiration should increase with temperature")
	}
}

func TestHeterotrophicYr(t *testing.T) {
	z := []float64{0.05, 0.15, 0.25, 0.35}
	var peatT, wt [][]float64
	for d := 0; d < 365; d++ {
		peatT = append(peatT, []float64{10, 10, 10, 10})
		wt = append(wt, []float64{0, -0.5})
	}
	rhet, err := HeterotrophicYr(peatT, z, wt, []float64{100, 100})
	if err != nil {
		t.Fatal(err)
	}
	want0 := (r10Base + r10PerVol*100) * 10 * 365
	if math.Abs(rhet[0]-want0) > 1e-9 {
		t.Errorf("saturated node: %g, want %g", rhet[0], want0)
	}
	if rhet[1] <= rhet[0] {
		t.Errorf("drained node %g should respire more than saturated node %g", rhet[1], rhet[0])
	}
}

func TestOjanen2019(t *testing.T) {
	var doy []int
	var wt [][]float64
	for d := 1; d <= 365; d++ {
		doy = append(doy, d)
		w := -0.2
		if d >= summerStart && d <= summerEnd {
			w = -0.4
		}
		wt = append(wt, []float64{w})
	}
	got, err := Ojanen2019(doy, wt)
	if err != nil {
		t.Fatal(err)
	}
	if want := (-115 + 12*40.0) * 10; math.Abs(got[0]-want) > 1e-9 {
		t.Errorf("balance %g, want %g", got[0], want)
	}
	if _, err := Ojanen2019([]int{1, 2}, wt[:2]); err == nil {
		t.Error("expected an error with no summer days")
	}
}
