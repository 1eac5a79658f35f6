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

package fertilization

import (
	"math"
	"testing"
)

func TestNutrientRelease(t *testing.T) {
	f, err := New(Config{
		ApplicationYear: 2010,
		N:               Nutrient{Dose: 0, DecayK: 0.5, Efficiency: 1},
		P:               Nutrient{Dose: 45, DecayK: 0.2, Efficiency: 0.8},
		K:               Nutrient{Dose: 80, DecayK: 0.3, Efficiency: 1},
		PHIncrement:     1,
		PHDecayK:        0.1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r := f.NutrientRelease(2009); r != (Release{}) {
		t.Errorf("release before application: %+v", r)
	}
	var total float64
	for yr := 2010; yr < 2300; yr++ {
		r := f.NutrientRelease(yr)
		if r.N != 0 {
			t.Fatalf("year %d: N release %g with zero dose", yr, r.N)
		}
		total += r.P
	}
	if math.Abs(total-36) > 1e-9 {
		t.Errorf("total P release %g, want 36", total)
	}
	r := f.NutrientRelease(2010)
	if want := 80 * (1 - math.Exp(-0.3)); math.Abs(r.K-want) > 1e-12 {
		t.Errorf("first year K release %g, want %g", r.K, want)
	}
}

func TestPHEffect(t *testing.T) {
	f, err := New(Config{ApplicationYear: 2005, PHIncrement: 0.8, PHDecayK: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		yr   int
		want float64
	}{
		{2004, 0},
		{2005, 0.8},
		{2015, 0.8 * math.Exp(-1)},
	}
	for _, test := range tests {
		if got := f.PHEffect(test.yr); math.Abs(got-test.want) > 1e-12 {
			t.Errorf("year %d: pH effect %g, want %g", test.yr, got, test.want)
		}
	}
	f.Reset()
	if f.PH != 0 {
		t.Error("reset did not clear the pH effect")
	}
}

func TestValidate(t *testing.T) {
	if _, err := New(Config{N: Nutrient{Dose: 10, Efficiency: 1.5}}); err == nil {
		t.Error("expected an error for efficiency above 1")
	}
}
