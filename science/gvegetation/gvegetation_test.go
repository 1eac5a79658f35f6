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

package gvegetation

import (
	"testing"

	"github.com/spatialmodel/susi/science/stand"
)

func TestShading(t *testing.T) {
	g, err := New(2, 62, 3)
	if err != nil {
		t.Fatal(err)
	}
	err = g.Run([]float64{2, 30}, []float64{500, 1500}, []float64{10, 250}, "pine", 1100, []float64{50, 50})
	if err != nil {
		t.Fatal(err)
	}
	if g.Biomass[0] <= g.Biomass[1] {
		t.Errorf("open stand biomass %g should exceed dense stand biomass %g", g.Biomass[0], g.Biomass[1])
	}
	if g.Litter.NonWoody[stand.N][1] <= 0 || g.Litter.Woody[stand.Mass][1] <= 0 {
		t.Error("no litter")
	}
	n, p, k := g.Uptake()
	for i := range n {
		if n[i] <= g.Litter.NonWoody[stand.N][i] || p[i] <= 0 || k[i] <= 0 {
			t.Errorf("node %d: uptake n=%g p=%g k=%g", i, n[i], p[i], k[i])
		}
	}
	g.Reset()
	if g.Biomass[0] != 0 || g.Nup[0] != 0 {
		t.Error("reset did not clear state")
	}
}

func TestSpruceShade(t *testing.T) {
	g, err := New(1, 62, 3)
	if err != nil {
		t.Fatal(err)
	}
	args := func() ([]float64, []float64, []float64) {
		return []float64{20}, []float64{1000}, []float64{150}
	}
	ba, stems, vol := args()
	if err := g.Run(ba, stems, vol, "pine", 1100, []float64{60}); err != nil {
		t.Fatal(err)
	}
	pine := g.Biomass[0]
	if err := g.Run(ba, stems, vol, "spruce", 1100, []float64{60}); err != nil {
		t.Fatal(err)
	}
	if g.Biomass[0] >= pine {
		t.Errorf("spruce understorey %g >= pine understorey %g", g.Biomass[0], pine)
	}
}

func TestInvalid(t *testing.T) {
	if _, err := New(3, 62, 9); err == nil {
		t.Error("expected an error for site fertility class 9")
	}
	g, err := New(3, 62, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Run([]float64{1}, nil, nil, "pine", 1000, nil); err == nil {
		t.Error("expected a dimension error")
	}
}

func TestLatitude(t *testing.T) {
	biomass := func(lat float64) float64 {
		g, err := New(1, lat, 3)
		if err != nil {
			t.Fatal(err)
		}
		if err := g.Run([]float64{10}, []float64{800}, []float64{80}, "pine", 1100, []float64{40}); err != nil {
			t.Fatal(err)
		}
		return g.Biomass[0]
	}
	if south, north := biomass(62), biomass(68); north >= south {
		t.Errorf("biomass at 68N %g >= biomass at 62N %g", north, south)
	}
}
