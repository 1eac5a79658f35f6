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

// Package gvegetation simulates the biomass, litter and nutrient
// uptake of the ground vegetation under a tree stand.
package gvegetation

import (
	"fmt"
	"math"

	"github.com/spatialmodel/susi/science"
	"github.com/spatialmodel/susi/science/stand"
)

// group holds the properties of one plant functional group.
type group struct {
	name     string
	maxMass  float64 // biomass in an open stand on a medium site [kg ha-1]
	shade    float64 // biomass reduction per m2 ha-1 of basal area
	woody    float64 // woody fraction of biomass
	turnover float64 // non-woody turnover [yr-1]
	conc     [stand.NElements]float64
}

var groups = []group{
	{name: "dwarf shrubs", maxMass: 2500, shade: 0.04, woody: 0.6, turnover: 0.35,
		conc: [stand.NElements]float64{1, 0.009, 0.0009, 0.004}},
	{name: "herbs and grasses", maxMass: 400, shade: 0.06, woody: 0, turnover: 1.0,
		conc: [stand.NElements]float64{1, 0.018, 0.0018, 0.012}},
	{name: "mosses", maxMass: 2000, shade: 0.015, woody: 0, turnover: 0.3,
		conc: [stand.NElements]float64{1, 0.01, 0.0011, 0.004}},
}

const (
	woodyTurnover = 0.05
	refTempSum    = 1100.0
	retranslocate = 0.4 // nutrients withdrawn before litterfall
)

// Gvegetation is the ground vegetation of every node.
type Gvegetation struct {
	n        int
	lat float64
	sfc      int

	// Biomass is the total dry mass [kg ha-1].
	Biomass []float64

	// Litter holds the litter production [kg ha-1 yr-1].
	Litter stand.Litter

	// Nup, Pup and Kup are the annual nutrient uptakes [kg ha-1 yr-1].
	Nup, Pup, Kup []float64
}

// New creates the ground vegetation of n nodes at latitude lat on a
// site of fertility class sfc.
func New(n int, lat float64, sfc int) (*Gvegetation, error) {
	if n < 1 {
		return nil, fmt.Errorf("gvegetation: number of nodes must be positive, got %d", n)
	}
	if sfc < 1 || sfc > 6 {
		return nil, fmt.Errorf("gvegetation: site fertility class %d outside [1, 6]", sfc)
	}
	g := &Gvegetation{
		n: n, lat: lat, sfc: sfc,
		Biomass: make([]float64, n),
		Nup:     make([]float64, n),
		Pup:     make([]float64, n),
		Kup:     make([]float64, n),
	}
	g.Litter = stand.Litter{}
	for e := range g.Litter.NonWoody {
		g.Litter.NonWoody[e] = make([]float64, n)
		g.Litter.Woody[e] = make([]float64, n)
	}
	return g, nil
}

// Reset clears all state.
func (g *Gvegetation) Reset() {
	science.Fill(g.Biomass, 0)
	science.Fill(g.Nup, 0)
	science.Fill(g.Pup, 0)
	science.Fill(g.Kup, 0)
	for e := range g.Litter.NonWoody {
		science.Fill(g.Litter.NonWoody[e], 0)
		science.Fill(g.Litter.Woody[e], 0)
	}
}

// Run recomputes biomass, litter and uptake from the tree stand basal
// area ba [m2 ha-1], stem count, volume [m3 ha-1], dominant species,
// temperature sum ts [degree days] and stand age [yr].
func (g *Gvegetation) Run(ba, stems, vol []float64, species string, ts float64, age []float64) error {
	for i, v := range [][]float64{ba, stems, vol, age} {
		name := [...]string{"basal area", "stems", "volume", "age"}[i]
		if err := science.CheckLen("gvegetation: "+name, g.n, v); err != nil {
			return err
		}
	}
	// Spruce casts a deeper shade than pine or birch.
	shadeMult := 1.0
	if species == "spruce" {
		shadeMult = 1.5
	}
	// Fertile sites and warm climates have more ground vegetation.
	site := math.Pow(1.1, float64(3-g.sfc))
	climate := math.Min(math.Max(ts/refTempSum, 0.5), 1.3) * math.Min(math.Max(1-(g.lat-62)*0.02, 0.7), 1.2)

	for i := 0; i < g.n; i++ {
		// Young stands recover from disturbance within a decade.
		recovery := math.Min(1, 0.3+0.07*math.Max(age[i], 0))
		var total float64
		var nw, w [stand.NElements]float64
		for _, gr := range groups {
			m := gr.maxMass * site * climate * recovery * math.Exp(-gr.shade*shadeMult*math.Max(ba[i], 0))
			total += m
			for e := stand.Mass; e < stand.NElements; e++ {
				lc := gr.conc[e]
				if e != stand.Mass {
					lc *= 1 - retranslocate
				}
				nw[e] += m * (1 - gr.woody) * gr.turnover * lc
				w[e] += m * gr.woody * woodyTurnover * gr.conc[e]
			}
		}
		g.Biomass[i] = total
		for e := stand.Mass; e < stand.NElements; e++ {
			g.Litter.NonWoody[e][i] = nw[e]
			g.Litter.Woody[e][i] = w[e]
		}
		// Steady state uptake replaces the nutrients lost in litter and
		// those withdrawn before litterfall.
		up := func(e stand.Element) float64 {
			return (nw[e]/(1-retranslocate) + w[e])
		}
		g.Nup[i] = up(stand.N)
		g.Pup[i] = up(stand.P)
		g.Kup[i] = up(stand.K)
	}
	return science.CheckFinite("gvegetation: biomass", g.Biomass)
}

// Uptake returns the annual nutrient uptake. It implements stand.Uptake.
func (g *Gvegetation) Uptake() (n, p, k []float64) {
	return append([]float64(nil), g.Nup...), append([]float64(nil), g.Pup...), append([]float64(nil), g.Kup...)
}
