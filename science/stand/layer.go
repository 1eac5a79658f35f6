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
	"fmt"
	"math"

	"github.com/spatialmodel/susi/science"
)

// Element indexes the quantities carried by litter and demand.
type Element int

// Litter and nutrient elements.
const (
	Mass Element = iota
	N
	P
	K
	NElements
)

func (e Element) String() string {
	switch e {
	case Mass:
		return "Mass"
	case N:
		return "N"
	case P:
		return "P"
	case K:
		return "K"
	}
	return fmt.Sprintf("Element(%d)", int(e))
}

// Litter holds non-woody and woody litter [kg ha-1 yr-1] of each
// element at every node.
type Litter struct {
	NonWoody, Woody [NElements][]float64
}

func newLitter(n int) Litter {
	var l Litter
	for e := range l.NonWoody {
		l.NonWoody[e] = make([]float64, n)
		l.Woody[e] = make([]float64, n)
	}
	return l
}

func (l *Litter) zero() {
	for e := range l.NonWoody {
		science.Fill(l.NonWoody[e], 0)
		science.Fill(l.Woody[e], 0)
	}
}

// add adds the litter of o to l.
func (l *Litter) add(o *Litter) {
	for e := range l.NonWoody {
		for i := range l.NonWoody[e] {
			l.NonWoody[e][i] += o.NonWoody[e][i]
			l.Woody[e][i] += o.Woody[e][i]
		}
	}
}

// set records mass litter at node i and derives nutrients from the
// concentrations.
func (l *Litter) set(i int, nonWoody, woody float64, nwConc, wConc *[NElements]float64) {
	for e := Mass; e < NElements; e++ {
		l.NonWoody[e][i] = nonWoody * nwConc[e]
		l.Woody[e][i] = woody * wConc[e]
	}
}

const (
	fineRootTurnover = 0.4  // fine root litter per unit foliage mass [yr-1]
	branchTurnover   = 0.01 // branch litter per unit stem biomass [yr-1]
	residueFraction  = 0.35 // branch, stump and coarse root mass per unit stem mass harvested
	mortalityFrac    = 0.5  // biomass of dying trees relative to the mean tree
)

// Layer is one canopy layer of the stand.
type Layer struct {
	Name    string
	Species string

	table  Table
	traits Traits
	sfc    int

	initialAge []float64

	// State of each node.
	Age, Hdom, BA, Volume, Stems, Leaf, LAI []float64

	// scale is the remaining fraction of the undisturbed table stand
	// after cuttings.
	scale []float64

	Litter, Mortality, Lresid Litter

	// Demand is the nutrient demand of wood and fine root growth and
	// LeafDemand that of new foliage [kg ha-1 yr-1].
	Demand, LeafDemand [NElements][]float64

	// Harvested is the stem volume [m3 ha-1] removed by cutting.
	Harvested []float64
}

func newLayer(name, species string, table Table, sfc int, ages []float64) (*Layer, error) {
	tr, err := traits(species)
	if err != nil {
		return nil, fmt.Errorf("stand: %s layer: %w", name, err)
	}
	n := len(ages)
	l := &Layer{
		Name:       name,
		Species:    species,
		table:      table,
		traits:     tr,
		sfc:        sfc,
		initialAge: append([]float64(nil), ages...),
		Age:        make([]float64, n),
		Hdom:       make([]float64, n),
		BA:         make([]float64, n),
		Volume:     make([]float64, n),
		Stems:      make([]float64, n),
		Leaf:       make([]float64, n),
		LAI:        make([]float64, n),
		scale:      make([]float64, n),
		Litter:     newLitter(n),
		Mortality:  newLitter(n),
		Lresid:     newLitter(n),
		Harvested:  make([]float64, n),
	}
	for e := range l.Demand {
		l.Demand[e] = make([]float64, n)
		l.LeafDemand[e] = make([]float64, n)
	}
	if err := l.Reset(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reset returns the layer to its initial age with no cuttings.
func (l *Layer) Reset() error {
	copy(l.Age, l.initialAge)
	science.Fill(l.scale, 1)
	science.Fill(l.Harvested, 0)
	l.Litter.zero()
	l.Mortality.zero()
	l.Lresid.zero()
	for e := range l.Demand {
		science.Fill(l.Demand[e], 0)
		science.Fill(l.LeafDemand[e], 0)
	}
	for i := range l.Age {
		if err := l.setRow(i); err != nil {
			return err
		}
	}
	// Initial litter is the steady turnover of the initial stand.
	for i := range l.Age {
		l.turnover(i)
	}
	return nil
}

func (l *Layer) setRow(i int) error {
	r, err := l.table.Lookup(l.Species, l.sfc, l.Age[i])
	if err != nil {
		return fmt.Errorf("stand: %s layer node %d: %w", l.Name, i, err)
	}
	s := l.scale[i]
	l.Hdom[i] = r.Hdom
	l.BA[i] = r.BA * s
	l.Volume[i] = r.Volume * s
	l.Stems[i] = r.Stems * s
	l.Leaf[i] = r.Leaf * s
	l.LAI[i] = l.Leaf[i] * l.traits.SLA / 1e4
	return nil
}

func (l *Layer) stemBiomass(i int) float64 { return l.Volume[i] * l.traits.WoodDensity }

// turnover sets the litter of the current state at node i.
func (l *Layer) turnover(i int) {
	nonWoody := l.Leaf[i]/l.traits.Longevity + fineRootTurnover*l.Leaf[i]
	woody := branchTurnover * l.stemBiomass(i)
	l.Litter.set(i, nonWoody, woody, &l.traits.LitterConc, &l.traits.WoodConc)
}

// grow advances node i by growth years of undisturbed development.
func (l *Layer) grow(i int, growth float64) error {
	oldStems, oldLeaf, oldStemBio := l.Stems[i], l.Leaf[i], l.stemBiomass(i)
	l.Age[i] += growth
	if err := l.setRow(i); err != nil {
		return err
	}
	l.turnover(i)

	var mortFrac float64
	if oldStems > 0 {
		mortFrac = math.Max(oldStems-l.Stems[i], 0) / oldStems
	}
	l.Mortality.set(i, mortalityFrac*mortFrac*oldLeaf, mortalityFrac*mortFrac*oldStemBio,
		&l.traits.LeafConc, &l.traits.WoodConc)

	woodGrowth := math.Max(l.stemBiomass(i)-oldStemBio, 0) + fineRootTurnover*l.Leaf[i]
	leafGrowth := l.Leaf[i]/l.traits.Longevity + math.Max(l.Leaf[i]-oldLeaf, 0)
	for e := N; e < NElements; e++ {
		l.Demand[e][i] = woodGrowth * l.traits.WoodConc[e]
		l.LeafDemand[e][i] = leafGrowth * l.traits.LeafConc[e]
	}
	l.Demand[Mass][i] = woodGrowth
	l.LeafDemand[Mass][i] = leafGrowth
	return nil
}

// Cutting thins every node with a basal area above toBA down to
// exactly toBA. The foliage, branches, stumps and coarse roots of the
// removed trees are left on site as logging residues.
func (l *Layer) Cutting(toBA float64) {
	for i := range l.BA {
		if l.BA[i] <= toBA || l.BA[i] <= 0 {
			continue
		}
		keep := toBA / l.BA[i]
		removed := 1 - keep
		nonWoody := removed * l.Leaf[i] * (1 + fineRootTurnover)
		woody := removed * l.stemBiomass(i) * residueFraction
		l.Lresid.set(i, nonWoody, woody, &l.traits.LeafConc, &l.traits.WoodConc)
		l.Harvested[i] += removed * l.Volume[i]

		l.scale[i] *= keep
		l.Volume[i] *= keep
		l.Stems[i] *= keep
		l.Leaf[i] *= keep
		l.LAI[i] *= keep
		l.BA[i] = toBA
	}
}
