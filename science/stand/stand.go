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

// Package stand simulates the growth, litter production and nutrient
// demand of a tree stand made of dominant, subdominant and understorey
// canopy layers that follow growth tables.
package stand

import (
	"fmt"
	"math"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/spatialmodel/susi/science"
)

// LayerConfig describes one canopy layer.
type LayerConfig struct {
	Species string

	// Age is the initial age [yr] of the layer at every node.
	Age []float64
}

// Config describes the stand.
type Config struct {
	N   int
	SFC int // site fertility class

	Dominant, Subdominant, Under LayerConfig

	// GrowthTempSum is the temperature sum [degree days above 5 °C] at
	// which the stand grows at its table rate.
	GrowthTempSum float64

	// OptimalAFP is the root zone air-filled porosity above which
	// growth is not limited by waterlogging.
	OptimalAFP float64
}

const (
	tempSumBase  = 5.0
	maxNutStat   = 2.0
	minNutGrowth = 0.2
	minAirGrowth = 0.1
)

// Uptake is implemented by the ground vegetation, which competes with
// the trees for nutrients.
type Uptake interface {
	Uptake() (n, p, k []float64)
}

// Stand is the tree stand of the strip.
type Stand struct {
	c Config

	Dominant, Subdominant, Under *Layer

	// Aggregates over the layers at every node.
	Hdom, LeafArea, BasalArea, Volume, Stems []float64

	Litter, Mortality, Lresid Litter
	Demand, LeafDemand        [NElements][]float64

	// NutStat is the ratio of nutrient supply to demand of the most
	// limiting nutrient; 1 means growth is not nutrient limited.
	NutStat []float64

	// Supply holds the nutrient supply [kg ha-1 yr-1] used in the most
	// recent nutrient status update.
	Supply [NElements][]float64

	growth []float64
}

// New creates a stand whose layers follow table.
func New(c Config, table Table) (*Stand, error) {
	if c.N < 1 {
		return nil, fmt.Errorf("stand: number of nodes must be positive, got %d", c.N)
	}
	if c.GrowthTempSum <= 0 || c.OptimalAFP <= 0 {
		return nil, fmt.Errorf("stand: growth temperature sum and optimal air-filled porosity must be positive")
	}
	s := &Stand{c: c}
	var err error
	for _, l := range []struct {
		dst  **Layer
		name string
		lc   LayerConfig
	}{
		{&s.Dominant, "dominant", c.Dominant},
		{&s.Subdominant, "subdominant", c.Subdominant},
		{&s.Under, "under", c.Under},
	} {
		if err := science.CheckLen("stand: "+l.name+" layer age", c.N, l.lc.Age); err != nil {
			return nil, err
		}
		*l.dst, err = newLayer(l.name, l.lc.Species, table, c.SFC, l.lc.Age)
		if err != nil {
			return nil, err
		}
	}
	n := c.N
	s.Hdom = make([]float64, n)
	s.LeafArea = make([]float64, n)
	s.BasalArea = make([]float64, n)
	s.Volume = make([]float64, n)
	s.Stems = make([]float64, n)
	s.NutStat = make([]float64, n)
	s.growth = make([]float64, n)
	s.Litter, s.Mortality, s.Lresid = newLitter(n), newLitter(n), newLitter(n)
	for e := range s.Demand {
		s.Demand[e] = make([]float64, n)
		s.LeafDemand[e] = make([]float64, n)
		s.Supply[e] = make([]float64, n)
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Layers returns the canopy layers from top to bottom.
func (s *Stand) Layers() []*Layer {
	return []*Layer{s.Dominant, s.Subdominant, s.Under}
}

// Reset returns every layer to its initial age and clears the
// nutrient status, residues and growth modifiers.
func (s *Stand) Reset() error {
	for _, l := range s.Layers() {
		if err := l.Reset(); err != nil {
			return err
		}
	}
	science.Fill(s.NutStat, 1)
	science.Fill(s.growth, 1)
	for e := range s.Supply {
		science.Fill(s.Supply[e], 0)
	}
	s.aggregate()
	s.Lresid.zero()
	return nil
}

// aggregate sums the layers into the stand totals. Mortality and
// logging residues are aggregated separately.
func (s *Stand) aggregate() {
	science.Fill(s.LeafArea, 0)
	science.Fill(s.BasalArea, 0)
	science.Fill(s.Volume, 0)
	science.Fill(s.Stems, 0)
	s.Litter.zero()
	s.Mortality.zero()
	for e := range s.Demand {
		science.Fill(s.Demand[e], 0)
		science.Fill(s.LeafDemand[e], 0)
	}
	copy(s.Hdom, s.Dominant.Hdom)
	for _, l := range s.Layers() {
		for i := range s.LeafArea {
			s.LeafArea[i] += l.LAI[i]
			s.BasalArea[i] += l.BA[i]
			s.Volume[i] += l.Volume[i]
			s.Stems[i] += l.Stems[i]
		}
		s.Litter.add(&l.Litter)
		s.Mortality.add(&l.Mortality)
		for e := range s.Demand {
			for i := range s.Demand[e] {
				s.Demand[e][i] += l.Demand[e][i]
				s.LeafDemand[e][i] += l.LeafDemand[e][i]
			}
		}
	}
}

// Assimilate sets the growth of the coming update from a year of daily
// air temperature ta [°C], water table wt and root zone air-filled
// porosity afp (days × nodes). Growth is limited by the temperature
// sum, by waterlogging and by the nutrient status.
func (s *Stand) Assimilate(ta []float64, wt, afp [][]float64) error {
	if len(ta) == 0 || len(wt) != len(ta) || len(afp) != len(ta) {
		return fmt.Errorf("stand: %d days of temperature, %d of water table and %d of air-filled porosity: %w",
			len(ta), len(wt), len(afp), science.ErrDimension)
	}
	var ts float64
	var season []int
	for d, t := range ta {
		if t > tempSumBase {
			ts += t - tempSumBase
			season = append(season, d)
		}
	}
	if len(season) == 0 {
		for d := range ta {
			season = append(season, d)
		}
	}
	fT := math.Min(ts/s.c.GrowthTempSum, 1.3)
	for i := range s.growth {
		var air []float64
		for _, d := range season {
			if err := science.CheckLen("stand: air-filled porosity", s.c.N, afp[d]); err != nil {
				return err
			}
			air = append(air, afp[d][i])
		}
		fAir := math.Min(1, math.Max(minAirGrowth, stats.StatsMean(air)/s.c.OptimalAFP))
		fNut := math.Min(1, math.Max(minNutGrowth, s.NutStat[i]))
		s.growth[i] = fT * fAir * fNut
	}
	return science.CheckFinite("stand: growth", s.growth)
}

// Growth returns a copy of the growth modifier set by Assimilate.
func (s *Stand) Growth() []float64 { return append([]float64(nil), s.growth...) }

// Biomass returns the stem and foliage dry mass [kg ha-1] of the
// stand at every node.
func (s *Stand) Biomass() []float64 {
	b := make([]float64, s.c.N)
	for _, l := range s.Layers() {
		for i := range b {
			b[i] += l.stemBiomass(i) + l.Leaf[i]
		}
	}
	return b
}

// HarvestedBiomass returns the stem dry mass [kg ha-1] removed by all
// cuttings since the last Reset.
func (s *Stand) HarvestedBiomass() []float64 {
	b := make([]float64, s.c.N)
	for _, l := range s.Layers() {
		for i := range b {
			b[i] += l.Harvested[i] * l.traits.WoodDensity
		}
	}
	return b
}

// Update advances every layer by the growth set by Assimilate and
// recomputes litter, mortality and nutrient demand.
func (s *Stand) Update() error {
	for _, l := range s.Layers() {
		for i, g := range s.growth {
			if err := l.grow(i, g); err != nil {
				return err
			}
		}
	}
	s.aggregate()
	return nil
}

// Cutting thins the dominant layer to basal area toBA [m2 ha-1] in
// year yr. It must be followed by UpdateLresid to make the residues
// part of the stand litter.
func (s *Stand) Cutting(yr int, toBA float64) error {
	if toBA < 0 {
		return fmt.Errorf("stand: cutting in %d: negative target basal area %g", yr, toBA)
	}
	s.Dominant.Cutting(toBA)
	s.aggregate()
	return nil
}

// UpdateLresid collects the logging residues of every layer.
func (s *Stand) UpdateLresid() {
	s.Lresid.zero()
	for _, l := range s.Layers() {
		s.Lresid.add(&l.Lresid)
	}
}

// ResetLresid clears the logging residues after they have been passed
// to decomposition.
func (s *Stand) ResetLresid() {
	s.Lresid.zero()
	for _, l := range s.Layers() {
		l.Lresid.zero()
	}
}

// TotalLitter returns the sum of table litter, mortality and logging
// residues [kg ha-1 yr-1] of element e at every node.
func (s *Stand) TotalLitter(e Element) (nonWoody, woody []float64) {
	nonWoody = make([]float64, s.c.N)
	woody = make([]float64, s.c.N)
	for i := range nonWoody {
		nonWoody[i] = s.Litter.NonWoody[e][i] + s.Mortality.NonWoody[e][i] + s.Lresid.NonWoody[e][i]
		woody[i] = s.Litter.Woody[e][i] + s.Mortality.Woody[e][i] + s.Lresid.Woody[e][i]
	}
	return nonWoody, woody
}

// UpdateNutrientStatus sets NutStat from the nutrient supply [kg ha-1
// yr-1] of the past year, less the uptake of the ground vegetation,
// relative to the demand of the stand.
func (s *Stand) UpdateNutrientStatus(gv Uptake, nSupply, pSupply, kSupply []float64) error {
	gn, gp, gk := gv.Uptake()
	supply := [NElements][]float64{nil, nSupply, pSupply, kSupply}
	uptake := [NElements][]float64{nil, gn, gp, gk}
	for e := N; e < NElements; e++ {
		if err := science.CheckLen("stand: "+e.String()+" supply", s.c.N, supply[e]); err != nil {
			return err
		}
		if err := science.CheckLen("stand: "+e.String()+" ground vegetation uptake", s.c.N, uptake[e]); err != nil {
			return err
		}
		copy(s.Supply[e], supply[e])
	}
	for i := range s.NutStat {
		stat := maxNutStat
		for e := N; e < NElements; e++ {
			demand := s.Demand[e][i] + s.LeafDemand[e][i]
			if demand <= 0 {
				continue
			}
			avail := math.Max(supply[e][i]-uptake[e][i], 0)
			stat = math.Min(stat, avail/demand)
		}
		s.NutStat[i] = stat
	}
	return science.CheckFinite("stand: nutrient status", s.NutStat)
}
