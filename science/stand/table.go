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
)

// Row holds the stand properties of a growth table at one age.
type Row struct {
	Hdom   float64 // dominant height [m]
	BA     float64 // basal area [m2 ha-1]
	Volume float64 // stem volume [m3 ha-1]
	Stems  float64 // stem count [ha-1]
	Leaf   float64 // foliage mass [kg ha-1]
}

// Table gives the undisturbed development of a stand of a species on
// a site of fertility class sfc.
type Table interface {
	Lookup(species string, sfc int, age float64) (Row, error)
}

// Traits holds species-specific biomass and nutrient properties.
type Traits struct {
	WoodDensity float64 // kg m-3
	SLA         float64 // specific leaf area [m2 kg-1]
	Longevity   float64 // foliage longevity [yr]

	// Nutrient concentrations [kg kg-1] indexed by N, P and K.
	LeafConc, LitterConc, WoodConc [NElements]float64
}

// SpeciesTraits holds the traits of the supported species.
var SpeciesTraits = map[string]Traits{
	"pine": {
		WoodDensity: 400, SLA: 6.0, Longevity: 3,
		LeafConc:    [NElements]float64{1, 0.012, 0.0013, 0.0045},
		LitterConc:  [NElements]float64{1, 0.0045, 0.0004, 0.001},
		WoodConc:    [NElements]float64{1, 0.0008, 0.00008, 0.0005},
	},
	"spruce": {
		WoodDensity: 380, SLA: 4.5, Longevity: 5,
		LeafConc:    [NElements]float64{1, 0.013, 0.0015, 0.006},
		LitterConc:  [NElements]float64{1, 0.0055, 0.0006, 0.0018},
		WoodConc:    [NElements]float64{1, 0.001, 0.0001, 0.0006},
	},
	"birch": {
		WoodDensity: 490, SLA: 12.0, Longevity: 1,
		LeafConc:    [NElements]float64{1, 0.026, 0.0025, 0.009},
		LitterConc:  [NElements]float64{1, 0.01, 0.001, 0.004},
		WoodConc:    [NElements]float64{1, 0.0012, 0.00015, 0.0008},
	},
}

func traits(species string) (Traits, error) {
	t, ok := SpeciesTraits[species]
	if !ok {
		return Traits{}, fmt.Errorf("stand: unsupported species %q", species)
	}
	return t, nil
}

// chapmanRichards holds the parameters of one species in the default table.
type chapmanRichards struct {
	hMax, hK, hP    float64
	baMax, baK, baP float64
	stems0, stemsK  float64
	formFactor      float64
	leafPerBA       float64 // kg foliage per m2 basal area
}

// DefaultTable is a growth table from Chapman-Richards curves fitted
// to typical boreal stands. Site fertility class 2 is the most fertile
// and 6 the poorest; each class step reduces maximum height by 12%.
type DefaultTable struct{}

var defaultCurves = map[string]chapmanRichards{
	"pine":   {hMax: 26, hK: 0.025, hP: 1.4, baMax: 30, baK: 0.035, baP: 1.6, stems0: 2500, stemsK: 0.012, formFactor: 0.47, leafPerBA: 230},
	"spruce": {hMax: 30, hK: 0.02, hP: 1.5, baMax: 34, baK: 0.03, baP: 1.7, stems0: 2200, stemsK: 0.011, formFactor: 0.5, leafPerBA: 420},
	"birch":  {hMax: 24, hK: 0.04, hP: 1.2, baMax: 20, baK: 0.045, baP: 1.4, stems0: 2000, stemsK: 0.018, formFactor: 0.43, leafPerBA: 110},
}

// Lookup implements Table.
func (DefaultTable) Lookup(species string, sfc int, age float64) (Row, error) {
	c, ok := defaultCurves[species]
	if !ok {
		return Row{}, fmt.Errorf("stand: no default growth curve for species %q", species)
	}
	if sfc < 1 || sfc > 6 {
		return Row{}, fmt.Errorf("stand: site fertility class %d outside [1, 6]", sfc)
	}
	age = math.Max(age, 0)
	site := math.Pow(0.88, float64(sfc-2))
	r := Row{
		Hdom:  c.hMax * site * math.Pow(1-math.Exp(-c.hK*age), c.hP),
		BA:    c.baMax * site * math.Pow(1-math.Exp(-c.baK*age), c.baP),
		Stems: c.stems0*math.Exp(-c.stemsK*age) + 200,
	}
	r.Volume = c.formFactor * r.BA * r.Hdom
	r.Leaf = c.leafPerBA * r.BA
	return r, nil
}

// SeriesTable is a growth table given as series of rows at increasing
// ages for each species. Values between ages are interpolated linearly.
// Site fertility class is not used because each series is fitted to
// one site.
type SeriesTable struct {
	Age  map[string][]float64
	Rows map[string][]Row
}

// Lookup implements Table.
func (t *SeriesTable) Lookup(species string, _ int, age float64) (Row, error) {
	ages, ok := t.Age[species]
	if !ok || len(ages) == 0 {
		return Row{}, fmt.Errorf("stand: growth table has no series for species %q", species)
	}
	rows := t.Rows[species]
	if age <= ages[0] {
		return rows[0], nil
	}
	last := len(ages) - 1
	if age >= ages[last] {
		return rows[last], nil
	}
	for i := 1; i <= last; i++ {
		if age <= ages[i] {
			w := (age - ages[i-1]) / (ages[i] - ages[i-1])
			a, b := rows[i-1], rows[i]
			lerp := func(x, y float64) float64 { return x + w*(y-x) }
			return Row{
				Hdom:   lerp(a.Hdom, b.Hdom),
				BA:     lerp(a.BA, b.BA),
				Volume: lerp(a.Volume, b.Volume),
				Stems:  lerp(a.Stems, b.Stems),
				Leaf:   lerp(a.Leaf, b.Leaf),
			}, nil
		}
	}
	return rows[last], nil
}
