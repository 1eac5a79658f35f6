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

// Package fertilization computes the release of nutrients and the soil
// pH increase that follow a single fertilizer application.
package fertilization

import (
	"fmt"
	"math"
)

// Nutrient describes the fertilizer dose of one nutrient.
type Nutrient struct {
	Dose       float64 `toml:"dose"`        // kg ha-1
	DecayK     float64 `toml:"decay_k"`     // release rate [yr-1]
	Efficiency float64 `toml:"efficiency"` // fraction available to plants
}

// Config describes a fertilizer application.
type Config struct {
	ApplicationYear int `toml:"application_year"`

	N Nutrient `toml:"n"`
	P Nutrient `toml:"p"`
	K Nutrient `toml:"k"`

	// PHIncrement is the soil pH increase in the application year and
	// PHDecayK the rate [yr-1] at which it fades.
	PHIncrement float64 `toml:"ph_increment"`
	PHDecayK    float64 `toml:"ph_decay_k"`
}

// Validate checks c for impossible values.
func (c Config) Validate() error {
	for _, x := range []struct {
		name string
		n    Nutrient
	}{{"N", c.N}, {"P", c.P}, {"K", c.K}} {
		if x.n.Dose < 0 || x.n.DecayK < 0 || x.n.Efficiency < 0 || x.n.Efficiency > 1 {
			return fmt.Errorf("fertilization: invalid %s application %+v", x.name, x.n)
		}
	}
	if c.PHDecayK < 0 {
		return fmt.Errorf("fertilization: negative pH decay rate %g", c.PHDecayK)
	}
	return nil
}

// Release holds the nutrients [kg ha-1 yr-1] released in one year.
type Release struct {
	N, P, K float64
}

// Fertilization tracks the nutrient release of an application.
type Fertilization struct {
	c Config

	// Release is the release of the most recent NutrientRelease year.
	Release Release

	// PH is the most recent pH effect.
	PH float64
}

// New creates a fertilization schedule.
func New(c Config) (*Fertilization, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Fertilization{c: c}, nil
}

// Reset clears the release of the previous scenario.
func (f *Fertilization) Reset() {
	f.Release = Release{}
	f.PH = 0
}

// ApplicationYear returns the year of application.
func (f *Fertilization) ApplicationYear() int { return f.c.ApplicationYear }

// release returns the amount of a first-order release of the available
// dose that falls in year t after application.
func release(n Nutrient, t int) float64 {
	if t < 0 {
		return 0
	}
	available := n.Dose * n.Efficiency
	return available * (math.Exp(-n.DecayK*float64(t)) - math.Exp(-n.DecayK*float64(t+1)))
}

// NutrientRelease sets Release for year yr and returns it.
func (f *Fertilization) NutrientRelease(yr int) Release {
	t := yr - f.c.ApplicationYear
	f.Release = Release{
		N: release(f.c.N, t),
		P: release(f.c.P, t),
		K: release(f.c.K, t),
	}
	return f.Release
}

// PHEffect returns the soil pH increase in year yr, which is zero
// before the application.
func (f *Fertilization) PHEffect(yr int) float64 {
	t := yr - f.c.ApplicationYear
	if t < 0 {
		f.PH = 0
		return 0
	}
	f.PH = f.c.PHIncrement * math.Exp(-f.c.PHDecayK*float64(t))
	return f.PH
}
