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

package strip

import (
	"fmt"
	"math"
)

// PeatProperties holds the hydraulic properties of one peat layer.
type PeatProperties struct {
	VonPost float64 // degree of humification, 1-10

	// BulkDensity is the dry bulk density [kg m-3].
	BulkDensity float64

	// SpecificYield is the drainable porosity [m3 m-3].
	SpecificYield float64

	// Kh is the horizontal saturated hydraulic conductivity [m d-1].
	Kh float64
}

// Properties returns hydraulic properties for peat with the given
// von Post humification degree. Horizontal conductivity is the
// vertical conductivity multiplied by anisotropy.
func Properties(vonPost, anisotropy float64) (PeatProperties, error) {
	if vonPost < 1 || vonPost > 10 {
		return PeatProperties{}, fmt.Errorf("strip: von Post degree %g outside [1, 10]", vonPost)
	}
	if anisotropy <= 0 {
		return PeatProperties{}, fmt.Errorf("strip: anisotropy must be positive, got %g", anisotropy)
	}
	// Conductivity falls by roughly half an order of magnitude per
	// von Post step from about 3e-4 m s-1 in weakly humified moss peat.
	kv := math.Pow(10, -3.5-0.45*(vonPost-1)) * 86400 // m d-1
	return PeatProperties{
		VonPost:       vonPost,
		BulkDensity:   50 + 15*vonPost,
		SpecificYield: 0.35 * math.Exp(-0.25*(vonPost-1)),
		Kh:            kv * anisotropy,
	}, nil
}

// profile is the discretized peat column shared by all strip nodes.
type profile struct {
	dz     float64
	bottom float64 // depth of the impermeable base, negative [m]
	layers []PeatProperties
}

func newProfile(nLyrs int, dz float64, vonPTop []float64, vonPBottom, anisotropy float64) (*profile, error) {
	p := &profile{
		dz:     dz,
		bottom: -float64(nLyrs) * dz,
		layers: make([]PeatProperties, nLyrs),
	}
	for i := range p.layers {
		vp := vonPBottom
		if i < len(vonPTop) {
			vp = vonPTop[i]
		}
		var err error
		p.layers[i], err = Properties(vp, anisotropy)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return p, nil
}

// layerOf returns the index of the layer containing depth z (z <= 0).
func (p *profile) layerOf(z float64) int {
	i := int(-z / p.dz)
	if i < 0 {
		return 0
	}
	if i >= len(p.layers) {
		return len(p.layers) - 1
	}
	return i
}

// air returns the drained pore volume [m] above water table h, which
// is zero when the water table is at or above the surface. Below the
// base of the column the bottom layer properties are extended.
func (p *profile) air(h float64) float64 {
	if h >= 0 {
		return 0
	}
	var a float64
	if h < p.bottom {
		a = p.layers[len(p.layers)-1].SpecificYield * (p.bottom - h)
		h = p.bottom
	}
	for i, l := range p.layers {
		top := -float64(i) * p.dz
		bot := top - p.dz
		if bot >= h {
			a += l.SpecificYield * p.dz
			continue
		}
		if top > h {
			a += l.SpecificYield * (top - h)
		}
		break
	}
	return a
}

// storage returns the water storage [m] relative to a column drained
// to its base. Water above the surface is stored with a coefficient of 1.
func (p *profile) storage(h float64) float64 {
	s := p.air(p.bottom) - p.air(h)
	if h > 0 {
		s += h
	}
	return s
}

// capacity returns the storage coefficient dS/dh at water table h.
func (p *profile) capacity(h float64) float64 {
	if h >= 0 {
		return 1
	}
	if h <= p.bottom {
		return p.layers[len(p.layers)-1].SpecificYield
	}
	return p.layers[p.layerOf(h)].SpecificYield
}

// transmissivity returns the saturated transmissivity [m2 d-1] for
// water table h. Water above the surface adds the conductivity of the
// top layer, and a small residual keeps the system solvable when the
// column is drained to its base.
func (p *profile) transmissivity(h float64) float64 {
	const residual = 1e-6
	if h <= p.bottom {
		return residual
	}
	var t float64
	for i, l := range p.layers {
		top := -float64(i) * p.dz
		bot := top - p.dz
		if top <= h {
			t += l.Kh * p.dz
			continue
		}
		if bot < h {
			t += l.Kh * (h - bot)
		}
	}
	if h > 0 {
		t += p.layers[0].Kh * h
	}
	return t + residual
}

// airFilledPorosity returns the air volume fraction of the top depth
// metres of peat for water table h.
func (p *profile) airFilledPorosity(h, depth float64) float64 {
	if depth <= 0 {
		return 0
	}
	return p.air(math.Max(h, -depth)) / depth
}
