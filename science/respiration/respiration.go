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

// Package respiration holds empirical models of soil heterotrophic
// respiration and the soil CO2 balance of drained peatland forests
// (Ojanen et al. 2010, Ojanen and Minkkinen 2019).
package respiration

import (
	"fmt"
	"math"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/spatialmodel/susi/science"
)

const (
	// Depth [m] of the peat temperature that drives respiration.
	tempDepth = 0.2

	// Respiration [g CO2 m-2 d-1] at 10 °C with the water table at the
	// surface, and its increase per cm of water table depth and per
	// m3 ha-1 of stand volume.
	r10Base   = 1.2
	r10PerWT  = 0.035
	r10PerVol = 0.002

	summerStart = 121 // May 1
	summerEnd   = 304 // Oct 31
)

// lloydTaylor returns the temperature response of respiration,
// normalized to 1 at 10 °C.
func lloydTaylor(t float64) float64 {
	return math.Exp(308.56 * (1/56.02 - 1/(t+46.02)))
}

// HeterotrophicYr returns the annual heterotrophic respiration [kg CO2
// ha-1 yr-1] of each node from daily peat temperature profiles peatT
// (days × layers) at depths z [m], daily water tables wt (days × nodes,
// m) and stand volume [m3 ha-1].
func HeterotrophicYr(peatT [][]float64, z []float64, wt [][]float64, volume []float64) ([]float64, error) {
	n := len(volume)
	if len(peatT) == 0 || len(peatT) != len(wt) {
		return nil, fmt.Errorf("respiration: %d days of peat temperature and %d of water table: %w",
			len(peatT), len(wt), science.ErrDimension)
	}
	rhet := make([]float64, n)
	for d := range peatT {
		if err := science.CheckLen("respiration: peat temperature", len(z), peatT[d]); err != nil {
			return nil, err
		}
		if err := science.CheckLen("respiration: water table", n, wt[d]); err != nil {
			return nil, err
		}
		f := lloydTaylor(science.Interp1(tempDepth, z, peatT[d]))
		for i := range rhet {
			wtcm := math.Max(-wt[d][i]*100, 0)
			r10 := r10Base + r10PerWT*wtcm + r10PerVol*volume[i]
			rhet[i] += r10 * f * 10 // g m-2 to kg ha-1
		}
	}
	return rhet, science.CheckFinite("respiration: rhet", rhet)
}

// Ojanen2019 returns the soil CO2 balance [kg CO2 ha-1 yr-1] of each
// node from the mean summer water table depth. Positive values are a
// net loss of soil carbon. doy holds the day of year of each row of wt.
func Ojanen2019(doy []int, wt [][]float64) ([]float64, error) {
	if len(doy) != len(wt) || len(wt) == 0 {
		return nil, fmt.Errorf("respiration: %d days of year and %d water tables: %w",
			len(doy), len(wt), science.ErrDimension)
	}
	n := len(wt[0])
	cols := make([][]float64, n)
	for d, row := range wt {
		if doy[d] < summerStart || doy[d] > summerEnd {
			continue
		}
		if err := science.CheckLen("respiration: water table", n, row); err != nil {
			return nil, err
		}
		for i, w := range row {
			cols[i] = append(cols[i], -w*100)
		}
	}
	out := make([]float64, n)
	for i, c := range cols {
		if len(c) == 0 {
			return nil, fmt.Errorf("respiration: no summer days in the water table series")
		}
		out[i] = (-115 + 12*stats.StatsMean(c)) * 10 // g m-2 to kg ha-1
	}
	return out, nil
}
