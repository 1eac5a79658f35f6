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

// Package methane estimates the annual methane balance of drained
// peatland forest from the water table.
package methane

import (
	"fmt"
	"math"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/spatialmodel/susi/science"
)

// GWP100 is the 100-year global warming potential of methane.
const GWP100 = 28.0

// Flux returns the methane flux [kg CH4 ha-1 yr-1] for a mean annual
// water table wt [m, negative below ground]. Negative fluxes are uptake.
func Flux(wt float64) float64 {
	wtcm := wt * 100
	return -0.378 + 12.3*math.Exp(0.121*wtcm)
}

// Methane computes annual methane fluxes.
type Methane struct {
	n, yrs int
}

// New creates a methane model for n nodes and yrs simulation years.
func New(n, yrs int) *Methane {
	return &Methane{n: n, yrs: yrs}
}

// RunCH4Yr returns the methane flux of each node [kg ha-1 yr-1], its
// strip mean and the mean as CO2 equivalents, from the daily water
// tables (days × nodes) of year yr alone.
func (m *Methane) RunCH4Yr(yr int, wt [][]float64) (ch4 []float64, mean, co2eq float64, err error) {
	if len(wt) == 0 {
		return nil, 0, 0, fmt.Errorf("methane: no water table data for %d", yr)
	}
	ch4 = make([]float64, m.n)
	col := make([]float64, len(wt))
	for i := range ch4 {
		for d, row := range wt {
			if err := science.CheckLen(fmt.Sprintf("methane: %d day %d water table", yr, d), m.n, row); err != nil {
				return nil, 0, 0, err
			}
			col[d] = row[i]
		}
		ch4[i] = Flux(stats.StatsMean(col))
	}
	if err := science.CheckFinite("methane: flux", ch4); err != nil {
		return nil, 0, 0, err
	}
	mean = stats.StatsMean(ch4)
	return ch4, mean, mean * GWP100, nil
}
