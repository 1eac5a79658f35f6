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

package susi

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"
)

// YearManipulator is run at the end of every simulated year, after the
// annual outputs of year index y of scenario r have been set.
type YearManipulator func(s *Susi, r, y int) error

// Log returns a function that writes a progress line for every year.
func Log(w io.Writer) YearManipulator {
	startTime := time.Now()
	yearTime := time.Now()
	return func(s *Susi, r, y int) error {
		fmt.Fprintf(w, "Scenario %-8s year %-4d  walltime=%6.3gh  Δwalltime=%4.2gs  "+
			"day=%-5d  hdom=%5.2fm  LAI=%4.2f\n",
			s.scenarios[r].Name, s.p.StartYear+y-1, time.Since(startTime).Hours(),
			time.Since(yearTime).Seconds(), s.day,
			stats.StatsMean(s.stand.Hdom), stats.StatsMean(s.stand.LeafArea))
		yearTime = time.Now()
		return nil
	}
}

// MassBalanceCheck returns a function that logs a warning when the
// daily canopy and moss water balance error of the year exceeds tol
// [mm] at any node. It never fails the simulation.
func MassBalanceCheck(tol float64) YearManipulator {
	return func(s *Susi, r, y int) error {
		mbe := s.out.data["cpy_mbe"]
		start, days, err := s.w.Year(s.p.StartYear + y - 1)
		if err != nil {
			return err
		}
		first, last := mbe.Index1d(r, start, 0), mbe.Index1d(r, start+days-1, s.p.N-1)
		var worst float64
		for _, v := range mbe.Elements[first : last+1] {
			worst = math.Max(worst, math.Abs(v))
		}
		if worst > tol {
			s.log.WithFields(logrus.Fields{
				"scenario": s.scenarios[r].Name,
				"year":     s.p.StartYear + y - 1,
			}).Warnf("canopy water balance error %.3g mm exceeds %.3g mm", worst, tol)
		}
		return nil
	}
}
