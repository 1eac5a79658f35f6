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

package susiutil

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spatialmodel/susi/internal/catalog"
)

// metrics counts the runs of an experiment.
type metrics struct {
	reg      *prometheus.Registry
	runs     *prometheus.CounterVec
	years    prometheus.Counter
	duration prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "susi",
			Name:      "runs_total",
			Help:      "Simulation runs by final status.",
		}, []string{"status"}),
		years: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "susi",
			Name:      "simulated_scenario_years_total",
			Help:      "Scenario years simulated by finished runs.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "susi",
			Name:      "run_duration_seconds",
			Help:      "Wall time of simulation runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	m.reg.MustRegister(m.runs, m.years, m.duration)
	return m
}

// observe records a run that ended with status after seconds of wall
// time and covered scenarioYears.
func (m *metrics) observe(status string, seconds float64, scenarioYears int) {
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(seconds)
	if status == catalog.Finished {
		m.years.Add(float64(scenarioYears))
	}
}

// write saves the metrics to path in the text exposition format.
func (m *metrics) write(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("susi: writing metrics: %w", err)
	}
	return nil
}
