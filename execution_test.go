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
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

const executionTOML = `
n_runs = 2
n_parallel = 2
random_seed = 42

[[runs]]
end_year = 2004
scenario_name = ["D30"]
ditch_depth_west = [-0.3]
ditch_depth_east = [-0.3]
ditch_depth_20y_west = [-0.3]
ditch_depth_20y_east = [-0.3]

[[runs]]
end_year = 2004
[runs.fertilization]
application_year = 2004
`

func TestReadExecutionConfig(t *testing.T) {
	c, err := ReadExecutionConfig(strings.NewReader(executionTOML))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Runs) != 2 || *c.RandomSeed != 42 {
		t.Fatalf("%+v", c)
	}
	if c.Runs[0].ScenarioName[0] != "D30" || c.Runs[0].N != 21 {
		t.Errorf("run 0: %+v", c.Runs[0])
	}
	if c.Runs[1].Fertilization.ApplicationYear != 2004 || c.Runs[1].Fertilization.P.Dose != 45 {
		t.Errorf("run 1 fertilization: %+v", c.Runs[1].Fertilization)
	}
	id0, id1 := c.RunID(0), c.RunID(1)
	if !regexp.MustCompile(`^run_000_[0-9a-f]{8}$`).MatchString(id0) || id0[8:] == id1[8:] {
		t.Errorf("run identifiers %s and %s", id0, id1)
	}
}

func TestExecutionConfigValidate(t *testing.T) {
	seed := int64(1)
	for _, test := range []struct {
		name string
		c    ExecutionConfig
		want string
	}{
		{
			name: "no runs",
			c:    ExecutionConfig{NRuns: 0, NParallel: 1},
			want: "must be positive",
		},
		{
			name: "too parallel",
			c:    ExecutionConfig{NRuns: 1, NParallel: 2, Runs: []*Params{DefaultParams()}},
			want: "parallel",
		},
		{
			name: "no seed",
			c:    ExecutionConfig{NRuns: 2, NParallel: 1, Runs: []*Params{DefaultParams(), {}}},
			want: "random seed",
		},
		{
			name: "count",
			c:    ExecutionConfig{NRuns: 2, NParallel: 1, RandomSeed: &seed, Runs: []*Params{DefaultParams()}},
			want: "1 runs given",
		},
		{
			name: "duplicate",
			c:    ExecutionConfig{NRuns: 2, NParallel: 1, RandomSeed: &seed, Runs: []*Params{DefaultParams(), DefaultParams()}},
			want: "duplicates",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := test.c.Validate()
			if !errors.Is(err, ErrConfig) || !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %v, want %s", err, test.want)
			}
		})
	}
	single := ExecutionConfig{NRuns: 1, NParallel: 1, Runs: []*Params{DefaultParams()}}
	if err := single.Validate(); err != nil {
		t.Errorf("single run without seed: %v", err)
	}
}

func TestNewExperiment(t *testing.T) {
	seed := int64(7)
	c := &ExecutionConfig{RandomSeed: &seed}
	start := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	e := c.NewExperiment("out", start)
	if !regexp.MustCompile(`^20240305_140709_[0-9]+$`).MatchString(e.ID) {
		t.Errorf("experiment id %s", e.ID)
	}
	if e.Folder != "out/"+e.ID {
		t.Errorf("folder %s", e.Folder)
	}
	if again := c.NewExperiment("out", start); again.ID != e.ID {
		t.Errorf("same seed and start gave %s and %s", e.ID, again.ID)
	}
}

func TestPlanRuns(t *testing.T) {
	runs, err := PlanRuns(DefaultParams(), map[string][]interface{}{
		"fertilization.P.dose": {0, 45.0, "90"},
		"SFC":                  {2, 3, 4},
		"dominant.species":     {"pine", "spruce", "birch"},
		"ditch_depth_west":     {[]float64{-0.3}, []float64{-0.6}, []float64{-0.9}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("%d runs", len(runs))
	}
	for i, want := range []float64{0, 45, 90} {
		p := runs[i]
		if p.Fertilization.P.Dose != want || p.SFC != i+2 {
			t.Errorf("run %d: dose %g, site fertility class %d", i, p.Fertilization.P.Dose, p.SFC)
		}
		if different(p.DitchDepthWest[0], -0.3*float64(i+1), testTolerance) {
			t.Errorf("run %d: west ditch %v", i, p.DitchDepthWest)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("run %d: %v", i, err)
		}
	}
	if runs[2].Dominant.Species != "birch" || runs[2].N != 21 {
		t.Errorf("run 2: %+v", runs[2])
	}

	if _, err := PlanRuns(DefaultParams(), map[string][]interface{}{"no_such": {1}}); !errors.Is(err, ErrConfig) {
		t.Errorf("unknown parameter: %v", err)
	}
	if _, err := PlanRuns(DefaultParams(), map[string][]interface{}{"sfc": {1, 2}, "n": {21}}); !errors.Is(err, ErrConfig) {
		t.Errorf("unequal lists: %v", err)
	}
	if _, err := PlanRuns(DefaultParams(), map[string][]interface{}{"sfc": {"many"}}); !errors.Is(err, ErrConfig) {
		t.Errorf("unconvertible value: %v", err)
	}
}
