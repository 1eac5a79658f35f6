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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spatialmodel/susi"
	"github.com/spatialmodel/susi/internal/catalog"
)

func shortPlan(t *testing.T, n int) *susi.ExecutionConfig {
	t.Helper()
	seed := int64(3)
	c := &susi.ExecutionConfig{NRuns: n, NParallel: n, RandomSeed: &seed}
	for i := 0; i < n; i++ {
		p := susi.DefaultParams()
		p.EndYear = 2004
		p.DitchDepthWest = []float64{-0.3 - 0.2*float64(i)}
		c.Runs = append(c.Runs, p)
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	plan := shortPlan(t, 2)
	u, m := newMockUploader(t)
	var out bytes.Buffer
	start := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	exp, err := Run(context.Background(), plan, susi.SyntheticWeather(2004, 2004, 61.8, 24.3), RunConfig{
		OutputDir:            dir,
		MetricsFile:          filepath.Join(dir, "susi.prom"),
		Derived:              map[string]string{"gwp": "methane_co2eq + co2_soil_balance"},
		MassBalanceTolerance: 0.1,
		Upload:               "s3://results",
		Out:                  &out,
		Start:                start,
		uploader:             u,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(exp.ID, "20240305_140709_") || exp.Folder != filepath.Join(dir, exp.ID) {
		t.Errorf("experiment %+v", exp)
	}
	for i := range plan.Runs {
		if _, err := os.Stat(filepath.Join(exp.Folder, plan.RunID(i)+".nc")); err != nil {
			t.Error(err)
		}
	}
	if !strings.Contains(out.String(), "experiment finished") {
		t.Errorf("log output:\n%s", out.String())
	}

	prom, err := os.ReadFile(filepath.Join(dir, "susi.prom"))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{`susi_runs_total{status="finished"} 2`, "susi_simulated_scenario_years_total 2"} {
		if !strings.Contains(string(prom), s) {
			t.Errorf("metrics do not contain %q:\n%s", s, prom)
		}
	}

	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	runs, err := cat.Runs(context.Background(), exp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("catalog runs %+v", runs)
	}
	for _, r := range runs {
		if r.Status != catalog.Finished {
			t.Errorf("run %s: status %s", r.ID, r.Status)
		}
	}

	if keys := m.keys(); len(keys) != 3 { // two runs and the log file
		t.Errorf("uploaded %v", keys)
	}
}

func TestRunFailure(t *testing.T) {
	dir := t.TempDir()
	plan := shortPlan(t, 1)
	// The weather ends before the simulated year.
	_, err := Run(context.Background(), plan, susi.SyntheticWeather(2003, 2003, 61.8, 24.3), RunConfig{
		OutputDir: dir,
		Start:     time.Now(),
	})
	if !errors.Is(err, susi.ErrConfig) {
		t.Fatalf("error %v", err)
	}
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	outputs, err := cat.FindOutputs(context.Background(), "")
	if err != nil || len(outputs) != 0 {
		t.Errorf("outputs %v, %v", outputs, err)
	}
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	params := filepath.Join(dir, "params.toml")
	if err := os.WriteFile(params, []byte("end_year = 2004\nsfc = 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	plan := filepath.Join(dir, "plan.toml")
	if err := os.WriteFile(plan, []byte(`
n_runs = 2
n_parallel = 1
random_seed = 1

[[runs]]
end_year = 2004

[[runs]]
end_year = 2004
sfc = 2
`), 0o644); err != nil {
		t.Fatal(err)
	}

	execute := func(args ...string) (string, error) {
		var buf bytes.Buffer
		Root.SetOutput(&buf)
		Root.SetArgs(args)
		err := Root.Execute()
		return buf.String(), err
	}

	t.Run("version", func(t *testing.T) {
		out, err := execute("version")
		if err != nil {
			t.Fatal(err)
		}
		if out != "SUSI v"+susi.Version+"\n" {
			t.Errorf("version output %q", out)
		}
	})

	t.Run("describe", func(t *testing.T) {
		Cfg.Set("Params", params)
		defer Cfg.Set("Params", "")
		out, err := execute("describe")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "2004-2004") || !strings.Contains(out, "fertility class 4") {
			t.Errorf("description:\n%s", out)
		}
	})

	t.Run("plan", func(t *testing.T) {
		Cfg.Set("Plan", plan)
		defer Cfg.Set("Plan", "")
		out, err := execute("plan")
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 || !strings.HasPrefix(lines[1], "run_000_") || !strings.HasPrefix(lines[2], "run_001_") {
			t.Errorf("plan output:\n%s", out)
		}
	})

	t.Run("run", func(t *testing.T) {
		Cfg.Set("Params", params)
		Cfg.Set("OutputDir", filepath.Join(dir, "out"))
		defer Cfg.Set("Params", "")
		if _, err := execute("run"); err != nil {
			t.Fatal(err)
		}
		folders, err := filepath.Glob(filepath.Join(dir, "out", "*", "run_000_*.nc"))
		if err != nil || len(folders) != 1 {
			t.Errorf("outputs %v, %v", folders, err)
		}
	})

	t.Run("bad level", func(t *testing.T) {
		Cfg.Set("LogLevel", "loud")
		defer Cfg.Set("LogLevel", "info")
		if _, err := execute("version"); err == nil {
			t.Error("invalid log level accepted")
		}
	})
}

func TestGetStringMapString(t *testing.T) {
	Cfg.Set("DerivedOutputs", `{"a": "temp_sum * 2"}`)
	defer Cfg.Set("DerivedOutputs", "{}")
	m, err := getStringMapString("DerivedOutputs", Cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 1 || m["a"] != "temp_sum * 2" {
		t.Errorf("%v", m)
	}
	Cfg.Set("DerivedOutputs", `{"a": `)
	if _, err := getStringMapString("DerivedOutputs", Cfg); err == nil {
		t.Error("malformed JSON accepted")
	}
}
