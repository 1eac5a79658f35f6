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
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/susi/internal/hash"
	"github.com/spf13/cast"
)

// ExecutionConfig describes a set of independent simulations.
type ExecutionConfig struct {
	NRuns     int `toml:"n_runs"`
	NParallel int `toml:"n_parallel"`

	// RandomSeed seeds the experiment identifier. It is required when
	// there is more than one run.
	RandomSeed *int64 `toml:"random_seed"`

	Runs []*Params `toml:"-"`
}

// ReadExecutionConfig decodes an execution plan. Every [[runs]] table
// is decoded on top of DefaultParams.
func ReadExecutionConfig(r io.Reader) (*ExecutionConfig, error) {
	var raw struct {
		NRuns      int              `toml:"n_runs"`
		NParallel  int              `toml:"n_parallel"`
		RandomSeed *int64           `toml:"random_seed"`
		Runs       []toml.Primitive `toml:"runs"`
	}
	md, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("susi: reading execution plan: %w: %v", ErrConfig, err)
	}
	c := &ExecutionConfig{NRuns: raw.NRuns, NParallel: raw.NParallel, RandomSeed: raw.RandomSeed}
	for i, prim := range raw.Runs {
		p := DefaultParams()
		if err := md.PrimitiveDecode(prim, p); err != nil {
			return nil, fmt.Errorf("susi: reading run %d: %w: %v", i, ErrConfig, err)
		}
		c.Runs = append(c.Runs, p)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the plan and every run in it.
func (c *ExecutionConfig) Validate() error {
	var errs []error
	if c.NRuns < 1 {
		errs = append(errs, fmt.Errorf("number of runs must be positive, got %d", c.NRuns))
	}
	if c.NParallel < 1 || c.NParallel > c.NRuns {
		errs = append(errs, fmt.Errorf("number of parallel runs %d must be between 1 and the number of runs %d", c.NParallel, c.NRuns))
	}
	if c.NRuns > 1 && c.RandomSeed == nil {
		errs = append(errs, fmt.Errorf("a random seed is required for %d runs", c.NRuns))
	}
	if len(c.Runs) != c.NRuns {
		errs = append(errs, fmt.Errorf("%d runs given but n_runs is %d", len(c.Runs), c.NRuns))
	}
	seen := make(map[string]int)
	for i, p := range c.Runs {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("run %d: %w", i, err))
			continue
		}
		key := hash.Hash(p)
		if j, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("run %d duplicates the parameters of run %d", i, j))
		}
		seen[key] = i
	}
	return configError(errs)
}

// RunID returns a name for run i that is unique within the plan.
func (c *ExecutionConfig) RunID(i int) string {
	return fmt.Sprintf("run_%03d_%s", i, hash.Short(c.Runs[i]))
}

// Experiment identifies one execution of a plan.
type Experiment struct {
	ID     string
	Start  time.Time
	Folder string
}

// NewExperiment names an experiment started at start whose outputs go
// below outDir.
func (c *ExecutionConfig) NewExperiment(outDir string, start time.Time) Experiment {
	var seed int64 = 1
	if c.RandomSeed != nil {
		seed = *c.RandomSeed
	}
	rng := rand.New(rand.NewSource(seed ^ start.UnixNano()))
	id := fmt.Sprintf("%s_%d", start.Format("20060102_150405"), rng.Intn(1000000))
	return Experiment{ID: id, Start: start, Folder: filepath.Join(outDir, id)}
}

// PlanRuns creates one parameter set for each index of the lists in
// set, replacing the parameters named by their dotted TOML paths, for
// example "fertilization.P.dose". Every list must have the same length.
func PlanRuns(base *Params, set map[string][]interface{}) ([]*Params, error) {
	n := -1
	keys := make([]string, 0, len(set))
	for k, v := range set {
		if n >= 0 && len(v) != n {
			return nil, fmt.Errorf("susi: planning runs: %w: %s has %d values, others have %d", ErrConfig, k, len(v), n)
		}
		n = len(v)
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if n < 1 {
		return nil, fmt.Errorf("susi: planning runs: %w: no values to set", ErrConfig)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(base); err != nil {
		return nil, fmt.Errorf("susi: planning runs: %w", err)
	}
	encoded := buf.String()

	runs := make([]*Params, n)
	for i := range runs {
		var tree map[string]interface{}
		if _, err := toml.Decode(encoded, &tree); err != nil {
			return nil, fmt.Errorf("susi: planning runs: %w", err)
		}
		for _, k := range keys {
			if err := setPath(tree, k, set[k][i]); err != nil {
				return nil, fmt.Errorf("susi: planning run %d: %w: %v", i, ErrConfig, err)
			}
		}
		buf.Reset()
		if err := toml.NewEncoder(&buf).Encode(tree); err != nil {
			return nil, fmt.Errorf("susi: planning run %d: %w", i, err)
		}
		p := DefaultParams()
		if _, err := toml.Decode(buf.String(), p); err != nil {
			return nil, fmt.Errorf("susi: planning run %d: %w: %v", i, ErrConfig, err)
		}
		runs[i] = p
	}
	return runs, nil
}

// setPath replaces the value at a dotted path in tree, converting v to
// the type of the value it replaces. Keys match case-insensitively.
func setPath(tree map[string]interface{}, path string, v interface{}) error {
	parts := strings.Split(path, ".")
	m := tree
	for i, part := range parts {
		key, ok := findKey(m, part)
		if !ok {
			return fmt.Errorf("unknown parameter %q", strings.Join(parts[:i+1], "."))
		}
		if i < len(parts)-1 {
			next, ok := m[key].(map[string]interface{})
			if !ok {
				return fmt.Errorf("parameter %q is not a table", strings.Join(parts[:i+1], "."))
			}
			m = next
			continue
		}
		var err error
		switch m[key].(type) {
		case float64:
			m[key], err = cast.ToFloat64E(v)
		case int64:
			m[key], err = cast.ToInt64E(v)
		case string:
			m[key], err = cast.ToStringE(v)
		case bool:
			m[key], err = cast.ToBoolE(v)
		case []interface{}:
			m[key], err = toSlice(v)
		default:
			m[key] = v
		}
		if err != nil {
			return fmt.Errorf("parameter %q: %v", path, err)
		}
	}
	return nil
}

// toSlice converts any slice to []interface{}.
func toSlice(v interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return cast.ToSliceE(v)
	}
	s := make([]interface{}, rv.Len())
	for i := range s {
		s[i] = rv.Index(i).Interface()
	}
	return s, nil
}

func findKey(m map[string]interface{}, name string) (string, bool) {
	if _, ok := m[name]; ok {
		return name, true
	}
	for k := range m {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}
