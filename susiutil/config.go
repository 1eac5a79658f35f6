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
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/susi"
	"github.com/spf13/cast"
)

// loadParams reads the parameter file at path, or returns the default
// parameters if path is empty.
func loadParams(path string) (*susi.Params, error) {
	if path == "" {
		return susi.DefaultParams(), nil
	}
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("susi: opening parameter file: %w", err)
	}
	defer f.Close()
	return susi.ReadParams(f)
}

// loadPlan reads the execution plan given by the Plan option, or
// wraps the parameters given by the Params option in a single-run plan.
func loadPlan() (*susi.ExecutionConfig, error) {
	path := Cfg.GetString("Plan")
	if path == "" {
		p, err := loadParams(Cfg.GetString("Params"))
		if err != nil {
			return nil, err
		}
		c := &susi.ExecutionConfig{NRuns: 1, NParallel: 1, Runs: []*susi.Params{p}}
		return c, c.Validate()
	}
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("susi: opening execution plan: %w", err)
	}
	defer f.Close()
	return susi.ReadExecutionConfig(f)
}

// loadWeather reads the weather file given by the Weather option. If
// there is none, synthetic weather covering every run is returned.
func loadWeather(c *susi.ExecutionConfig) (*susi.Weather, error) {
	if path := Cfg.GetString("Weather"); path != "" {
		f, err := os.Open(os.ExpandEnv(path))
		if err != nil {
			return nil, fmt.Errorf("susi: opening weather file: %w", err)
		}
		defer f.Close()
		return susi.ReadWeatherCSV(f)
	}
	start, end := c.Runs[0].StartYear, c.Runs[0].EndYear
	for _, p := range c.Runs[1:] {
		if p.StartYear < start {
			start = p.StartYear
		}
		if p.EndYear > end {
			end = p.EndYear
		}
	}
	return susi.SyntheticWeather(start, end, Cfg.GetFloat64("Lat"), Cfg.GetFloat64("Lon")), nil
}

// checkOutputDir expands any environment variables in the output
// directory and creates it if it does not exist.
func checkOutputDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf(`susi: you need to specify an output directory (for example: OutputDir="susi_output")`)
	}
	dir = os.ExpandEnv(dir)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return dir, fmt.Errorf("susi: creating the output directory: %v", err)
	}
	return dir, nil
}

// getStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func getStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		if v == "" {
			return nil, nil
		}
		o := make(map[string]string)
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("susi: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("susi: invalid type for %s: %#v", varName, i)
	}
}
