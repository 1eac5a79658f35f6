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

// Package susiutil contains the command-line interface of SUSI.
package susiutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/susi"
	"github.com/spatialmodel/susi/internal/hash"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	// Options are the configuration options available to SUSI.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages: debug, info,
              warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Params",
			usage: `
              Params is the path to a TOML file of site, stand and ditch
              scenario parameters. Parameters missing from the file keep
              their default values. It can include environment variables.
              If it is empty, the default parameters are used.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), describeCmd.Flags()},
		},
		{
			name: "Plan",
			usage: `
              Plan is the path to a TOML execution plan holding n_runs,
              n_parallel, random_seed and one [[runs]] table of parameters
              per run. If it is set, Params is ignored.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "Weather",
			usage: `
              Weather is the path to a CSV file of daily weather with the
              columns date, T, Prec, Rg, Par and vpd and optionally doy,
              lat and lon. If it is empty, a synthetic seasonal climate
              at Lat and Lon is used.`,
			shorthand:  "w",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Lat",
			usage: `
              Lat is the latitude of the site when synthetic weather is used.`,
			defaultVal: 61.8,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Lon",
			usage: `
              Lon is the longitude of the site when synthetic weather is used.`,
			defaultVal: 24.3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory where a folder is created for each
              experiment. Each run writes a NetCDF file to that folder.
              It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "susi_output",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be saved
              in the experiment folder.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DerivedOutputs",
			usage: `
              DerivedOutputs specifies additional annual output variables as
              expressions of the strip means of other annual variables, for
              example {"gwp": "methane_co2eq + co2_soil_balance"}. The results
              are named derived_<name>. Available functions are exp(x), log(x),
              sqrt(x), abs(x), min(x, y) and max(x, y).`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MassBalanceTolerance",
			usage: `
              MassBalanceTolerance is the canopy and moss water balance error
              [mm] above which a warning is logged.`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Catalog",
			usage: `
              Catalog is the path to a SQLite database where experiments and
              runs are recorded. If it is empty, catalog.db in OutputDir is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MetricsFile",
			usage: `
              MetricsFile is the path to a file where run metrics are written
              in the Prometheus text format when the experiment finishes, for
              collection by the node exporter. It is not written if empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Upload",
			usage: `
              Upload is an s3://bucket/prefix location where the experiment
              folder is copied when the experiment finishes. Credentials are
              read from the standard AWS environment variables and files.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "S3.Region",
			usage: `
              S3.Region is the region of the Upload bucket.`,
			defaultVal: "us-east-1",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "S3.Endpoint",
			usage: `
              S3.Endpoint optionally specifies an S3-compatible endpoint such
              as a MinIO server. Path-style addressing is used when it is set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SUSI")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(describeCmd)
	Root.AddCommand(planCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("susi: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("susi: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "susi",
	Short: "A peatland forest strip simulator.",
	Long: `SUSI simulates the hydrology, peat temperature, stand growth and soil
biogeochemistry of a drained peatland forest strip between two ditches at
a daily time step, for one or more ditch depth scenarios.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SUSI_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of SUSI.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "SUSI v%s\n", susi.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a simulation or an execution plan.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run simulates every ditch depth scenario of the parameters given by
--Params, or every run of the execution plan given by --Plan. The outputs
are written to a new experiment folder in OutputDir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := loadPlan()
		if err != nil {
			return err
		}
		w, err := loadWeather(plan)
		if err != nil {
			return err
		}
		outDir, err := checkOutputDir(Cfg.GetString("OutputDir"))
		if err != nil {
			return err
		}
		derived, err := getStringMapString("DerivedOutputs", Cfg)
		if err != nil {
			return err
		}
		_, err = Run(context.Background(), plan, w, RunConfig{
			OutputDir:            outDir,
			LogFile:              os.ExpandEnv(Cfg.GetString("LogFile")),
			Catalog:              os.ExpandEnv(Cfg.GetString("Catalog")),
			MetricsFile:          os.ExpandEnv(Cfg.GetString("MetricsFile")),
			Derived:              derived,
			MassBalanceTolerance: Cfg.GetFloat64("MassBalanceTolerance"),
			Upload:               os.ExpandEnv(Cfg.GetString("Upload")),
			S3Region:             Cfg.GetString("S3.Region"),
			S3Endpoint:           os.ExpandEnv(Cfg.GetString("S3.Endpoint")),
			Out:                  cmd.OutOrStdout(),
			Start:                time.Now(),
		})
		return err
	},
	DisableAutoGenTag: true,
}

// describeCmd prints a description of the site and scenarios.
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe the site and scenarios.",
	Long: `describe validates the parameters given by --Params and prints a
description of the site, its stand and the ditch depth scenarios.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadParams(Cfg.GetString("Params"))
		if err != nil {
			return err
		}
		p.Describe(cmd.OutOrStdout())
		return nil
	},
	DisableAutoGenTag: true,
}

// planCmd validates an execution plan.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Check an execution plan.",
	Long: `plan validates the execution plan given by --Plan and prints the
identifier of every run. Identical runs are rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Cfg.GetString("Plan") == "" {
			return fmt.Errorf("susi: no execution plan given; set --Plan")
		}
		c, err := loadPlan()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d runs, %d in parallel\n", c.NRuns, c.NParallel)
		for i, p := range c.Runs {
			fmt.Fprintf(out, "%s  %d-%d  %d scenarios  %s\n", c.RunID(i), p.StartYear, p.EndYear,
				len(p.ScenarioName), hash.Hash(p))
		}
		return nil
	},
	DisableAutoGenTag: true,
}
