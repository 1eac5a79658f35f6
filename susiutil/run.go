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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/susi"
	"github.com/spatialmodel/susi/internal/catalog"
	"github.com/spatialmodel/susi/internal/hash"
	"golang.org/x/sync/errgroup"
)

// RunConfig holds the settings of an experiment that are not model
// parameters.
type RunConfig struct {
	// OutputDir is the directory where the experiment folder is created.
	OutputDir string

	// LogFile is the path of the log file. If it is empty, susi.log in
	// the experiment folder is used.
	LogFile string

	// Catalog is the path of the run catalog. If it is empty,
	// catalog.db in OutputDir is used.
	Catalog string

	// MetricsFile, if not empty, receives the run metrics in the
	// Prometheus text format.
	MetricsFile string

	// Derived are additional annual output expressions.
	Derived map[string]string

	// MassBalanceTolerance [mm] is the canopy water balance error above
	// which a warning is logged.
	MassBalanceTolerance float64

	// Upload, if not empty, is an s3:// location the experiment folder
	// is copied to.
	Upload               string
	S3Region, S3Endpoint string

	// Out receives the log messages in addition to the log file.
	Out io.Writer

	// Start is the start time of the experiment.
	Start time.Time

	uploader *Uploader // overrides the uploader created from the S3 settings
}

// Run runs every simulation of plan with weather w, at most
// plan.NParallel at a time. Each run writes <run id>.nc to the
// experiment folder and is recorded in the catalog. The first failing
// run cancels the runs that have not started yet.
func Run(ctx context.Context, plan *susi.ExecutionConfig, w *susi.Weather, cfg RunConfig) (susi.Experiment, error) {
	exp := plan.NewExperiment(cfg.OutputDir, cfg.Start)
	if err := os.MkdirAll(exp.Folder, os.ModePerm); err != nil {
		return exp, fmt.Errorf("susi: creating experiment folder: %w", err)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = filepath.Join(exp.Folder, "susi.log")
	}
	lf, err := os.Create(logFile)
	if err != nil {
		return exp, fmt.Errorf("susi: problem creating log file: %w", err)
	}
	defer lf.Close()
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(out, lf))
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	logger.SetLevel(logrus.GetLevel())
	log := logger.WithField("experiment", exp.ID)
	log.Infof("SUSI v%s: %d runs, %d in parallel", susi.Version, plan.NRuns, plan.NParallel)

	catPath := cfg.Catalog
	if catPath == "" {
		catPath = filepath.Join(cfg.OutputDir, "catalog.db")
	}
	cat, err := catalog.Open(catPath)
	if err != nil {
		return exp, err
	}
	defer cat.Close()
	if err := cat.AddExperiment(ctx, catalog.Experiment{
		ID: exp.ID, Folder: exp.Folder, NRuns: plan.NRuns, Started: exp.Start,
	}); err != nil {
		return exp, err
	}

	m := newMetrics()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(plan.NParallel)
	for i, p := range plan.Runs {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return runOne(gctx, runSpec{
				id:  plan.RunID(i),
				exp: exp,
				p:   p,
				w:   w,
				cfg: &cfg,
				log: log,
				cat: cat,
				m:   m,
			})
		})
	}
	runErr := g.Wait()

	if err := cat.FinishExperiment(ctx, exp.ID, time.Now()); err != nil && runErr == nil {
		runErr = err
	}
	if cfg.MetricsFile != "" {
		if err := m.write(cfg.MetricsFile); err != nil && runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		log.WithError(runErr).Error("experiment failed")
		return exp, runErr
	}
	if cfg.Upload != "" {
		u := cfg.uploader
		if u == nil {
			if u, err = NewUploader(ctx, cfg.S3Region, cfg.S3Endpoint); err != nil {
				return exp, err
			}
		}
		lf.Sync()
		keys, err := u.UploadDir(ctx, exp.Folder, cfg.Upload)
		if err != nil {
			return exp, err
		}
		log.Infof("uploaded %d files to %s", len(keys), cfg.Upload)
	}
	log.Info("experiment finished")
	return exp, nil
}

type runSpec struct {
	id  string
	exp susi.Experiment
	p   *susi.Params
	w   *susi.Weather
	cfg *RunConfig
	log *logrus.Entry
	cat *catalog.Catalog
	m   *metrics
}

// runOne simulates one parameter set and records the outcome.
func runOne(ctx context.Context, r runSpec) error {
	log := r.log.WithField("run", r.id)
	path := filepath.Join(r.exp.Folder, r.id+".nc")
	rec := catalog.Run{
		Experiment: r.exp.ID,
		ID:         r.id,
		ParamsHash: hash.Hash(r.p),
		Output:     path,
		Status:     catalog.Running,
	}
	if err := r.cat.RecordRun(ctx, rec); err != nil {
		return err
	}
	start := time.Now()
	err := simulate(r.p, r.w, path, r.cfg, log)
	rec.Seconds = time.Since(start).Seconds()
	rec.Status = catalog.Finished
	if err != nil {
		rec.Status, rec.Message = catalog.Failed, err.Error()
		log.WithError(err).Error("run failed")
	} else {
		log.WithField("seconds", rec.Seconds).Info("run finished")
	}
	r.m.observe(rec.Status, rec.Seconds, r.p.Years()*len(r.p.ScenarioName))
	if cerr := r.cat.RecordRun(ctx, rec); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", r.id, err)
	}
	return nil
}

func simulate(p *susi.Params, w *susi.Weather, path string, cfg *RunConfig, log *logrus.Entry) error {
	d, err := susi.OutputDims(p, w)
	if err != nil {
		return err
	}
	o, err := susi.NewOutputs(d, path, cfg.Derived)
	if err != nil {
		return err
	}
	progress := log.WriterLevel(logrus.DebugLevel)
	defer progress.Close()
	funcs := []susi.YearManipulator{susi.Log(progress)}
	if cfg.MassBalanceTolerance > 0 {
		funcs = append(funcs, susi.MassBalanceCheck(cfg.MassBalanceTolerance))
	}
	s, err := susi.New(p, w,
		susi.WithLogger(log),
		susi.WithOutputs(o),
		susi.WithYearFuncs(funcs...),
	)
	if err != nil {
		o.Close()
		return err
	}
	if err := s.Run(); err != nil {
		o.Close()
		return err
	}
	return o.Close()
}
