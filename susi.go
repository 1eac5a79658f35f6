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

// Package susi simulates the hydrology, peat temperature, stand growth
// and soil biogeochemistry of a drained peatland forest strip between
// two parallel ditches at a daily time step.
package susi

import (
	"fmt"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/susi/science/canopy"
	"github.com/spatialmodel/susi/science/esom"
	"github.com/spatialmodel/susi/science/fertilization"
	"github.com/spatialmodel/susi/science/gvegetation"
	"github.com/spatialmodel/susi/science/methane"
	"github.com/spatialmodel/susi/science/respiration"
	"github.com/spatialmodel/susi/science/stand"
	"github.com/spatialmodel/susi/science/strip"
	"github.com/spatialmodel/susi/science/temperature"
	"gonum.org/v1/gonum/floats"
)

// Version is the version of the model.
const Version = "0.1.0"

const (
	secondsPerDay = 86400.0

	// litterCO2 converts litter dry mass to the CO2 its carbon forms.
	litterCO2 = 0.5 * 44.0 / 12.0
)

// Susi holds the sub-models of a strip simulation.
type Susi struct {
	p         *Params
	w         *Weather
	scenarios []Scenario

	log       logrus.FieldLogger
	out       *Outputs
	yearFuncs []YearManipulator
	table     stand.Table

	stand *stand.Stand
	gv    *gvegetation.Gvegetation
	esoms []*esom.Esom // in the order of esom.Substances
	cpy   *canopy.CanopyGrid
	moss  *canopy.MossLayer
	strip *strip.Hydrology
	temp  *temperature.PeatTemperature
	fert  *fertilization.Fertilization
	ch4   *methane.Methane

	stripOut *strip.OutArrays
	cpyOut   *canopy.OutArrays

	z   []float64 // peat temperature layer depths [m]

	// vegMass is the vegetation dry mass [kg ha-1] at the end of the
	// previous year, see vegetationMass.
	vegMass []float64
	day int       // offset of the current day in the weather
}

// Option configures a simulation.
type Option func(*Susi)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Susi) { s.log = l }
}

// WithOutputs sets the output holder, which must have been created
// with dimensions matching the parameters and weather.
func WithOutputs(o *Outputs) Option {
	return func(s *Susi) { s.out = o }
}

// WithYearFuncs adds functions to run at the end of every year.
func WithYearFuncs(f ...YearManipulator) Option {
	return func(s *Susi) { s.yearFuncs = append(s.yearFuncs, f...) }
}

// WithGrowthTable sets the stand growth table. By default the table is
// read from Params.MottiFile or, if that is empty, the built-in table
// is used.
func WithGrowthTable(t stand.Table) Option {
	return func(s *Susi) { s.table = t }
}

// OutputDims returns the output dimensions of a simulation of p with
// weather w.
func OutputDims(p *Params, w *Weather) (Dims, error) {
	ws, err := w.Slice(p.StartYear, p.EndYear)
	if err != nil {
		return Dims{}, fmt.Errorf("susi: %w: %v", ErrConfig, err)
	}
	return Dims{
		Scenarios:     len(p.ScenarioName),
		Days:          ws.Len(),
		Years:         p.Years(),
		Nodes:         p.N,
		Layers:        p.NLyrs,
		ScenarioNames: append([]string(nil), p.ScenarioName...),
	}, nil
}

// New validates p, checks that w covers the simulated years and
// creates every sub-model.
func New(p *Params, w *Weather, opts ...Option) (*Susi, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	d, err := OutputDims(p, w)
	if err != nil {
		return nil, err
	}
	ws, _ := w.Slice(p.StartYear, p.EndYear)
	s := &Susi{
		p:         p,
		w:         ws,
		scenarios: p.Scenarios(),
		log:       logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.out == nil {
		if s.out, err = NewOutputs(d, "", nil); err != nil {
			return nil, err
		}
	} else if od := s.out.Dims(); od.Scenarios != d.Scenarios || od.Days != d.Days ||
		od.Years != d.Years || od.Nodes != d.Nodes || od.Layers != d.Layers {
		return nil, fmt.Errorf("susi: output dimensions %+v do not match simulation %+v: %w", od, d, ErrDimension)
	}
	if s.table == nil {
		if p.MottiFile != "" {
			t, err := stand.ReadMottiXLSX(p.MottiFile)
			if err != nil {
				return nil, fmt.Errorf("susi: %w: %v", ErrConfig, err)
			}
			s.table = t
		} else {
			s.table = stand.DefaultTable{}
		}
	}

	if s.stand, err = stand.New(p.standConfig(), s.table); err != nil {
		return nil, fmt.Errorf("susi: creating stand: %w", err)
	}
	if s.gv, err = gvegetation.New(p.N, ws.Lat, p.SFC); err != nil {
		return nil, fmt.Errorf("susi: creating ground vegetation: %w", err)
	}
	for _, sub := range esom.Substances {
		e, err := esom.New(p.esomConfig(), sub, p.N)
		if err != nil {
			return nil, fmt.Errorf("susi: creating decomposition of %s: %w", sub, err)
		}
		s.esoms = append(s.esoms, e)
	}
	s.cpy = canopy.NewCanopyGrid(p.Canopy, p.N)
	s.moss = canopy.NewMossLayer(p.Moss, p.N)
	if s.strip, err = strip.New(p.stripConfig()); err != nil {
		return nil, fmt.Errorf("susi: creating strip: %w", err)
	}
	if s.temp, err = temperature.New(p.NLyrs, p.DzLyr, ws.MeanTemperature(), p.TemperatureSolveMode); err != nil {
		return nil, fmt.Errorf("susi: creating peat temperature: %w", err)
	}
	s.z = s.temp.Z()
	if s.fert, err = fertilization.New(p.Fertilization); err != nil {
		return nil, fmt.Errorf("susi: %w: %v", ErrConfig, err)
	}
	s.ch4 = methane.New(p.N, p.Years())
	s.stripOut = strip.NewOutArrays(len(s.scenarios), ws.Len(), p.N)
	s.cpyOut = canopy.NewOutArrays(len(s.scenarios), ws.Len(), p.N)
	return s, nil
}

// Params returns the simulation parameters.
func (s *Susi) Params() *Params { return s.p }

// Weather returns the weather of the simulated years.
func (s *Susi) Weather() *Weather { return s.w }

// Outputs returns the simulation results.
func (s *Susi) Outputs() *Outputs { return s.out }

// Stand returns the tree stand in its current state.
func (s *Susi) Stand() *stand.Stand { return s.stand }

// Run simulates every scenario in turn. It stops at the first error,
// which is a *SimulationError unless writing the outputs failed.
func (s *Susi) Run() error {
	for r := range s.scenarios {
		if err := s.runScenario(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Susi) runScenario(r int) error {
	sc := s.scenarios[r]
	fail := func(yr, d int, err error) error {
		return &SimulationError{Scenario: sc.Name, Year: yr, Day: d, Err: err}
	}
	log := s.log.WithField("scenario", sc.Name)
	log.Info("starting scenario")

	if err := s.reset(); err != nil {
		return fail(s.p.StartYear, -1, err)
	}
	if err := s.writeScenario(r, sc); err != nil {
		return err
	}

	length := s.w.Len()
	hWest := strip.DrainDepthDevelopment(length, sc.DitchDepthWest, sc.DitchDepth20yWest)
	hEast := strip.DrainDepthDevelopment(length, sc.DitchDepthEast, sc.DitchDepth20yEast)

	for y := 1; y <= s.p.Years(); y++ {
		yr := s.p.StartYear + y - 1
		start, days, err := s.w.Year(yr)
		if err != nil {
			return fail(yr, -1, err)
		}
		if err := s.cpy.UpdateAmax(s.stand.NutStat); err != nil {
			return fail(yr, -1, err)
		}
		peatT := make([][]float64, days)
		for dd := 0; dd < days; dd++ {
			s.day = start + dd
			if peatT[dd], err = s.runDay(r, s.day, hWest[s.day], hEast[s.day]); err != nil {
				return fail(yr, s.w.Day(s.day).Doy, err)
			}
		}
		if err := s.yearEnd(r, y, yr, start, days, peatT); err != nil {
			return fail(yr, -1, err)
		}
		for _, f := range s.yearFuncs {
			if err := f(s, r, y); err != nil {
				return fail(yr, -1, err)
			}
		}
		if err := s.out.FlushYear(r, y, start, days); err != nil {
			return err
		}
		log.WithField("year", yr).Debug("finished year")
	}
	return nil
}

// reset returns every sub-model to its initial state and runs the
// ground vegetation once for the initial stand.
func (s *Susi) reset() error {
	if err := s.stand.Reset(); err != nil {
		return err
	}
	s.gv.Reset()
	ts, err := s.w.TemperatureSum(s.p.StartYear)
	if err != nil {
		return err
	}
	if err := s.runGvegetation(ts); err != nil {
		return err
	}
	for _, e := range s.esoms {
		e.Reset()
	}
	s.cpy.Reset()
	s.moss.Reset()
	s.strip.Reset()
	s.temp.Reset()
	s.fert.Reset()
	s.day = 0
	return nil
}

func (s *Susi) runGvegetation(ts float64) error {
	return s.gv.Run(s.stand.BasalArea, s.stand.Stems, s.stand.Volume,
		s.stand.Dominant.Species, ts, s.stand.Dominant.Age)
}

// runDay advances the canopy, moss, strip and peat temperature by day
// d and returns the peat temperature profile.
func (s *Susi) runDay(r, d int, hWest, hEast float64) ([]float64, error) {
	rec := s.w.Day(d)
	rew := canopy.RewDryLimit(s.strip.WaterTable())
	f, err := s.cpy.RunTimestep(canopy.Forcing{
		Doy:  rec.Doy,
		Dt:   secondsPerDay,
		Ta:   rec.T,
		Prec: rec.Prec * mmDayToMMs,
		Rg:   rec.Rg,
		Par:  rec.Par,
		Vpd:  rec.Vpd,
		Hc:   s.stand.Hdom,
		LAI:  s.stand.LeafArea,
		Rew:  rew,
		Beta: s.moss.Ree(),
	})
	if err != nil {
		return nil, err
	}
	potinf, efloor, mbe, err := s.moss.Interception(f.PotInf, f.Efloor)
	if err != nil {
		return nil, err
	}
	deltas := make([]float64, s.p.N)
	for i := range deltas {
		deltas[i] = (potinf[i] - f.Transpi[i]) * mmToM
	}
	if err := s.strip.RunTimestep(d, hWest, hEast, deltas, s.moss); err != nil {
		return nil, err
	}
	_, t, err := s.temp.RunTimestep(rec.T, stats.StatsMean(f.SWE)*mmToM, stats.StatsMean(efloor)*mmToM)
	if err != nil {
		return nil, err
	}

	s.stripOut.Update(r, d, s.strip)
	s.cpyOut.Update(r, d, f, efloor)
	floats.Add(mbe, f.MBE)
	flux := s.strip.Discharge()
	o := recorder{o: s.out}
	o.daily("strip_dwts", r, d, s.strip.WaterTable())
	o.daily("strip_afp", r, d, s.strip.AirFilledPorosity())
	o.daily("strip_deltas", r, d, deltas)
	o.daily("strip_runoff", r, d, s.strip.Runoff())
	o.dailyScalar("strip_west", r, d, flux.West)
	o.dailyScalar("strip_east", r, d, flux.East)
	o.dailyScalar("strip_surface", r, d, flux.Surface)
	o.dailyScalar("strip_ditch_west", r, d, hWest)
	o.dailyScalar("strip_ditch_east", r, d, hEast)
	o.daily("cpy_interc", r, d, f.Interc)
	o.daily("cpy_evap", r, d, f.Evap)
	o.daily("cpy_ET", r, d, f.ET)
	o.daily("cpy_transpi", r, d, f.Transpi)
	o.daily("cpy_efloor", r, d, efloor)
	o.daily("cpy_SWE", r, d, f.SWE)
	o.daily("cpy_mbe", r, d, mbe)
	o.daily("moss_storage", r, d, s.moss.Storage())
	o.daily("peat_temperature", r, d, t)
	return t, o.err
}

// yearEnd runs the annual sub-models in their fixed order and records
// the annual outputs of year index y.
func (s *Susi) yearEnd(r, y, yr, start, days int, peatT [][]float64) error {
	wts := s.stripOut.WaterTables(r, start, days)
	afps := s.stripOut.AirFilledPorosities(r, start, days)
	ta := s.w.temperatures(start, days)
	doy := make([]int, days)
	for i := range doy {
		doy[i] = s.w.Day(start + i).Doy
	}

	residence, err := s.strip.ResidenceTime(wts)
	if err != nil {
		return err
	}
	rhet, err := respiration.HeterotrophicYr(peatT, s.z, wts, s.stand.Volume)
	if err != nil {
		return err
	}
	ojanen, err := respiration.Ojanen2019(doy, wts)
	if err != nil {
		return err
	}

	ts, err := s.w.TemperatureSum(yr)
	if err != nil {
		return err
	}
	if err := s.runGvegetation(ts); err != nil {
		return err
	}

	if err := s.stand.Assimilate(ta, wts, afps); err != nil {
		return err
	}
	if err := s.stand.Update(); err != nil {
		return err
	}
	if yr == s.p.CuttingYear {
		if err := s.stand.Cutting(yr, s.p.CuttingToBA); err != nil {
			return err
		}
		s.stand.UpdateLresid()
	}

	var ph float64
	if yr >= s.fert.ApplicationYear() {
		ph = s.fert.PHEffect(yr)
		for _, e := range s.esoms {
			e.UpdateSoilPH(ph)
		}
	}
	release := s.fert.NutrientRelease(yr)

	in := esom.YearInput{AirT: ta, PeatT: peatT, Z: s.z, WT: wts}
	discharge := s.stripOut.YearDischarge(r, start, days)
	var litterMass []float64
	for k, e := range s.esoms {
		nw, w := s.stand.TotalLitter(stand.Element(k))
		floats.Add(nw, s.gv.Litter.NonWoody[k])
		floats.Add(w, s.gv.Litter.Woody[k])
		if k == int(stand.Mass) {
			litterMass = make([]float64, len(nw))
			floats.AddTo(litterMass, nw, w)
		}
		floats.Scale(kgHaToKgM2, nw)
		floats.Scale(kgHaToKgM2, w)
		in.NonWoody, in.Woody = nw, w
		if err := e.RunYr(in); err != nil {
			return err
		}
		if e.Substance() == esom.Mass {
			if err := e.ComposeExport(discharge); err != nil {
				return err
			}
		}
	}

	depo := [stand.NElements]float64{0, s.p.DepoN, s.p.DepoP, s.p.DepoK}
	fert := [stand.NElements]float64{0, release.N, release.P, release.K}
	var supply [stand.NElements][]float64
	for e := stand.N; e < stand.NElements; e++ {
		supply[e] = s.esoms[e].OutRootLyr()
		for i := range supply[e] {
			supply[e][i] += depo[e] + fert[e]
		}
	}
	if err := s.stand.UpdateNutrientStatus(s.gv, supply[stand.N], supply[stand.P], supply[stand.K]); err != nil {
		return err
	}

	ch4, ch4Mean, ch4CO2, err := s.ch4.RunCH4Yr(yr, wts)
	if err != nil {
		return err
	}

	o := recorder{o: s.out}
	s.writeStand(&o, r, y)
	s.writeGvegetation(&o, r, y)
	s.writeEsom(&o, r, y)
	o.annual("strip_residence_time", r, y, residence)
	west, east := discharge.AnnualDischarge()
	o.annualScalar("strip_discharge_west", r, y, west)
	o.annualScalar("strip_discharge_east", r, y, east)
	o.annual("strip_water_table_avg", r, y, columnMeans(wts))
	o.annualScalar("temp_sum", r, y, ts)
	o.annual("co2_rhet", r, y, rhet)
	o.annual("co2_ojanen2019", r, y, ojanen)
	co2 := s.esoms[0].CO2()
	for i := range co2 {
		co2[i] -= litterMass[i] * litterCO2
	}
	o.annual("co2_soil_balance", r, y, co2)
	mass := s.vegetationMass()
	eco := make([]float64, len(co2))
	for i := range eco {
		eco[i] = co2[i] - (mass[i]-s.vegMass[i])*litterCO2 + ch4[i]*methane.GWP100
	}
	s.vegMass = mass
	o.annual("co2_ecosystem_balance", r, y, eco)
	o.annual("methane_ch4", r, y, ch4)
	o.annualScalar("methane_mean", r, y, ch4Mean)
	o.annualScalar("methane_co2eq", r, y, ch4CO2)
	exp := s.esoms[0].Export()
	o.annualScalar("export_doc_west", r, y, exp.West.DOC)
	o.annualScalar("export_doc_east", r, y, exp.East.DOC)
	o.annualScalar("export_hmw_west", r, y, exp.West.HMW)
	o.annualScalar("export_hmw_east", r, y, exp.East.HMW)
	o.annualScalar("export_lmw_west", r, y, exp.West.LMW)
	o.annualScalar("export_lmw_east", r, y, exp.East.LMW)
	o.annualScalar("fert_ph_effect", r, y, ph)
	o.annual("cpy_ET_yr", r, y, s.cpyOut.YearSum(s.cpyOut.ETs, r, start, days))
	o.annual("cpy_transpi_yr", r, y, s.cpyOut.YearSum(s.cpyOut.Transpis, r, start, days))

	gn, gp, gk := s.gv.Uptake()
	gvUp := [stand.NElements][]float64{nil, gn, gp, gk}
	for e := stand.N; e < stand.NElements; e++ {
		p := "balance_" + e.String() + "_"
		n := s.p.N
		o.annual(p+"release", r, y, s.esoms[e].OutRootLyr())
		o.annual(p+"depo", r, y, constant(n, depo[e]))
		o.annual(p+"fert", r, y, constant(n, fert[e]))
		o.annual(p+"demand", r, y, s.stand.Demand[e])
		o.annual(p+"leaf_demand", r, y, s.stand.LeafDemand[e])
		o.annual(p+"gv_uptake", r, y, gvUp[e])
		net := make([]float64, n)
		for i := range net {
			net[i] = supply[e][i] - s.stand.Demand[e][i] - s.stand.LeafDemand[e][i] - gvUp[e][i]
		}
		o.annual(p+"net", r, y, net)
	}
	if o.err != nil {
		return o.err
	}
	s.stand.ResetLresid()
	return nil
}

// writeScenario records the scenario description and the initial
// state as year index 0.
func (s *Susi) writeScenario(r int, sc Scenario) error {
	o := recorder{o: s.out}
	o.scenario("ditch_depth_west", r, sc.DitchDepthWest)
	o.scenario("ditch_depth_east", r, sc.DitchDepthEast)
	o.scenario("ditch_depth_20y_west", r, sc.DitchDepth20yWest)
	o.scenario("ditch_depth_20y_east", r, sc.DitchDepth20yEast)
	s.writeStand(&o, r, 0)
	s.writeGvegetation(&o, r, 0)
	s.writeEsom(&o, r, 0)
	if o.err != nil {
		return o.err
	}
	s.vegMass = s.vegetationMass()
	return s.out.FlushScenario(r)
}

// vegetationMass returns the dry mass [kg ha-1] of the tree stand,
// the ground vegetation and the stems harvested since the scenario
// started. Harvested wood is not an emission.
func (s *Susi) vegetationMass() []float64 {
	m := s.stand.Biomass()
	floats.Add(m, s.stand.HarvestedBiomass())
	floats.Add(m, s.gv.Biomass)
	return m
}

func (s *Susi) writeStand(o *recorder, r, y int) {
	st := s.stand
	o.annual("stand_hdom", r, y, st.Hdom)
	o.annual("stand_lai", r, y, st.LeafArea)
	o.annual("stand_basalarea", r, y, st.BasalArea)
	o.annual("stand_volume", r, y, st.Volume)
	o.annual("stand_stems", r, y, st.Stems)
	o.annual("stand_growth", r, y, st.Growth())
	o.annual("stand_nut_stat", r, y, st.NutStat)
	nw, w := st.TotalLitter(stand.Mass)
	o.annual("stand_nw_litter", r, y, nw)
	o.annual("stand_w_litter", r, y, w)
	lresid := make([]float64, s.p.N)
	floats.AddTo(lresid, st.Lresid.NonWoody[stand.Mass], st.Lresid.Woody[stand.Mass])
	o.annual("stand_lresid", r, y, lresid)
	harvested := make([]float64, s.p.N)
	for _, l := range st.Layers() {
		floats.Add(harvested, l.Harvested)
		o.annual(l.Name+"_age", r, y, l.Age)
		o.annual(l.Name+"_hdom", r, y, l.Hdom)
		o.annual(l.Name+"_ba", r, y, l.BA)
		o.annual(l.Name+"_volume", r, y, l.Volume)
		o.annual(l.Name+"_lai", r, y, l.LAI)
	}
	o.annual("stand_harvested", r, y, harvested)
}

func (s *Susi) writeGvegetation(o *recorder, r, y int) {
	o.annual("gv_biomass", r, y, s.gv.Biomass)
	o.annual("gv_nw_litter", r, y, s.gv.Litter.NonWoody[stand.Mass])
	o.annual("gv_w_litter", r, y, s.gv.Litter.Woody[stand.Mass])
}

func (s *Susi) writeEsom(o *recorder, r, y int) {
	for _, e := range s.esoms {
		p := "esom_" + string(e.Substance()) + "_"
		o.annual(p+"total", r, y, e.Total())
		o.annual(p+"out_root_lyr", r, y, e.OutRootLyr())
		o.annual(p+"out_below_root_lyr", r, y, e.OutBelowRootLyr())
		o.annual(p+"storage_change", r, y, e.StorageChange())
		for j := esom.L0L; j < esom.NCompartments; j++ {
			o.annual(p+j.String(), r, y, e.Storage(j))
		}
	}
}

// recorder writes to the outputs and keeps the first error.
type recorder struct {
	o   *Outputs
	err error
}

func (w *recorder) daily(name string, r, d int, v []float64) {
	if w.err == nil {
		w.err = w.o.SetDaily(name, r, d, v)
	}
}

func (w *recorder) dailyScalar(name string, r, d int, v float64) {
	if w.err == nil {
		w.err = w.o.SetDailyScalar(name, r, d, v)
	}
}

func (w *recorder) annual(name string, r, y int, v []float64) {
	if w.err == nil {
		w.err = w.o.SetAnnual(name, r, y, v)
	}
}

func (w *recorder) annualScalar(name string, r, y int, v float64) {
	if w.err == nil {
		w.err = w.o.SetAnnualScalar(name, r, y, v)
	}
}

func (w *recorder) scenario(name string, r int, v float64) {
	if w.err == nil {
		w.err = w.o.SetScenario(name, r, v)
	}
}

// columnMeans returns the mean of every column of a days × nodes series.
func columnMeans(a [][]float64) []float64 {
	m := make([]float64, len(a[0]))
	for _, row := range a {
		floats.Add(m, row)
	}
	floats.Scale(1/float64(len(a)), m)
	return m
}

func constant(n int, v float64) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = v
	}
	return c
}
