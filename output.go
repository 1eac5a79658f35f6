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
	"os"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/susi/science/esom"
)

// Shape is the dimensionality of an output variable.
type Shape int

const (
	DailyNode   Shape = iota // scenario × day × node
	DailyLayer               // scenario × day × peat layer
	Daily                    // scenario × day
	AnnualNode               // scenario × year × node
	Annual                   // scenario × year
	PerScenario              // scenario
)

func (s Shape) dims() []string {
	switch s {
	case DailyNode:
		return []string{"scen", "day", "node"}
	case DailyLayer:
		return []string{"scen", "day", "lyr"}
	case Daily:
		return []string{"scen", "day"}
	case AnnualNode:
		return []string{"scen", "yr", "node"}
	case Annual:
		return []string{"scen", "yr"}
	case PerScenario:
		return []string{"scen"}
	}
	panic(fmt.Errorf("susi: invalid shape %d", int(s)))
}

// Variable describes an output variable.
type Variable struct {
	Shape       Shape
	Description string
	Units       string
}

// Dims holds the sizes of the output dimensions. Years is the number
// of simulated years; the yr dimension has one more entry holding the
// initial state.
type Dims struct {
	Scenarios, Days, Years, Nodes, Layers int

	// ScenarioNames optionally names the scenarios in the file.
	ScenarioNames []string
}

func (d Dims) lengths(s Shape) []int {
	switch s {
	case DailyNode:
		return []int{d.Scenarios, d.Days, d.Nodes}
	case DailyLayer:
		return []int{d.Scenarios, d.Days, d.Layers}
	case Daily:
		return []int{d.Scenarios, d.Days}
	case AnnualNode:
		return []int{d.Scenarios, d.Years + 1, d.Nodes}
	case Annual:
		return []int{d.Scenarios, d.Years + 1}
	case PerScenario:
		return []int{d.Scenarios}
	}
	panic(fmt.Errorf("susi: invalid shape %d", int(s)))
}

// OutputVariables returns the variables written by a simulation.
func OutputVariables() map[string]Variable {
	v := map[string]Variable{
		"strip_dwts":       {DailyNode, "Water table depth, negative below the ground surface", "m"},
		"strip_afp":        {DailyNode, "Air-filled porosity of the root zone", "m3 m-3"},
		"strip_deltas":     {DailyNode, "Net water input to the peat", "m d-1"},
		"strip_runoff":     {DailyNode, "Surface runoff", "m d-1"},
		"strip_west":       {Daily, "Lateral discharge to the west ditch", "m3 m-1 d-1"},
		"strip_east":       {Daily, "Lateral discharge to the east ditch", "m3 m-1 d-1"},
		"strip_surface":    {Daily, "Surface runoff from the strip", "m3 m-1 d-1"},
		"strip_ditch_west": {Daily, "West ditch water level", "m"},
		"strip_ditch_east": {Daily, "East ditch water level", "m"},

		"strip_residence_time":  {AnnualNode, "Mean residence time of water discharged through the node", "d"},
		"strip_discharge_west":  {Annual, "Annual discharge to the west ditch, half the surface runoff included", "m3 m-1 yr-1"},
		"strip_discharge_east":  {Annual, "Annual discharge to the east ditch, half the surface runoff included", "m3 m-1 yr-1"},
		"strip_water_table_avg": {AnnualNode, "Mean annual water table depth", "m"},

		"cpy_interc":   {DailyNode, "Canopy interception storage", "mm"},
		"cpy_evap":     {DailyNode, "Evaporation of intercepted water", "mm d-1"},
		"cpy_ET":       {DailyNode, "Evapotranspiration", "mm d-1"},
		"cpy_transpi":  {DailyNode, "Transpiration", "mm d-1"},
		"cpy_efloor":   {DailyNode, "Forest floor evaporation", "mm d-1"},
		"cpy_SWE":      {DailyNode, "Snow water equivalent", "mm"},
		"cpy_mbe":      {DailyNode, "Canopy and moss mass balance error", "mm"},
		"moss_storage": {DailyNode, "Moss layer water storage", "mm"},

		"cpy_ET_yr":      {AnnualNode, "Annual evapotranspiration", "mm yr-1"},
		"cpy_transpi_yr": {AnnualNode, "Annual transpiration", "mm yr-1"},

		"peat_temperature": {DailyLayer, "Peat temperature at the layer centre", "°C"},
		"temp_sum":         {Annual, "Temperature sum above 5 °C", "degree days"},

		"stand_hdom":      {AnnualNode, "Dominant height", "m"},
		"stand_lai":       {AnnualNode, "Leaf area index", "m2 m-2"},
		"stand_basalarea": {AnnualNode, "Basal area", "m2 ha-1"},
		"stand_volume":    {AnnualNode, "Stem volume", "m3 ha-1"},
		"stand_stems":     {AnnualNode, "Stem count", "ha-1"},
		"stand_growth":    {AnnualNode, "Growth modifier relative to the growth table", "-"},
		"stand_nut_stat":  {AnnualNode, "Nutrient status, supply relative to demand of the most limiting nutrient", "-"},
		"stand_nw_litter": {AnnualNode, "Non-woody litter including mortality and logging residues", "kg ha-1 yr-1"},
		"stand_w_litter":  {AnnualNode, "Woody litter including mortality and logging residues", "kg ha-1 yr-1"},
		"stand_lresid":    {AnnualNode, "Logging residues", "kg ha-1 yr-1"},
		"stand_harvested": {AnnualNode, "Harvested stem volume", "m3 ha-1"},

		"gv_biomass":   {AnnualNode, "Ground vegetation biomass", "kg ha-1"},
		"gv_nw_litter": {AnnualNode, "Ground vegetation non-woody litter", "kg ha-1 yr-1"},
		"gv_w_litter":  {AnnualNode, "Ground vegetation woody litter", "kg ha-1 yr-1"},

		"co2_rhet":              {AnnualNode, "Heterotrophic soil respiration", "kg CO2 ha-1 yr-1"},
		"co2_ojanen2019":        {AnnualNode, "Soil CO2 balance from the summer water table, positive is a loss", "kg CO2 ha-1 yr-1"},
		"co2_soil_balance":      {AnnualNode, "Decomposition CO2 less litter input, positive is a loss", "kg CO2 ha-1 yr-1"},
		"co2_ecosystem_balance": {AnnualNode, "Soil CO2 balance less vegetation and harvest mass gain plus methane CO2 equivalents, positive is a loss", "kg CO2 ha-1 yr-1"},

		"methane_ch4":   {AnnualNode, "Methane flux", "kg CH4 ha-1 yr-1"},
		"methane_mean":  {Annual, "Strip mean methane flux", "kg CH4 ha-1 yr-1"},
		"methane_co2eq": {Annual, "Strip mean methane flux as CO2 equivalents", "kg CO2 ha-1 yr-1"},

		"export_doc_west": {Annual, "Dissolved organic carbon to the west ditch", "kg C ha-1 yr-1"},
		"export_doc_east": {Annual, "Dissolved organic carbon to the east ditch", "kg C ha-1 yr-1"},
		"export_hmw_west": {Annual, "High molecular weight DOC to the west ditch", "kg C ha-1 yr-1"},
		"export_hmw_east": {Annual, "High molecular weight DOC to the east ditch", "kg C ha-1 yr-1"},
		"export_lmw_west": {Annual, "Low molecular weight DOC to the west ditch", "kg C ha-1 yr-1"},
		"export_lmw_east": {Annual, "Low molecular weight DOC to the east ditch", "kg C ha-1 yr-1"},

		"fert_ph_effect": {Annual, "Soil pH increase from fertilization", "pH"},

		"ditch_depth_west":     {PerScenario, "Initial west ditch depth", "m"},
		"ditch_depth_east":     {PerScenario, "Initial east ditch depth", "m"},
		"ditch_depth_20y_west": {PerScenario, "West ditch depth after 20 years", "m"},
		"ditch_depth_20y_east": {PerScenario, "East ditch depth after 20 years", "m"},
	}
	for _, l := range []string{"dominant", "subdominant", "under"} {
		v[l+"_age"] = Variable{AnnualNode, "Age of the " + l + " layer", "yr"}
		v[l+"_hdom"] = Variable{AnnualNode, "Dominant height of the " + l + " layer", "m"}
		v[l+"_ba"] = Variable{AnnualNode, "Basal area of the " + l + " layer", "m2 ha-1"}
		v[l+"_volume"] = Variable{AnnualNode, "Stem volume of the " + l + " layer", "m3 ha-1"}
		v[l+"_lai"] = Variable{AnnualNode, "Leaf area index of the " + l + " layer", "m2 m-2"}
	}
	for _, s := range esom.Substances {
		p := "esom_" + string(s) + "_"
		v[p+"total"] = Variable{AnnualNode, "Organic " + string(s) + " storage", "kg m-2"}
		v[p+"out_root_lyr"] = Variable{AnnualNode, string(s) + " released in the root layer", "kg ha-1 yr-1"}
		v[p+"out_below_root_lyr"] = Variable{AnnualNode, string(s) + " released below the root layer", "kg ha-1 yr-1"}
		v[p+"storage_change"] = Variable{AnnualNode, "Change in organic " + string(s) + " storage", "kg ha-1 yr-1"}
		for j := esom.L0L; j < esom.NCompartments; j++ {
			v[p+j.String()] = Variable{AnnualNode, string(s) + " in compartment " + j.String(), "kg m-2"}
		}
	}
	for _, e := range []string{"N", "P", "K"} {
		p := "balance_" + e + "_"
		v[p+"release"] = Variable{AnnualNode, e + " released by decomposition in the root layer", "kg ha-1 yr-1"}
		v[p+"depo"] = Variable{AnnualNode, e + " deposition", "kg ha-1 yr-1"}
		v[p+"fert"] = Variable{AnnualNode, e + " released from fertilizer", "kg ha-1 yr-1"}
		v[p+"demand"] = Variable{AnnualNode, "Stand " + e + " demand of wood and fine roots", "kg ha-1 yr-1"}
		v[p+"leaf_demand"] = Variable{AnnualNode, "Stand " + e + " demand of new foliage", "kg ha-1 yr-1"}
		v[p+"gv_uptake"] = Variable{AnnualNode, "Ground vegetation " + e + " uptake", "kg ha-1 yr-1"}
		v[p+"net"] = Variable{AnnualNode, e + " supply less stand demand and ground vegetation uptake", "kg ha-1 yr-1"}
	}
	return v
}

// Outputs accumulates the results of a simulation and optionally
// writes them to a NetCDF file as they become available.
type Outputs struct {
	d     Dims
	vars  map[string]Variable
	data  map[string]*sparse.DenseArray
	names []string

	derived     map[string]*govaluate.EvaluableExpression
	derivedKeys []string

	ff *os.File
	f  *cdf.File
}

// NewOutputs allocates the output buffers. If path is not empty, a
// NetCDF file is created there. derived maps names to expressions of
// the strip-mean annual variables; each is stored as an annual
// variable named derived_<name>.
func NewOutputs(d Dims, path string, derived map[string]string) (*Outputs, error) {
	if d.Scenarios < 1 || d.Days < 1 || d.Years < 1 || d.Nodes < 1 || d.Layers < 1 {
		return nil, fmt.Errorf("susi: invalid output dimensions %+v: %w", d, ErrDimension)
	}
	if d.ScenarioNames != nil && len(d.ScenarioNames) != d.Scenarios {
		return nil, fmt.Errorf("susi: %d scenario names for %d scenarios: %w", len(d.ScenarioNames), d.Scenarios, ErrDimension)
	}
	o := &Outputs{
		d:       d,
		vars:    OutputVariables(),
		data:    make(map[string]*sparse.DenseArray),
		derived: make(map[string]*govaluate.EvaluableExpression),
	}
	funcs := derivedFunctions()
	for name, expr := range derived {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
		if err != nil {
			return nil, fmt.Errorf("susi: derived output %s: %w: %v", name, ErrConfig, err)
		}
		for _, v := range e.Vars() {
			vv, ok := o.vars[v]
			if !ok || (vv.Shape != Annual && vv.Shape != AnnualNode) {
				return nil, fmt.Errorf("susi: derived output %s: %w: %q is not an annual output variable", name, ErrConfig, v)
			}
		}
		key := "derived_" + name
		o.derived[key] = e
		o.derivedKeys = append(o.derivedKeys, key)
		o.vars[key] = Variable{Annual, expr, "-"}
	}
	sort.Strings(o.derivedKeys)
	for name, v := range o.vars {
		o.data[name] = sparse.ZerosDense(d.lengths(v.Shape)...)
		o.names = append(o.names, name)
	}
	sort.Strings(o.names)
	if path != "" {
		if err := o.create(path); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// create writes the NetCDF header.
func (o *Outputs) create(path string) error {
	h := cdf.NewHeader([]string{"scen", "day", "yr", "node", "lyr"},
		[]int{o.d.Scenarios, o.d.Days, o.d.Years + 1, o.d.Nodes, o.d.Layers})
	h.AddAttribute("", "comment", "SUSI peatland forest strip simulation")
	if len(o.d.ScenarioNames) > 0 {
		h.AddAttribute("", "scenarios", strings.Join(o.d.ScenarioNames, ","))
	}
	for _, name := range o.names {
		v := o.vars[name]
		h.AddVariable(name, v.Shape.dims(), []float64{0})
		h.AddAttribute(name, "description", v.Description)
		h.AddAttribute(name, "units", v.Units)
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("susi: creating output file: %v", errs[0])
	}
	var err error
	o.ff, err = os.Create(path)
	if err != nil {
		return fmt.Errorf("susi: creating output file: %w", err)
	}
	o.f, err = cdf.Create(o.ff, h)
	if err != nil {
		o.ff.Close()
		return fmt.Errorf("susi: creating output file: %w", err)
	}
	return nil
}

// Dims returns the output dimensions.
func (o *Outputs) Dims() Dims { return o.d }

// Variables returns the names of every output variable in sorted order.
func (o *Outputs) Variables() []string { return append([]string(nil), o.names...) }

// Variable returns the description of variable name.
func (o *Outputs) Variable(name string) (Variable, bool) {
	v, ok := o.vars[name]
	return v, ok
}

// Get returns a copy of the data of variable name.
func (o *Outputs) Get(name string) (*sparse.DenseArray, error) {
	a, ok := o.data[name]
	if !ok {
		return nil, fmt.Errorf("susi: unknown output variable %q", name)
	}
	return a.Copy(), nil
}

func (o *Outputs) lookup(name string, shapes ...Shape) (*sparse.DenseArray, error) {
	v, ok := o.vars[name]
	if !ok {
		return nil, fmt.Errorf("susi: unknown output variable %q", name)
	}
	for _, s := range shapes {
		if v.Shape == s {
			return o.data[name], nil
		}
	}
	return nil, fmt.Errorf("susi: output variable %q has shape %v: %w", name, v.Shape.dims(), ErrDimension)
}

func (o *Outputs) setRow(a *sparse.DenseArray, name string, vals []float64, idx ...int) error {
	n := a.Shape[len(a.Shape)-1]
	if len(vals) != n {
		return fmt.Errorf("susi: output %s: length %d, want %d: %w", name, len(vals), n, ErrDimension)
	}
	i := a.Index1d(append(idx, 0)...)
	copy(a.Elements[i:i+n], vals)
	return nil
}

// SetDaily stores the per-node or per-layer values of scenario r, day d.
func (o *Outputs) SetDaily(name string, r, d int, vals []float64) error {
	a, err := o.lookup(name, DailyNode, DailyLayer)
	if err != nil {
		return err
	}
	return o.setRow(a, name, vals, r, d)
}

// SetDailyScalar stores a strip value of scenario r, day d.
func (o *Outputs) SetDailyScalar(name string, r, d int, val float64) error {
	a, err := o.lookup(name, Daily)
	if err != nil {
		return err
	}
	a.Set(val, r, d)
	return nil
}

// SetAnnual stores the per-node values of scenario r, year index y.
// Year index 0 holds the initial state.
func (o *Outputs) SetAnnual(name string, r, y int, vals []float64) error {
	a, err := o.lookup(name, AnnualNode)
	if err != nil {
		return err
	}
	return o.setRow(a, name, vals, r, y)
}

// SetAnnualScalar stores a strip value of scenario r, year index y.
func (o *Outputs) SetAnnualScalar(name string, r, y int, val float64) error {
	a, err := o.lookup(name, Annual)
	if err != nil {
		return err
	}
	a.Set(val, r, y)
	return nil
}

// SetScenario stores a value describing scenario r.
func (o *Outputs) SetScenario(name string, r int, val float64) error {
	a, err := o.lookup(name, PerScenario)
	if err != nil {
		return err
	}
	a.Set(val, r)
	return nil
}

// write copies elements [begin, end] of variable name to the file.
// The writer reports io.EOF once it reaches end, so that is only an
// error when part of the slab was not written.
func (o *Outputs) write(name string, begin, end []int) error {
	a := o.data[name]
	i0, i1 := a.Index1d(begin...), a.Index1d(end...)
	slab := a.Elements[i0 : i1+1]
	w := o.f.Writer(name, begin, end)
	n, err := w.Write(slab)
	if err == io.EOF && n == len(slab) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("susi: writing output %s: wrote %d of %d values: %w", name, n, len(slab), err)
	}
	return nil
}

// FlushScenario writes the scenario variables and the initial annual
// records of scenario r.
func (o *Outputs) FlushScenario(r int) error {
	if err := o.evalDerived(r, 0); err != nil {
		return err
	}
	if o.f == nil {
		return nil
	}
	for _, name := range o.names {
		var err error
		switch v := o.vars[name]; v.Shape {
		case PerScenario:
			err = o.write(name, []int{r}, []int{r})
		case Annual:
			err = o.write(name, []int{r, 0}, []int{r, 0})
		case AnnualNode:
			err = o.write(name, []int{r, 0, 0}, []int{r, 0, o.d.Nodes - 1})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// FlushYear evaluates the derived variables of year index y and writes
// the daily records [dayStart, dayStart+days) and annual records of
// year index y of scenario r.
func (o *Outputs) FlushYear(r, y, dayStart, days int) error {
	if err := o.evalDerived(r, y); err != nil {
		return err
	}
	if o.f == nil {
		return nil
	}
	last := dayStart + days - 1
	for _, name := range o.names {
		var err error
		switch v := o.vars[name]; v.Shape {
		case DailyNode:
			err = o.write(name, []int{r, dayStart, 0}, []int{r, last, o.d.Nodes - 1})
		case DailyLayer:
			err = o.write(name, []int{r, dayStart, 0}, []int{r, last, o.d.Layers - 1})
		case Daily:
			err = o.write(name, []int{r, dayStart}, []int{r, last})
		case AnnualNode:
			err = o.write(name, []int{r, y, 0}, []int{r, y, o.d.Nodes - 1})
		case Annual:
			err = o.write(name, []int{r, y}, []int{r, y})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Close finishes the output file.
func (o *Outputs) Close() error {
	if o.f == nil {
		return nil
	}
	if err := cdf.UpdateNumRecs(o.ff); err != nil {
		o.ff.Close()
		return fmt.Errorf("susi: closing output file: %w", err)
	}
	if err := o.ff.Close(); err != nil {
		return fmt.Errorf("susi: closing output file: %w", err)
	}
	o.f = nil
	return nil
}
