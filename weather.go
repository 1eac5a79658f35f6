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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/GaryBoone/GoStats/stats"
)

// Record is one day of weather.
type Record struct {
	Date time.Time
	Doy  int
	T    float64 // air temperature [°C]
	Prec float64 // precipitation [mm d-1]
	Rg   float64 // global radiation [W m-2]
	Par  float64 // photosynthetically active radiation [W m-2]
	Vpd  float64 // vapour pressure deficit [kPa]
}

// Weather holds consecutive daily weather records of a site.
type Weather struct {
	Records  []Record
	Lat, Lon float64
}

const dateLayout = "2006-01-02"

// ReadWeatherCSV reads daily weather from a CSV file with a header row.
// The columns date, T, Prec, Rg, Par and vpd are required; doy, lat and
// lon are optional. Records must be consecutive days.
func ReadWeatherCSV(r io.Reader) (*Weather, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("susi: reading weather header: %w", err)
	}
	col := make(map[string]int)
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"date", "t", "prec", "rg", "par", "vpd"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("susi: weather file is missing column %q", name)
		}
	}
	w := new(Weather)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("susi: reading weather line %d: %w", line, err)
		}
		num := func(name string) (float64, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col[name]]), 64)
			if err != nil {
				return 0, fmt.Errorf("susi: weather line %d, column %s: %w", line, name, err)
			}
			return v, nil
		}
		var d Record
		d.Date, err = time.Parse(dateLayout, strings.TrimSpace(rec[col["date"]]))
		if err != nil {
			return nil, fmt.Errorf("susi: weather line %d: %w", line, err)
		}
		d.Doy = d.Date.YearDay()
		if _, ok := col["doy"]; ok {
			doy, err := num("doy")
			if err != nil {
				return nil, err
			}
			d.Doy = int(doy)
		}
		for _, f := range []struct {
			name string
			dst  *float64
		}{{"t", &d.T}, {"prec", &d.Prec}, {"rg", &d.Rg}, {"par", &d.Par}, {"vpd", &d.Vpd}} {
			if *f.dst, err = num(f.name); err != nil {
				return nil, err
			}
		}
		if len(w.Records) == 0 {
			if _, ok := col["lat"]; ok {
				if w.Lat, err = num("lat"); err != nil {
					return nil, err
				}
			}
			if _, ok := col["lon"]; ok {
				if w.Lon, err = num("lon"); err != nil {
					return nil, err
				}
			}
		}
		w.Records = append(w.Records, d)
	}
	if err := w.check(); err != nil {
		return nil, err
	}
	return w, nil
}

// check verifies that the records are consecutive days with finite values.
func (w *Weather) check() error {
	if len(w.Records) == 0 {
		return fmt.Errorf("susi: weather has no records")
	}
	for i, r := range w.Records {
		for _, v := range []float64{r.T, r.Prec, r.Rg, r.Par, r.Vpd} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("susi: weather on %s: %w", r.Date.Format(dateLayout), ErrNumerical)
			}
		}
		if r.Prec < 0 {
			return fmt.Errorf("susi: negative precipitation on %s", r.Date.Format(dateLayout))
		}
		if i > 0 && !r.Date.Equal(w.Records[i-1].Date.AddDate(0, 0, 1)) {
			return fmt.Errorf("susi: weather records are not consecutive at %s", r.Date.Format(dateLayout))
		}
	}
	return nil
}

// SyntheticWeather returns a smooth seasonal climate for the years
// [startYr, endYr] at the given location. It is meant for tests and
// demonstrations.
func SyntheticWeather(startYr, endYr int, lat, lon float64) *Weather {
	w := &Weather{Lat: lat, Lon: lon}
	start := time.Date(startYr, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYr, 12, 31, 0, 0, 0, 0, time.UTC)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		doy := d.YearDay()
		season := math.Sin(2 * math.Pi * float64(doy-110) / 365)
		rg := math.Max(10, 120+110*season)
		prec := 0.0
		if doy%3 == 0 {
			prec = 5 + 2*math.Sin(float64(doy))
		}
		w.Records = append(w.Records, Record{
			Date: d,
			Doy:  doy,
			T:    2 + 12*season,
			Prec: prec,
			Rg:   rg,
			Par:  0.45 * rg,
			Vpd:  math.Max(0.05, 0.3+0.4*season),
		})
	}
	return w
}

// Len returns the number of days.
func (w *Weather) Len() int { return len(w.Records) }

// Day returns the record at offset i.
func (w *Weather) Day(i int) Record { return w.Records[i] }

// Year returns the offset of the first day of yr and the number of its days.
func (w *Weather) Year(yr int) (start, days int, err error) {
	start = -1
	for i, r := range w.Records {
		if r.Date.Year() == yr {
			if start < 0 {
				start = i
			}
			days++
		}
	}
	if start < 0 {
		return 0, 0, fmt.Errorf("susi: no weather for %d", yr)
	}
	return start, days, nil
}

// Covers reports whether w holds every day of the years [startYr, endYr].
func (w *Weather) Covers(startYr, endYr int) error {
	if len(w.Records) == 0 {
		return fmt.Errorf("susi: weather has no records")
	}
	first, last := w.Records[0].Date, w.Records[len(w.Records)-1].Date
	want0 := time.Date(startYr, 1, 1, 0, 0, 0, 0, time.UTC)
	want1 := time.Date(endYr, 12, 31, 0, 0, 0, 0, time.UTC)
	if first.After(want0) || last.Before(want1) {
		return fmt.Errorf("susi: weather from %s to %s does not cover %d-%d",
			first.Format(dateLayout), last.Format(dateLayout), startYr, endYr)
	}
	return nil
}

// Slice returns the weather of the years [startYr, endYr].
func (w *Weather) Slice(startYr, endYr int) (*Weather, error) {
	if err := w.Covers(startYr, endYr); err != nil {
		return nil, err
	}
	s, _, err := w.Year(startYr)
	if err != nil {
		return nil, err
	}
	e, days, err := w.Year(endYr)
	if err != nil {
		return nil, err
	}
	return &Weather{Records: w.Records[s : e+days], Lat: w.Lat, Lon: w.Lon}, nil
}

// temperatures returns the air temperatures of days [start, start+days).
func (w *Weather) temperatures(start, days int) []float64 {
	t := make([]float64, days)
	for i := range t {
		t[i] = w.Records[start+i].T
	}
	return t
}

// TemperatureSum returns the growing degree days above 5 °C of yr.
func (w *Weather) TemperatureSum(yr int) (float64, error) {
	start, days, err := w.Year(yr)
	if err != nil {
		return 0, err
	}
	t := w.temperatures(start, days)
	for i, v := range t {
		t[i] = math.Max(v-5, 0)
	}
	return stats.StatsSum(t), nil
}

// MeanTemperature returns the mean air temperature of the whole record.
func (w *Weather) MeanTemperature() float64 {
	return stats.StatsMean(w.temperatures(0, len(w.Records)))
}
