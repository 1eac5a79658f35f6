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
	"strings"
	"testing"
)

const weatherCSV = `date, doy, T, Prec, Rg, Par, vpd, lat, lon
2004-12-30, 365, -3.5, 1.2, 10, 4.5, 0.1, 61.8, 24.3
2004-12-31, 366, -4.0, 0, 12, 5.4, 0.1, 61.8, 24.3
2005-01-01, 1, -6.1, 2.5, 11, 5.0, 0.05, 61.8, 24.3
`

func TestReadWeatherCSV(t *testing.T) {
	w, err := ReadWeatherCSV(strings.NewReader(weatherCSV))
	if err != nil {
		t.Fatal(err)
	}
	if w.Len() != 3 || w.Lat != 61.8 || w.Lon != 24.3 {
		t.Fatalf("read %d records at %g, %g", w.Len(), w.Lat, w.Lon)
	}
	if d := w.Day(2); d.Doy != 1 || d.T != -6.1 || d.Prec != 2.5 {
		t.Errorf("last record %+v", d)
	}
	if _, _, err := w.Year(2005); err != nil {
		t.Error(err)
	}
	if err := w.Covers(2004, 2005); err == nil {
		t.Error("partial year 2004 accepted")
	}
}

func TestReadWeatherCSVErrors(t *testing.T) {
	for _, test := range []struct {
		name, csv, want string
	}{
		{
			name: "missing column",
			csv:  "date, T, Prec, Rg, Par\n2004-01-01, 1, 0, 10, 5\n",
			want: `"vpd"`,
		},
		{
			name: "gap",
			csv:  "date, T, Prec, Rg, Par, vpd\n2004-01-01, 1, 0, 10, 5, 0.1\n2004-01-03, 1, 0, 10, 5, 0.1\n",
			want: "not consecutive",
		},
		{
			name: "negative precipitation",
			csv:  "date, T, Prec, Rg, Par, vpd\n2004-01-01, 1, -1, 10, 5, 0.1\n",
			want: "negative precipitation",
		},
		{
			name: "bad number",
			csv:  "date, T, Prec, Rg, Par, vpd\n2004-01-01, warm, 0, 10, 5, 0.1\n",
			want: "column t",
		},
		{
			name: "empty",
			csv:  "date, T, Prec, Rg, Par, vpd\n",
			want: "no records",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadWeatherCSV(strings.NewReader(test.csv))
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %v, want %s", err, test.want)
			}
		})
	}

	_, err := ReadWeatherCSV(strings.NewReader("date, T, Prec, Rg, Par, vpd\n2004-01-01, NaN, 0, 10, 5, 0.1\n"))
	if !errors.Is(err, ErrNumerical) {
		t.Errorf("NaN temperature: %v", err)
	}
}

func TestSyntheticWeather(t *testing.T) {
	w := SyntheticWeather(2003, 2005, 60, 25)
	if w.Len() != 365+366+365 {
		t.Fatalf("%d days", w.Len())
	}
	start, days, err := w.Year(2004)
	if err != nil {
		t.Fatal(err)
	}
	if start != 365 || days != 366 {
		t.Errorf("2004 starts at %d with %d days", start, days)
	}
	s, err := w.Slice(2004, 2004)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 366 || s.Day(0).Doy != 1 {
		t.Errorf("slice has %d days starting on day %d", s.Len(), s.Day(0).Doy)
	}
	if _, err := w.Slice(2002, 2004); err == nil {
		t.Error("slice before the first year accepted")
	}
	ts, err := w.TemperatureSum(2004)
	if err != nil {
		t.Fatal(err)
	}
	if ts < 500 || ts > 2500 {
		t.Errorf("temperature sum %g degree days", ts)
	}
	if m := w.MeanTemperature(); different(m, 2, 0.1) {
		t.Errorf("mean temperature %g", m)
	}
}
