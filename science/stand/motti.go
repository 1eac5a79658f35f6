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

package stand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"
)

// mottiColumns are the required header names of a Motti growth sheet.
var mottiColumns = []string{"age", "hdom", "ba", "vol", "stems", "leaf"}

// ReadMottiXLSX reads growth series from a Motti simulator export. Each
// sheet holds one species and is named after it. The first row is a
// header naming at least the columns age, hdom, ba, vol, stems and leaf
// in any order; ages must increase down the sheet.
func ReadMottiXLSX(path string) (*SeriesTable, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("stand: opening growth table: %w", err)
	}
	t := &SeriesTable{
		Age:  make(map[string][]float64),
		Rows: make(map[string][]Row),
	}
	for _, sheet := range f.Sheets {
		species := strings.ToLower(strings.TrimSpace(sheet.Name))
		ages, rows, err := readMottiSheet(sheet)
		if err != nil {
			return nil, fmt.Errorf("stand: growth table %s, sheet %q: %w", path, sheet.Name, err)
		}
		t.Age[species] = ages
		t.Rows[species] = rows
	}
	if len(t.Age) == 0 {
		return nil, fmt.Errorf("stand: growth table %s has no sheets", path)
	}
	return t, nil
}

func readMottiSheet(sheet *xlsx.Sheet) ([]float64, []Row, error) {
	if sheet.MaxRow < 2 {
		return nil, nil, fmt.Errorf("need a header and at least one data row")
	}
	col := make(map[string]int)
	for c := 0; c < sheet.MaxCol; c++ {
		name := strings.ToLower(strings.TrimSpace(sheet.Cell(0, c).Value))
		col[name] = c
	}
	for _, name := range mottiColumns {
		if _, ok := col[name]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", name)
		}
	}
	var ages []float64
	var rows []Row
	for r := 1; r < sheet.MaxRow; r++ {
		if strings.TrimSpace(sheet.Cell(r, col["age"]).Value) == "" {
			continue
		}
		var v [6]float64
		for i, name := range mottiColumns {
			s := strings.TrimSpace(sheet.Cell(r, col[name]).Value)
			x, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d, column %s: %w", r+1, name, err)
			}
			v[i] = x
		}
		if n := len(ages); n > 0 && v[0] <= ages[n-1] {
			return nil, nil, fmt.Errorf("row %d: age %g does not increase", r+1, v[0])
		}
		ages = append(ages, v[0])
		rows = append(rows, Row{Hdom: v[1], BA: v[2], Volume: v[3], Stems: v[4], Leaf: v[5]})
	}
	if len(ages) == 0 {
		return nil, nil, fmt.Errorf("no data rows")
	}
	return ages, rows, nil
}
