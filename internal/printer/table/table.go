// Copyright 2025 CineVision
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package table

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
)

type PrintOpts struct {
	// Verbose disables cell trimming.
	Verbose bool

	// OmitFields lists column names left out of the output.
	OmitFields []string
}

type ColumnDefinition struct {
	FieldName string

	// TrimSize is the display width a cell is cut to, zero for no limit.
	TrimSize int
}

type Table struct {
	ColumnDefs []ColumnDefinition
	Rows       [][]string
}

// Write renders t as aligned columns with a header row.
func (t Table) Write(w io.Writer, opts *PrintOpts) error {
	if opts == nil {
		opts = &PrintOpts{}
	}

	keep := lo.FilterMap(t.ColumnDefs, func(def ColumnDefinition, i int) (int, bool) {
		return i, !lo.Contains(opts.OmitFields, def.FieldName)
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := lo.Map(keep, func(i int, _ int) string {
		return t.ColumnDefs[i].FieldName
	})
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}

	for _, row := range t.Rows {
		cells := lo.Map(keep, func(i int, _ int) string {
			if i >= len(row) {
				return ""
			}
			if trim := t.ColumnDefs[i].TrimSize; trim > 0 && !opts.Verbose {
				return runewidth.Truncate(row[i], trim, "...")
			}
			return row[i]
		})
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
