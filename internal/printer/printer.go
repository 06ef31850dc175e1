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

package printer

import (
	"encoding/json"
	"io"

	"github.com/Manhosu/CineVision-sub004/internal/printer/printable"
	"github.com/Manhosu/CineVision-sub004/internal/printer/table"
	"github.com/pkg/errors"
)

// ResourcePrinter writes a printable object in one output format.
type ResourcePrinter interface {
	PrintObj(obj printable.Interface, w io.Writer) error
}

type Options struct {
	TableOpts *table.PrintOpts
}

// Printer returns the printer for format: table (default), json or yaml.
func Printer(format string, opts *Options) ResourcePrinter {
	if opts == nil {
		opts = &Options{}
	}

	switch format {
	case "", "table":
		return &TablePrinter{opts: opts.TableOpts}
	case "json":
		return &JSONPrinter{}
	case "yaml":
		return &YAMLPrinter{}
	default:
		return &unsupportedPrinter{format: format}
	}
}

type TablePrinter struct {
	opts *table.PrintOpts
}

func (p *TablePrinter) PrintObj(obj printable.Interface, w io.Writer) error {
	return obj.ToTable(p.opts).Write(w, p.opts)
}

type JSONPrinter struct{}

func (p *JSONPrinter) PrintObj(obj printable.Interface, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(obj.Data())
}

type unsupportedPrinter struct {
	format string
}

func (p *unsupportedPrinter) PrintObj(printable.Interface, io.Writer) error {
	return errors.Errorf("unsupported output format %q, expected table, json or yaml", p.format)
}
