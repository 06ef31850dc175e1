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

package iostreams

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const separatorWidth = 61

// IOStreams carries the streams a command writes its human readable output to.
// Progress and diagnostics go through logrus or the monitor, not here.
type IOStreams struct {
	In     io.ReadCloser
	Out    io.Writer
	ErrOut io.Writer
}

// System returns the process streams.
func System() *IOStreams {
	return &IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

// Test returns IOStreams backed by the given readers and writers.
func Test(in io.ReadCloser, out, errOut io.Writer) *IOStreams {
	return &IOStreams{
		In:     in,
		Out:    out,
		ErrOut: errOut,
	}
}

func (s *IOStreams) Println(a ...interface{}) {
	fmt.Fprintln(s.Out, a...)
}

func (s *IOStreams) Printf(format string, a ...interface{}) {
	fmt.Fprintf(s.Out, format, a...)
}

// Separator prints the rule that opens an upload run.
func (s *IOStreams) Separator() {
	fmt.Fprintln(s.Out, strings.Repeat("-", separatorWidth))
}

// Eprintf prints to ErrOut.
func (s *IOStreams) Eprintf(format string, a ...interface{}) {
	fmt.Fprintf(s.ErrOut, format, a...)
}
