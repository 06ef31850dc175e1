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

package testutil

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTimeout = 30 * time.Second

// TestContext returns a context cancelled when the test ends or after testTimeout.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// TempDir creates a directory removed at the end of the test.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cvupload-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// CreateTempFile writes content to a new file in dir named after pattern and returns its path.
func CreateTempFile(t *testing.T, dir, pattern string, content []byte) string {
	t.Helper()
	file, err := os.CreateTemp(dir, pattern)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	_, err = file.Write(content)
	require.NoError(t, err)
	return file.Name()
}

func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}
}

// CaptureOutput runs fn with os.Stdout and os.Stderr redirected and returns what it wrote.
func CaptureOutput(t *testing.T, fn func()) (stdout, stderr string) {
	t.Helper()

	restoreOut, readOut := redirect(t, &os.Stdout)
	restoreErr, readErr := redirect(t, &os.Stderr)
	fn()
	restoreOut()
	restoreErr()

	return <-readOut, <-readErr
}

// redirect swaps *target for a pipe. The returned channel yields everything written once restore is called.
func redirect(t *testing.T, target **os.File) (restore func(), read <-chan string) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := *target
	*target = w

	out := make(chan string, 1)
	go func() {
		buf, _ := io.ReadAll(r)
		_ = r.Close()
		out <- string(buf)
	}()

	return func() {
		_ = w.Close()
		*target = orig
	}, out
}
