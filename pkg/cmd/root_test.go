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

package cmd_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/Manhosu/CineVision-sub004/internal/testutil"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(testutil.TempDir(t), "config.yaml")
}

func TestRootCommand(t *testing.T) {
	t.Run("Version flag", func(t *testing.T) {
		output, err := execute(t, "--version")
		require.NoError(t, err)
		assert.Contains(t, output, "cvupload version")
	})

	t.Run("Help lists upload policy flags", func(t *testing.T) {
		output, err := execute(t, "--help")
		require.NoError(t, err)
		for _, want := range []string{"Usage:", "Available Commands:", "--part-size", "--part-concurrency", "--file-concurrency"} {
			assert.Contains(t, output, want)
		}
	})

	t.Run("Invalid command", func(t *testing.T) {
		_, err := execute(t, "invalid-command")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown command")
	})

	t.Run("Completion with custom config path", func(t *testing.T) {
		testutil.SkipIfShort(t)
		configPath := testutil.CreateTempFile(t, testutil.TempDir(t), "config-*.yaml", nil)

		output, err := execute(t, "--config", configPath, "completion", "bash")
		require.NoError(t, err)
		assert.Contains(t, output, "bash completion")
		assert.Contains(t, output, "cvupload")
	})

	t.Run("Log level", func(t *testing.T) {
		for _, tc := range []struct {
			level string
			valid bool
		}{
			{"trace", true},
			{"debug", true},
			{"info", true},
			{"warn", true},
			{"error", true},
			{"loud", false},
		} {
			t.Run(tc.level, func(t *testing.T) {
				_, err := execute(t, "--config", tempConfigPath(t), "--log-level", tc.level, "completion", "bash")
				if tc.valid {
					require.NoError(t, err)
					return
				}
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
			})
		}
	})

	t.Run("Tty flags are exclusive", func(t *testing.T) {
		_, err := execute(t, "--config", tempConfigPath(t), "--tty", "--no-tty", "tasks", "list")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no-tty")
	})
}

func TestCommandTree(t *testing.T) {
	root := cmd.NewCommand()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
		assert.NotEmpty(t, sub.Short, "command %s has no short description", sub.Name())
	}
	for _, want := range []string{"upload", "batch", "tasks"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}

func TestUploadRequiresEndpoint(t *testing.T) {
	dir := testutil.TempDir(t)
	mediaPath := testutil.CreateMediaFile(t, dir, "movie.mp4", 1024)

	_, err := execute(t, "--config", filepath.Join(dir, "config.yaml"), "--no-tty", "upload", "episodes/ep-1", mediaPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}
