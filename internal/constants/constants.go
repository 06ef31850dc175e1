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

package constants

import (
	"os"
	"path/filepath"
)

const (
	CLIName           = "cvupload"
	DefaultConfigName = "config.yaml"
	TaskStoreName     = "tasks.db"
	EnvPrefix         = "CVUPLOAD_"
)

// Version is set at build time with -ldflags "-X .../internal/constants.Version=...".
var Version = "dev"

var (
	DefaultBaseDirPath   = filepath.Join(homeDir(), ".cvupload")
	DefaultConfigPath    = filepath.Join(DefaultBaseDirPath, DefaultConfigName)
	DefaultTaskStorePath = filepath.Join(DefaultBaseDirPath, TaskStoreName)
)

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}
