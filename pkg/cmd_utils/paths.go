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

package cmd_utils

import (
	"path/filepath"

	"github.com/Manhosu/CineVision-sub004/internal/constants"
)

// TaskStorePath returns the task store kept next to the config file at cfgPath.
func TaskStorePath(cfgPath string) string {
	if cfgPath == "" {
		return constants.DefaultTaskStorePath
	}
	return filepath.Join(filepath.Dir(cfgPath), constants.TaskStoreName)
}
