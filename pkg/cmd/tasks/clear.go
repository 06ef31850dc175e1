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

package tasks

import (
	"github.com/Manhosu/CineVision-sub004/internal/iostreams"
	"github.com/Manhosu/CineVision-sub004/internal/taskstore"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewClearCommand(cfgPath *string, io *iostreams.IOStreams) *cobra.Command {
	var stuck = false

	cmd := &cobra.Command{
		Use:                   "clear [--stuck]",
		Short:                 "Delete recorded upload tasks.",
		Long:                  "Delete every recorded upload task, or with --stuck only the ones a previous session left pending or uploading.",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := taskstore.Open(cmd_utils.TaskStorePath(*cfgPath))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if stuck {
				cleared, err := upload_utils.ClearStuckTasks(store)
				if err != nil {
					return errors.Wrap(err, "unable to clear stuck tasks")
				}
				io.Printf("Cleared %d stuck tasks\n", len(cleared))
				return nil
			}

			if err := store.Reset(); err != nil {
				return errors.Wrap(err, "unable to clear tasks")
			}
			io.Println("Cleared all tasks")
			return nil
		},
	}

	cmd.Flags().BoolVar(&stuck, "stuck", false, "only clear tasks left pending or uploading")

	return cmd
}
