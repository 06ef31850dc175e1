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
	"github.com/Manhosu/CineVision-sub004/internal/printer"
	"github.com/Manhosu/CineVision-sub004/internal/printer/printable"
	"github.com/Manhosu/CineVision-sub004/internal/printer/table"
	"github.com/Manhosu/CineVision-sub004/internal/taskstore"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func NewListCommand(cfgPath *string, io *iostreams.IOStreams) *cobra.Command {
	var (
		verbose      = false
		outputFormat = ""
		statuses     []string
	)

	cmd := &cobra.Command{
		Use:                   "list [-v] [-o <format>] [--status <status>...]",
		Short:                 "List upload tasks.",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := taskstore.Open(cmd_utils.TaskStorePath(*cfgPath))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tasks, err := upload_utils.LoadTasks(store)
			if err != nil {
				return errors.Wrap(err, "unable to load tasks")
			}
			if len(statuses) > 0 {
				tasks = lo.Filter(tasks, func(t upload_utils.UploadTask, _ int) bool {
					return lo.Contains(statuses, string(t.Status))
				})
			}

			if outputFormat == "" && len(tasks) == 0 {
				io.Println("No tasks found.")
				return nil
			}

			err = printer.Printer(outputFormat, &printer.Options{TableOpts: &table.PrintOpts{
				Verbose: verbose,
			}}).PrintObj(printable.NewUploadTasks(tasks), io.Out)
			if err != nil {
				return errors.Wrap(err, "unable to print tasks")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "output format (table|json|yaml)")
	cmd.Flags().StringSliceVar(&statuses, "status", []string{}, "filter by status (comma-separated)")

	return cmd
}
