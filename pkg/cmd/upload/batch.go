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

package upload

import (
	"strings"

	"github.com/Manhosu/CineVision-sub004/internal/config"
	"github.com/Manhosu/CineVision-sub004/internal/fs"
	"github.com/Manhosu/CineVision-sub004/internal/iostreams"
	"github.com/Manhosu/CineVision-sub004/internal/name"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type batchEntry struct {
	target name.Target
	path   string
}

// parseBatchArgs splits <target>=<file> arguments.
func parseBatchArgs(args []string) ([]batchEntry, error) {
	entries := make([]batchEntry, 0, len(args))
	for _, arg := range args {
		rawTarget, path, ok := strings.Cut(arg, "=")
		if !ok || path == "" {
			return nil, errors.Errorf("invalid argument %q, expected <target>=<file>", arg)
		}
		target, err := name.NewTarget(rawTarget)
		if err != nil {
			return nil, err
		}
		entries = append(entries, batchEntry{target: *target, path: path})
	}
	return entries, nil
}

func NewBatchCommand(cfgPath *string, io *iostreams.IOStreams, getProvider func(string) config.Provider, flagOpts *upload_utils.UploadManagerOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <target>=<file>...",
		Short: "Queue several uploads and run them with bounded file concurrency.",
		Long: "Queue several uploads and run them with at most --file-concurrency files in flight.\n" +
			"A later argument for the same target replaces an earlier one.\n\n" + targetHelp,
		Example:               "  cvupload batch episodes/ep-1=./s01e01.mp4 episodes/ep-2=./s01e02.mp4 languages/pt-br=./dub.mkv",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := parseBatchArgs(args)
			if err != nil {
				return err
			}

			files := make([]*fs.LocalFile, 0, len(entries))
			defer func() {
				for _, f := range files {
					if err := f.Close(); err != nil {
						log.Debugf("Close %s failed: %v", f.Path(), err)
					}
				}
			}()
			for _, e := range entries {
				f, err := fs.OpenLocalFile(e.path)
				if err != nil {
					return err
				}
				files = append(files, f)
			}

			s, err := newSession(cmd.Context(), getProvider(*cfgPath), *cfgPath, flagOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			queue := upload_utils.NewUploadQueue(s.um, 0)
			for i, e := range entries {
				if _, err := queue.Enqueue(upload_utils.PendingUpload{File: files[i], Target: e.target}); err != nil {
					return errors.Wrapf(err, "unable to queue %s", e.path)
				}
			}

			io.Separator()
			total := len(queue.Pending())
			io.Printf("Uploading %d files\n", total)

			s.um.StartMonitor()
			err = queue.Run(cmd.Context())
			s.um.StopMonitor()

			var batchErr *upload_utils.BatchError
			if errors.As(err, &batchErr) {
				for _, task := range s.um.Registry().Snapshot() {
					if taskErr, ok := batchErr.Errs[task.ID]; ok {
						io.Eprintf("Upload of %s to %s failed: %v\n", task.FileName, task.Target, taskErr)
					}
				}
				return errors.Errorf("%d of %d uploads failed", len(batchErr.Errs), total)
			}
			if err != nil {
				return err
			}

			io.Println("All uploads completed")
			return nil
		},
	}

	return cmd
}
