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
	"github.com/Manhosu/CineVision-sub004/internal/config"
	"github.com/Manhosu/CineVision-sub004/internal/fs"
	"github.com/Manhosu/CineVision-sub004/internal/iostreams"
	"github.com/Manhosu/CineVision-sub004/internal/name"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const targetHelp = `Targets are written as episodes/{id} for a series episode
or languages/{id} for a language version of a movie.`

func NewUploadCommand(cfgPath *string, io *iostreams.IOStreams, getProvider func(string) config.Provider, flagOpts *upload_utils.UploadManagerOpts) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:                   "upload <target> <file> [--title <title>]",
		Short:                 "Upload a media file to an episode or a language version.",
		Long:                  "Upload a media file in parallel multipart chunks.\n\n" + targetHelp,
		Example:               "  cvupload upload episodes/2f0c0d1e ./s01e01.mp4 --title \"Pilot\"",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := name.NewTarget(args[0])
			if err != nil {
				return err
			}

			file, err := fs.OpenLocalFile(args[1])
			if err != nil {
				return err
			}
			defer func() {
				if err := file.Close(); err != nil {
					log.Debugf("Close %s failed: %v", file.Path(), err)
				}
			}()

			s, err := newSession(cmd.Context(), getProvider(*cfgPath), *cfgPath, flagOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			io.Separator()
			io.Printf("Uploading %s to %s\n", file.Name(), target)

			s.um.StartMonitor()
			task, err := s.um.Upload(cmd.Context(), upload_utils.PendingUpload{
				File:   file,
				Target: *target,
				Title:  title,
			})
			s.um.StopMonitor()
			if err != nil {
				return errors.Wrapf(err, "unable to upload %s", file.Name())
			}

			io.Printf("Uploaded %s to %s\n", task.FileName, task.StorageKey)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "display title of the upload, e.g. the episode name")

	return cmd
}
