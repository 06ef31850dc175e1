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

package cmd

import (
	"github.com/Manhosu/CineVision-sub004/internal/config"
	"github.com/Manhosu/CineVision-sub004/internal/constants"
	"github.com/Manhosu/CineVision-sub004/internal/iostreams"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd/tasks"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd/upload"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	var (
		cfgPath    string
		logLevel   string
		uploadOpts = &upload_utils.UploadManagerOpts{}
		io         = iostreams.System()
	)

	cmd := &cobra.Command{
		Use:          constants.CLIName,
		Short:        "Upload movies and episodes to CineVision in parallel multipart chunks.",
		Version:      constants.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return errors.Wrapf(err, "invalid log level %q", logLevel)
			}
			log.SetLevel(level)
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", constants.DefaultConfigPath, "config file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level, one of: trace|debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&uploadOpts.PartSize, "part-size", "", "size of each part, e.g. 10MiB (overrides config)")
	cmd.PersistentFlags().IntVar(&uploadOpts.PartConcurrency, "part-concurrency", 0, "parts of one file uploaded in parallel (overrides config)")
	cmd.PersistentFlags().IntVar(&uploadOpts.FileConcurrency, "file-concurrency", 0, "files uploaded in parallel by batch (overrides config)")
	cmd.PersistentFlags().BoolVar(&uploadOpts.NoTTY, "no-tty", false, "disable interactive mode for headless environments")
	cmd.PersistentFlags().BoolVar(&uploadOpts.TTY, "tty", false, "force interactive mode even in headless environments")

	cmd.MarkFlagsMutuallyExclusive("no-tty", "tty")

	cmd.AddCommand(upload.NewUploadCommand(&cfgPath, io, config.ProvideWithOverride, uploadOpts))
	cmd.AddCommand(upload.NewBatchCommand(&cfgPath, io, config.ProvideWithOverride, uploadOpts))
	cmd.AddCommand(tasks.NewRootCommand(&cfgPath, io))

	return cmd
}
