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
	"context"
	"net/http"
	"time"

	"dario.cat/mergo"
	"github.com/Manhosu/CineVision-sub004/api"
	"github.com/Manhosu/CineVision-sub004/internal/config"
	"github.com/Manhosu/CineVision-sub004/internal/constants"
	"github.com/Manhosu/CineVision-sub004/internal/taskstore"
	"github.com/Manhosu/CineVision-sub004/internal/utils"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const responseHeaderTimeout = 2 * time.Minute

// session is everything one upload command needs: the manager, its registry and the task store behind it.
type session struct {
	um       *upload_utils.UploadManager
	registry *upload_utils.TaskRegistry
	cancel   context.CancelFunc
}

func newSession(ctx context.Context, provider config.Provider, cfgPath string, flagOpts *upload_utils.UploadManagerOpts) (*session, error) {
	cfg, err := provider.GetConfig()
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	if err := utils.InitSentry(cfg.SentryDSN, constants.Version); err != nil {
		log.Warnf("Error reporting disabled: %v", err)
	}

	apiOpts, err := newApiOpts(cfg)
	if err != nil {
		return nil, err
	}

	// Flags win over the config file.
	opts := upload_utils.OptsFromConfig(cfg.Upload)
	if flagOpts != nil {
		if err := mergo.Merge(&opts, *flagOpts, mergo.WithOverride); err != nil {
			return nil, errors.Wrap(err, "merge flag options")
		}
	}

	store, err := taskstore.Open(cmd_utils.TaskStorePath(cfgPath))
	if err != nil {
		return nil, err
	}
	if stuck, err := upload_utils.ClearStuckTasks(store); err != nil {
		log.Warnf("Unable to clear tasks left by a previous session: %v", err)
	} else if len(stuck) > 0 {
		log.Warnf("Cleared %d tasks left unfinished by a previous session", len(stuck))
	}

	registry := upload_utils.NewTaskRegistry(upload_utils.TaskRegistryOpts{
		Retention: cfg.Upload.Retention,
		Store:     store,
	})
	ctx, cancel := context.WithCancel(ctx)
	registry.StartSweeper(ctx)

	um, err := upload_utils.NewUploadManager(apiOpts, registry, &opts)
	if err != nil {
		cancel()
		_ = registry.Close()
		return nil, err
	}

	return &session{um: um, registry: registry, cancel: cancel}, nil
}

// newApiOpts picks the coordinator: a direct bucket when storage.bucket is set, the upload api otherwise.
func newApiOpts(cfg *config.Config) (*upload_utils.ApiOpts, error) {
	transport := cmd_utils.NewTransport(responseHeaderTimeout)
	apiOpts := &upload_utils.ApiOpts{
		PartUploader: upload_utils.NewHTTPPartUploader(&http.Client{Transport: transport}),
	}

	if cfg.UseDirectStorage() {
		coordinator, err := api.NewS3Coordinator(api.S3Options{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			SessionToken:    cfg.Storage.SessionToken,
			Bucket:          cfg.Storage.Bucket,
			Secure:          cfg.Storage.Secure,
			URLExpiry:       cfg.Storage.URLExpiry,
			Transport:       transport,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create storage coordinator")
		}
		apiOpts.StorageCoordinator = coordinator
		return apiOpts, nil
	}

	tokens := api.StaticToken(cfg.Token)
	apiOpts.TokenSource = tokens
	apiOpts.StorageCoordinator = api.NewCoordinatorClient(api.CoordinatorClientOpts{
		BaseURL:   cfg.Endpoint,
		Tokens:    tokens,
		Transport: transport,
	})
	return apiOpts, nil
}

// Close stops the sweeper, flushes error reports and closes the task store.
func (s *session) Close() {
	s.cancel()
	utils.FlushSentry()
	if err := s.registry.Close(); err != nil {
		log.Warnf("Unable to close task store: %v", err)
	}
}
