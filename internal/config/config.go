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

package config

import (
	"os"
	"strings"
	"time"

	"github.com/Manhosu/CineVision-sub004/internal/constants"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Config is the full cvupload configuration.
type Config struct {
	// Endpoint is the base url of the upload coordinator api.
	Endpoint string `koanf:"endpoint"`

	// Token is the bearer credential attached to coordinator calls.
	Token string `koanf:"token"`

	SentryDSN string `koanf:"sentry_dsn"`

	Upload  UploadConfig  `koanf:"upload"`
	Storage StorageConfig `koanf:"storage"`
}

// UploadConfig holds the upload policy.
type UploadConfig struct {
	PartSize          string        `koanf:"part_size"`
	PartConcurrency   int           `koanf:"part_concurrency"`
	FileConcurrency   int           `koanf:"file_concurrency"`
	MaxFileSize       string        `koanf:"max_file_size"`
	AllowedExtensions []string      `koanf:"allowed_extensions"`
	MaxRetries        int           `koanf:"max_retries"`
	KeepFailedSession bool          `koanf:"keep_failed_session"`
	Retention         time.Duration `koanf:"retention"`
	Timeout           time.Duration `koanf:"timeout"`
}

// StorageConfig configures direct multipart uploads against an S3 compatible bucket.
// When Bucket is empty the coordinator api at Endpoint is used instead.
type StorageConfig struct {
	Endpoint        string        `koanf:"endpoint"`
	Region          string        `koanf:"region"`
	AccessKeyID     string        `koanf:"access_key_id"`
	SecretAccessKey string        `koanf:"secret_access_key"`
	SessionToken    string        `koanf:"session_token"`
	Bucket          string        `koanf:"bucket"`
	Secure          bool          `koanf:"secure"`
	URLExpiry       time.Duration `koanf:"url_expiry"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Upload: UploadConfig{
			PartSize:          "10MiB",
			PartConcurrency:   3,
			FileConcurrency:   2,
			MaxFileSize:       "10GiB",
			AllowedExtensions: []string{".mp4", ".mkv", ".mov"},
			Retention:         2 * time.Minute,
			Timeout:           6 * time.Hour,
		},
		Storage: StorageConfig{
			Secure:    true,
			URLExpiry: time.Hour,
		},
	}
}

// UseDirectStorage reports whether uploads go straight to an S3 bucket.
func (c *Config) UseDirectStorage() bool {
	return c.Storage.Bucket != ""
}

// Validate checks that either the coordinator api or a direct bucket is configured.
func (c *Config) Validate() error {
	if c.UseDirectStorage() {
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint is required when storage.bucket is set")
		}
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			return errors.New("storage credentials are required when storage.bucket is set")
		}
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	return nil
}

// Provider loads the configuration.
type Provider interface {
	GetConfig() (*Config, error)
}

type koanfProvider struct {
	path string
}

// Provide returns a provider reading defaults, then the yaml file at path, then CVUPLOAD_ env vars.
func Provide(path string) Provider {
	return &koanfProvider{path: path}
}

func (p *koanfProvider) GetConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "load default config")
	}

	if p.path != "" {
		if _, err := os.Stat(p.path); err == nil {
			if err := k.Load(file.Provider(p.path), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "load config file %s", p.path)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat config file %s", p.path)
		}
	}

	if err := k.Load(env.Provider(constants.EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load config from env")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// envKey maps CVUPLOAD_UPLOAD__PART_SIZE to upload.part_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, constants.EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
