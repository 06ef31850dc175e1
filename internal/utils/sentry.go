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

package utils

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const sentryFlushTimeout = 2 * time.Second

// SentryRunOptions describes a goroutine guarded by sentry panic reporting.
type SentryRunOptions struct {
	RoutineName string

	// OnErrorFn is called after a panic in the routine has been reported.
	OnErrorFn func()
}

// Run starts fn in a new goroutine with its own sentry hub.
// A panic is reported, logged, and handed to OnErrorFn instead of crashing the process.
func (o SentryRunOptions) Run(fn func(*sentry.Hub)) {
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("routine", o.RoutineName)
	})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				hub.Recover(r)
				hub.Flush(sentryFlushTimeout)
				log.Errorf("Routine %s panicked: %v", o.RoutineName, r)
				if o.OnErrorFn != nil {
					o.OnErrorFn()
				}
			}
		}()
		fn(hub)
	}()
}

// InitSentry configures the global sentry client. An empty dsn disables reporting.
func InitSentry(dsn string, release string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          fmt.Sprintf("cvupload@%s", release),
		AttachStacktrace: true,
	}); err != nil {
		return errors.Wrap(err, "init sentry")
	}
	return nil
}

// FlushSentry waits for buffered events to be delivered.
func FlushSentry() {
	sentry.Flush(sentryFlushTimeout)
}
