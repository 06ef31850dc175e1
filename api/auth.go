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

package api

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNoToken is returned by a TokenSource that has no credential to hand out.
	ErrNoToken = errors.New("no auth token configured")

	// ErrUnauthorized is returned when the coordinator rejects the credential.
	ErrUnauthorized = errors.New("unauthorized")
)

// TokenSource supplies the bearer credential attached to coordinator calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

func (t StaticToken) Token(_ context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}
