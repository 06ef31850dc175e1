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

package name

import (
	"fmt"

	"github.com/oriser/regroup"
	"github.com/pkg/errors"
)

// TargetKind is the kind of catalog object an upload attaches to.
type TargetKind string

const (
	// LanguageTarget is a dubbed or subtitled language variant of a movie.
	LanguageTarget TargetKind = "languages"

	// EpisodeTarget is a single episode of a series.
	EpisodeTarget TargetKind = "episodes"
)

// Target is the domain object an upload attaches to.
// Format: languages/{id} or episodes/{id}
type Target struct {
	Kind TargetKind
	ID   string
}

var (
	targetRe = regroup.MustCompile(`^(?P<kind>languages|episodes)/(?P<id>[^/]+)$`)
)

func NewTarget(target string) (*Target, error) {
	if match, err := targetRe.Groups(target); err != nil {
		return nil, errors.Wrapf(err, "parse target name %q", target)
	} else {
		return &Target{Kind: TargetKind(match["kind"]), ID: match["id"]}, nil
	}
}

func NewEpisode(id string) Target {
	return Target{Kind: EpisodeTarget, ID: id}
}

func NewLanguage(id string) Target {
	return Target{Kind: LanguageTarget, ID: id}
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.Kind, t.ID)
}
