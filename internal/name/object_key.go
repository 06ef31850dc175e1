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
	"strconv"

	"github.com/oriser/regroup"
	"github.com/pkg/errors"
)

// ObjectKey is the storage location of an uploaded media file.
// Format: raw/{kind}/{id}/{unix millis}-{filename}
type ObjectKey struct {
	Target    Target
	Timestamp int64
	Filename  string
}

var (
	objectKeyRe = regroup.MustCompile(`^raw/(?P<kind>languages|episodes)/(?P<id>[^/]+)/(?P<ts>\d+)-(?P<file>[^/]+)$`)
)

func NewObjectKey(key string) (*ObjectKey, error) {
	match, err := objectKeyRe.Groups(key)
	if err != nil {
		return nil, errors.Wrapf(err, "parse object key %q", key)
	}
	ts, err := strconv.ParseInt(match["ts"], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parse object key timestamp %q", match["ts"])
	}
	return &ObjectKey{
		Target:    Target{Kind: TargetKind(match["kind"]), ID: match["id"]},
		Timestamp: ts,
		Filename:  match["file"],
	}, nil
}

func (k ObjectKey) String() string {
	return fmt.Sprintf("raw/%s/%s/%d-%s", k.Target.Kind, k.Target.ID, k.Timestamp, k.Filename)
}
