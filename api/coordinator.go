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

	"github.com/Manhosu/CineVision-sub004/internal/name"
)

// StorageCoordinator owns the server side of a multipart upload session.
type StorageCoordinator interface {
	// Initiate opens a multipart upload session for one file.
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)

	// GetPartUploadURL returns a presigned destination url for one part.
	GetPartUploadURL(ctx context.Context, sessionID string, storageKey string, partNumber int) (string, error)

	// Complete finalizes the session. Parts must be ascending and gap free.
	Complete(ctx context.Context, sessionID string, storageKey string, parts []CompletedPart) error

	// Abort discards the session and every part uploaded so far.
	Abort(ctx context.Context, sessionID string, storageKey string) error
}

type InitiateRequest struct {
	Target      name.Target
	Filename    string
	ContentType string
	FileSize    int64
}

// InitiateResult identifies an open upload session.
type InitiateResult struct {
	SessionID  string
	StorageKey string

	// PartSize is set when the coordinator decides the part size itself.
	// Zero means the caller's part size is used.
	PartSize int64

	// PartURLs holds presigned urls handed out at initiation, keyed by part number.
	// Parts missing here are requested through GetPartUploadURL.
	PartURLs map[int]string
}

// CompletedPart is a stored part and the integrity tag the storage returned for it.
type CompletedPart struct {
	PartNumber int    `json:"PartNumber"`
	ETag       string `json:"ETag"`
}
