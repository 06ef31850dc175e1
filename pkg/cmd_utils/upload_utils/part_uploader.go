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

package upload_utils

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/Manhosu/CineVision-sub004/api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// PartUploader transfers the bytes of one part to a presigned destination.
type PartUploader interface {
	UploadPart(ctx context.Context, url string, part Part, body io.ReaderAt) (api.CompletedPart, error)
}

type httpPartUploader struct {
	client *http.Client
}

// NewHTTPPartUploader returns a PartUploader doing one PUT per part.
// The url is expected to carry its own authorization.
func NewHTTPPartUploader(client *http.Client) PartUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpPartUploader{client: client}
}

func (u *httpPartUploader) UploadPart(ctx context.Context, url string, part Part, body io.ReaderAt) (api.CompletedPart, error) {
	sectionReader := io.NewSectionReader(body, part.Start, part.Size())
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, sectionReader)
	if err != nil {
		return api.CompletedPart{}, &PartUploadError{PartNumber: part.Number, Err: errors.Wrap(err, "create request")}
	}
	req.ContentLength = part.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := u.client.Do(req)
	if err != nil {
		return api.CompletedPart{}, &PartUploadError{PartNumber: part.Number, Err: err}
	}
	defer func(body io.ReadCloser) {
		_, _ = io.Copy(io.Discard, body)
		if err := body.Close(); err != nil {
			log.Debugf("Close part %d response body failed: %v", part.Number, err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return api.CompletedPart{}, &PartUploadError{
			PartNumber: part.Number,
			StatusCode: resp.StatusCode,
			Err:        errors.Errorf("destination rejected part: %s", strings.TrimSpace(string(msg))),
		}
	}

	etag := NormalizeETag(resp.Header.Get("ETag"))
	if etag == "" {
		return api.CompletedPart{}, &PartUploadError{
			PartNumber: part.Number,
			StatusCode: resp.StatusCode,
			Err:        errors.New("destination returned no ETag"),
		}
	}

	return api.CompletedPart{PartNumber: part.Number, ETag: etag}, nil
}

// NormalizeETag strips the quotes storage backends put around ETag values and the weak validator prefix.
func NormalizeETag(etag string) string {
	etag = strings.TrimPrefix(strings.TrimSpace(etag), "W/")
	return strings.Trim(etag, `"`)
}
