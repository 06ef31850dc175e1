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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Manhosu/CineVision-sub004/internal/name"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	initPath         = "/api/v1/admin/uploads/init"
	presignedURLPath = "/api/v1/admin/uploads/presigned-url"
	completePath     = "/api/v1/admin/uploads/complete"
	abortPath        = "/api/v1/admin/uploads/abort"

	defaultRetryMax     = 3
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
)

type CoordinatorClientOpts struct {
	BaseURL string
	Tokens  TokenSource

	// Transport is the round tripper for control plane calls. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	// RetryMax is the number of retries on 5xx and connection errors. Negative disables retries.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

type initRequest struct {
	EpisodeID         string `json:"episodeId,omitempty"`
	ContentLanguageID string `json:"contentLanguageId,omitempty"`
	Filename          string `json:"filename"`
	ContentType       string `json:"contentType"`
	Size              int64  `json:"size"`
}

type presignedPart struct {
	PartNumber int    `json:"partNumber"`
	URL        string `json:"url"`
}

type initResponse struct {
	UploadID      string          `json:"uploadId"`
	Key           string          `json:"key"`
	PartSize      int64           `json:"partSize"`
	PartsCount    int             `json:"partsCount"`
	PresignedURLs []presignedPart `json:"presignedUrls"`
}

type presignedURLRequest struct {
	UploadID   string `json:"uploadId"`
	Key        string `json:"key"`
	PartNumber int    `json:"partNumber"`
}

type presignedURLResponse struct {
	URL string `json:"url"`
}

type completeRequest struct {
	UploadID string          `json:"uploadId"`
	Key      string          `json:"key"`
	Parts    []CompletedPart `json:"parts"`
}

type abortRequest struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type coordinatorClient struct {
	httpClient *retryablehttp.Client
	baseURL    string
	tokens     TokenSource
}

// NewCoordinatorClient returns a StorageCoordinator talking JSON over HTTP to the upload api.
func NewCoordinatorClient(opts CoordinatorClientOpts) StorageCoordinator {
	client := retryablehttp.NewClient()
	if opts.Transport != nil {
		client.HTTPClient = &http.Client{Transport: opts.Transport}
	}
	client.RetryMax = defaultRetryMax
	if opts.RetryMax != 0 {
		client.RetryMax = max(opts.RetryMax, 0)
	}
	client.RetryWaitMin = lo.Ternary(opts.RetryWaitMin > 0, opts.RetryWaitMin, defaultRetryWaitMin)
	client.RetryWaitMax = lo.Ternary(opts.RetryWaitMax > 0, opts.RetryWaitMax, defaultRetryWaitMax)
	// Hand back the last response so the server's message can be surfaced.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = nil
	if log.GetLevel() == log.TraceLevel {
		client.Logger = log.StandardLogger()
	}

	return &coordinatorClient{
		httpClient: client,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tokens:     opts.Tokens,
	}
}

func (c *coordinatorClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	body := initRequest{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Size:        req.FileSize,
	}
	switch req.Target.Kind {
	case name.EpisodeTarget:
		body.EpisodeID = req.Target.ID
	case name.LanguageTarget:
		body.ContentLanguageID = req.Target.ID
	default:
		return nil, errors.Errorf("unsupported upload target %s", req.Target)
	}

	var res initResponse
	if err := c.post(ctx, initPath, body, &res); err != nil {
		return nil, errors.Wrap(err, "initiate multipart upload")
	}
	if res.UploadID == "" || res.Key == "" {
		return nil, errors.New("initiate multipart upload: response is missing uploadId or key")
	}

	result := &InitiateResult{
		SessionID:  res.UploadID,
		StorageKey: res.Key,
		PartSize:   res.PartSize,
		PartURLs: lo.SliceToMap(res.PresignedURLs, func(p presignedPart) (int, string) {
			return p.PartNumber, p.URL
		}),
	}
	return result, nil
}

func (c *coordinatorClient) GetPartUploadURL(ctx context.Context, sessionID string, storageKey string, partNumber int) (string, error) {
	var res presignedURLResponse
	if err := c.post(ctx, presignedURLPath, presignedURLRequest{
		UploadID:   sessionID,
		Key:        storageKey,
		PartNumber: partNumber,
	}, &res); err != nil {
		return "", errors.Wrapf(err, "get upload url for part %d", partNumber)
	}
	if res.URL == "" {
		return "", errors.Errorf("get upload url for part %d: empty url", partNumber)
	}
	return res.URL, nil
}

func (c *coordinatorClient) Complete(ctx context.Context, sessionID string, storageKey string, parts []CompletedPart) error {
	if err := c.post(ctx, completePath, completeRequest{
		UploadID: sessionID,
		Key:      storageKey,
		Parts:    parts,
	}, nil); err != nil {
		return errors.Wrap(err, "complete multipart upload")
	}
	return nil
}

func (c *coordinatorClient) Abort(ctx context.Context, sessionID string, storageKey string) error {
	if err := c.post(ctx, abortPath, abortRequest{
		UploadID: sessionID,
		Key:      storageKey,
	}, nil); err != nil {
		return errors.Wrap(err, "abort multipart upload")
	}
	return nil
}

// post sends body as JSON to path and decodes a 2xx response into out when out is not nil.
func (c *coordinatorClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return errors.Wrap(err, "get auth token")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			log.Debugf("close response body: %v", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return unwrapError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// unwrapError turns a non 2xx response into an error carrying the server's message.
func unwrapError(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read error response (status %d)", resp.StatusCode)
	}

	message := strings.TrimSpace(string(data))
	var errRes errorResponse
	if json.Unmarshal(data, &errRes) == nil && errRes.Message != "" {
		message = errRes.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Wrapf(ErrUnauthorized, "status %d: %s", resp.StatusCode, message)
	default:
		return errors.Errorf("status %d: %s", resp.StatusCode, message)
	}
}
