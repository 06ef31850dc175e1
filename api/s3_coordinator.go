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
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/Manhosu/CineVision-sub004/internal/name"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	defaultS3Region    = "us-east-1"
	defaultPresignTTL  = time.Hour
	maxPresignedExpiry = 7 * 24 * time.Hour
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// S3Options configures a coordinator that drives the multipart session against a bucket directly.
type S3Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Bucket          string
	Secure          bool

	// URLExpiry is the lifetime of presigned part urls.
	URLExpiry time.Duration

	Transport http.RoundTripper

	// Now is used for storage key timestamps.
	Now func() time.Time
}

type s3Coordinator struct {
	core   minio.Core
	bucket string
	expiry time.Duration
	now    func() time.Time
}

// NewS3Coordinator returns a StorageCoordinator that opens sessions on an S3 compatible bucket
// and hands out presigned part urls. The region is fixed up front so presigning never needs a
// bucket location lookup.
func NewS3Coordinator(opts S3Options) (StorageCoordinator, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	region := lo.Ternary(opts.Region != "", opts.Region, defaultS3Region)
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		Secure:    opts.Secure,
		Region:    region,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create minio client")
	}

	expiry := opts.URLExpiry
	if expiry <= 0 {
		expiry = defaultPresignTTL
	}
	expiry = min(expiry, maxPresignedExpiry)

	return &s3Coordinator{
		core:   minio.Core{Client: mc},
		bucket: opts.Bucket,
		expiry: expiry,
		now:    lo.Ternary(opts.Now != nil, opts.Now, time.Now),
	}, nil
}

func (c *s3Coordinator) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	key := StorageKey(req.Target, req.Filename, c.now())
	uploadID, err := c.core.NewMultipartUpload(ctx, c.bucket, key, minio.PutObjectOptions{
		ContentType: req.ContentType,
		UserMetadata: map[string]string{
			"target": req.Target.String(),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "new multipart upload failed")
	}
	return &InitiateResult{SessionID: uploadID, StorageKey: key}, nil
}

func (c *s3Coordinator) GetPartUploadURL(ctx context.Context, sessionID string, storageKey string, partNumber int) (string, error) {
	params := url.Values{}
	params.Set("partNumber", strconv.Itoa(partNumber))
	params.Set("uploadId", sessionID)

	u, err := c.core.Presign(ctx, http.MethodPut, c.bucket, storageKey, c.expiry, params)
	if err != nil {
		return "", errors.Wrapf(err, "presign part %d", partNumber)
	}
	return u.String(), nil
}

func (c *s3Coordinator) Complete(ctx context.Context, sessionID string, storageKey string, parts []CompletedPart) error {
	completeParts := lo.Map(parts, func(p CompletedPart, _ int) minio.CompletePart {
		return minio.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag}
	})
	if _, err := c.core.CompleteMultipartUpload(ctx, c.bucket, storageKey, sessionID, completeParts, minio.PutObjectOptions{}); err != nil {
		return errors.Wrap(err, "complete multipart upload failed")
	}
	return nil
}

func (c *s3Coordinator) Abort(ctx context.Context, sessionID string, storageKey string) error {
	if err := c.core.AbortMultipartUpload(ctx, c.bucket, storageKey, sessionID); err != nil {
		return errors.Wrap(err, "abort multipart upload failed")
	}
	return nil
}

// StorageKey builds the object key for an upload: raw/{kind}/{id}/{unix millis}-{sanitized filename}.
func StorageKey(target name.Target, filename string, at time.Time) string {
	return name.ObjectKey{Target: target, Timestamp: at.UnixMilli(), Filename: SanitizeFilename(filename)}.String()
}

// SanitizeFilename replaces every character outside [a-zA-Z0-9.-] with an underscore.
func SanitizeFilename(filename string) string {
	return unsafeKeyChars.ReplaceAllString(filename, "_")
}
