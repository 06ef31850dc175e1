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
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrCancelled is returned when an upload stops because it was cancelled.
// Tasks failing with it end in StatusCancelled rather than StatusError.
var ErrCancelled = errors.New("upload cancelled")

// AuthError means the credential was missing or rejected. No part is attempted.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError is a precondition violation detected before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid upload: %s", e.Reason)
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PartUploadError is a failed transfer of one part, or a transfer that returned no ETag.
type PartUploadError struct {
	PartNumber int

	// StatusCode is the destination's response status, zero when no response was received.
	StatusCode int
	Err        error
}

func (e *PartUploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload part %d failed with status %d: %v", e.PartNumber, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upload part %d failed: %v", e.PartNumber, e.Err)
}

func (e *PartUploadError) Unwrap() error { return e.Err }

// FinalizeError is a rejected or failed completion request.
type FinalizeError struct {
	Err error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalize upload failed: %v", e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }

// BatchError collects the failed tasks of a queue run, keyed by task id.
type BatchError struct {
	Errs map[string]error

	// order keeps the message stable across runs.
	order []string
}

func (e *BatchError) add(taskID string, err error) {
	if e.Errs == nil {
		e.Errs = make(map[string]error)
	}
	if _, ok := e.Errs[taskID]; !ok {
		e.order = append(e.order, taskID)
	}
	e.Errs[taskID] = err
}

func (e *BatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d uploads failed", len(e.Errs))
	for _, id := range e.order {
		fmt.Fprintf(&sb, "\n  %s: %v", id, e.Errs[id])
	}
	return sb.String()
}

// Unwrap exposes the task errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.order))
	for _, id := range e.order {
		errs = append(errs, e.Errs[id])
	}
	return errs
}
