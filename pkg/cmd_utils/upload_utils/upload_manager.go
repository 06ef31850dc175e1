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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Manhosu/CineVision-sub004/api"
	"github.com/Manhosu/CineVision-sub004/internal/fs"
	"github.com/Manhosu/CineVision-sub004/internal/name"
	"github.com/Manhosu/CineVision-sub004/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/getsentry/sentry-go"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// abortTimeout bounds the best effort abort of a remote session after the upload context is gone.
const abortTimeout = 30 * time.Second

// PendingUpload is a file waiting to be uploaded to a target.
type PendingUpload struct {
	File   fs.FileRef
	Target name.Target

	// Title is a display label, e.g. the episode name.
	Title string
}

// UploadManager drives multipart uploads of whole files: it plans parts, uploads them
// through presigned urls under a concurrency bound, and finalizes the remote session.
type UploadManager struct {
	// client and opts
	opts     *UploadManagerOpts
	apiOpts  *ApiOpts
	registry *TaskRegistry
	now      func() time.Time

	// running uploads
	mu      sync.Mutex
	cancels map[string]context.CancelCauseFunc

	// Monitor related
	windowWidth atomic.Int32 // written by the monitor, read by part workers
	spinnerIdx  int
	manualQuit  bool
	monitor     *tea.Program
	noTTY       bool
	stopReport  func()

	// other
	isDebug bool
}

func NewUploadManager(apiOpts *ApiOpts, registry *TaskRegistry, opts *UploadManagerOpts) (*UploadManager, error) {
	if err := opts.Valid(); err != nil {
		return nil, errors.Wrap(err, "invalid upload options")
	}
	if apiOpts == nil || apiOpts.StorageCoordinator == nil {
		return nil, errors.New("storage coordinator is required")
	}
	if apiOpts.PartUploader == nil {
		apiOpts.PartUploader = NewHTTPPartUploader(nil)
	}
	if registry == nil {
		registry = NewTaskRegistry(TaskRegistryOpts{})
	}

	// Determine if we should use interactive mode
	useInteractive := opts.ShouldUseInteractiveMode()

	um := &UploadManager{
		opts:     opts,
		apiOpts:  apiOpts,
		registry: registry,
		now:      time.Now,
		cancels:  make(map[string]context.CancelCauseFunc),
		isDebug:  log.GetLevel() >= log.DebugLevel,
		noTTY:    !useInteractive,
	}

	// Log the mode detection
	if !opts.NoTTY && !opts.TTY && IsHeadlessEnvironment() {
		log.Info("Detected headless environment, automatically using non-interactive mode")
	}

	// Only create tea.Program if we're using interactive mode
	if useInteractive {
		um.monitor = tea.NewProgram(um)
	}

	return um, nil
}

func (um *UploadManager) Registry() *TaskRegistry {
	return um.registry
}

// Upload creates a task for up and uploads it, blocking until the task settles.
// The returned task reflects the final state even when an error is returned.
func (um *UploadManager) Upload(ctx context.Context, up PendingUpload) (UploadTask, error) {
	task, err := um.registry.Create(newUploadTask(up))
	if err != nil {
		return UploadTask{}, err
	}

	err = um.run(ctx, task.ID, up)
	final, ok := um.registry.Get(task.ID)
	if !ok {
		final = task
	}
	return final, err
}

func newUploadTask(up PendingUpload) UploadTask {
	task := UploadTask{
		Target: up.Target.String(),
		Title:  up.Title,
		Status: StatusPending,
	}
	if up.File != nil {
		task.FileName = up.File.Name()
		task.FileSize = up.File.Size()
	}
	return task
}

// Cancel stops a task. A running task stops launching parts and aborts its in-flight
// transfers; a task that has not started yet is marked cancelled and never starts.
func (um *UploadManager) Cancel(taskID string) error {
	um.mu.Lock()
	defer um.mu.Unlock()

	if cancel, ok := um.cancels[taskID]; ok {
		cancel(ErrCancelled)
		return nil
	}
	if _, err := um.registry.SetStatus(taskID, StatusCancelled, ErrCancelled.Error()); err != nil {
		return errors.Wrapf(err, "cancel task %s", taskID)
	}
	return nil
}

// CancelAll cancels every running task.
func (um *UploadManager) CancelAll() {
	um.mu.Lock()
	defer um.mu.Unlock()

	for _, cancel := range um.cancels {
		cancel(ErrCancelled)
	}
}

// ClearStuck cancels running uploads and drops every uploading task from the registry.
func (um *UploadManager) ClearStuck() []string {
	um.CancelAll()
	return um.registry.ClearStuck()
}

// run uploads an existing task and records the outcome in the registry.
func (um *UploadManager) run(ctx context.Context, taskID string, up PendingUpload) error {
	taskCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if um.opts.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		taskCtx, cancelTimeout = context.WithTimeout(taskCtx, um.opts.Timeout)
		defer cancelTimeout()
	}

	um.mu.Lock()
	task, ok := um.registry.Get(taskID)
	if !ok {
		um.mu.Unlock()
		return errors.Errorf("task %s not found", taskID)
	}
	if task.Status == StatusCancelled {
		um.mu.Unlock()
		return errors.Wrapf(ErrCancelled, "task %s", taskID)
	}
	if task.Status != StatusPending {
		um.mu.Unlock()
		return errors.Errorf("task %s is %s, only pending tasks can start", taskID, task.Status)
	}
	um.cancels[taskID] = cancel
	um.mu.Unlock()

	defer func() {
		um.mu.Lock()
		delete(um.cancels, taskID)
		um.mu.Unlock()
	}()

	err := um.upload(taskCtx, taskID, up)
	return um.finish(taskCtx, taskID, up, err)
}

// upload validates, opens the remote session, uploads every part and finalizes.
func (um *UploadManager) upload(ctx context.Context, taskID string, up PendingUpload) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = um.opts.validateFile(up.File); err != nil {
		return err
	}

	if um.apiOpts.TokenSource != nil {
		if _, tokenErr := um.apiOpts.Token(ctx); tokenErr != nil {
			return &AuthError{Err: tokenErr}
		}
	}

	startedAt := um.now()
	if _, err = um.registry.Update(taskID, func(t *UploadTask) error {
		t.Status = StatusUploading
		t.StartedAt = startedAt
		return nil
	}); err != nil {
		return err
	}

	session, err := um.apiOpts.Initiate(ctx, api.InitiateRequest{
		Target:      up.Target,
		Filename:    up.File.Name(),
		ContentType: fs.ContentType(up.File.Name()),
		FileSize:    up.File.Size(),
	})
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrNoToken) {
			return &AuthError{Err: err}
		}
		return errors.Wrap(err, "initiate upload")
	}
	um.debugF("Initiated upload %s for %s, key: %s", session.SessionID, up.File.Name(), session.StorageKey)

	defer func() {
		if err != nil {
			um.abortSession(ctx, taskID, session, err)
		}
	}()

	partSize := um.opts.partSizeUint64
	if session.PartSize > 0 {
		// The coordinator presigned its urls for its own part size.
		partSize = uint64(session.PartSize)
	}
	parts, err := PlanParts(uint64(up.File.Size()), partSize)
	if err != nil {
		return err
	}
	um.debugF("Total part: %d, part size: %s, last part size: %s",
		len(parts), humanize.IBytes(partSize), humanize.IBytes(uint64(parts[len(parts)-1].Size())))

	if _, err = um.registry.Update(taskID, func(t *UploadTask) error {
		t.SessionID = session.SessionID
		t.StorageKey = session.StorageKey
		t.PartSize = int64(partSize)
		t.TotalParts = len(parts)
		return nil
	}); err != nil {
		return err
	}

	completed, err := um.uploadParts(ctx, taskID, up.File, session, parts, startedAt)
	if err != nil {
		return err
	}

	return um.completeUpload(ctx, taskID, session, completed, len(parts))
}

// uploadParts launches parts in part number order with at most PartConcurrency in flight.
// The first failure stops further launches and cancels the parts still in flight.
func (um *UploadManager) uploadParts(ctx context.Context, taskID string, file fs.FileRef, session *api.InitiateResult, parts []Part, startedAt time.Time) ([]api.CompletedPart, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(um.opts.PartConcurrency)

	aggregator := newProgressAggregator(taskID, file.Size(), len(parts), startedAt, um.now)
	var resultMu sync.Mutex
	completed := make([]api.CompletedPart, 0, len(parts))

	for _, part := range parts {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			completedPart, err := um.uploadPart(gctx, session, part, file)
			if err != nil {
				um.debugF("Upload part %d of %s failed: %v", part.Number, file.Name(), err)
				return err
			}

			resultMu.Lock()
			defer resultMu.Unlock()
			if err := gctx.Err(); err != nil {
				// Another part failed while this one was in flight; the result is discarded.
				return err
			}
			completed = append(completed, completedPart)
			snapshot := aggregator.add(part)
			um.debugF("Upload part %d of %s succeeded (%.1f%%)", part.Number, file.Name(), snapshot.Percentage)
			return um.registry.recordProgress(taskID, completedPart, snapshot)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return completed, nil
}

// uploadPart resolves the destination url of part and transfers it under the retry policy.
func (um *UploadManager) uploadPart(ctx context.Context, session *api.InitiateResult, part Part, file fs.FileRef) (api.CompletedPart, error) {
	url, ok := session.PartURLs[part.Number]

	var result api.CompletedPart
	err := um.opts.Retry.Do(ctx, func() error {
		if !ok {
			u, err := um.apiOpts.GetPartUploadURL(ctx, session.SessionID, session.StorageKey, part.Number)
			if err != nil {
				if errors.Is(err, api.ErrUnauthorized) {
					return &AuthError{Err: err}
				}
				return &PartUploadError{PartNumber: part.Number, Err: err}
			}
			url, ok = u, true
		}

		completedPart, err := um.apiOpts.UploadPart(ctx, url, part, file)
		if err != nil {
			return err
		}
		result = completedPart
		return nil
	}, func(err error, wait time.Duration) {
		um.debugF("Retrying part %d of %s in %s: %v", part.Number, file.Name(), wait, err)
	})
	return result, err
}

// completeUpload checks that every part has an integrity tag, orders the parts and finalizes the session.
func (um *UploadManager) completeUpload(ctx context.Context, taskID string, session *api.InitiateResult, completed []api.CompletedPart, totalParts int) error {
	if err := verifyCompletedParts(completed, totalParts); err != nil {
		return &FinalizeError{Err: err}
	}

	sorted := slices.Clone(completed)
	slices.SortFunc(sorted, func(i, j api.CompletedPart) int {
		return i.PartNumber - j.PartNumber
	})

	um.debugF("Completing multipart upload %s with %d parts", session.SessionID, len(sorted))
	if err := um.apiOpts.Complete(ctx, session.SessionID, session.StorageKey, sorted); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &FinalizeError{Err: err}
	}

	if _, err := um.registry.Update(taskID, func(t *UploadTask) error {
		t.Status = StatusCompleted
		t.Error = ""
		t.Progress = 100
		return nil
	}); err != nil {
		return errors.Wrap(err, "mark upload completed")
	}
	return nil
}

// verifyCompletedParts checks that parts are exactly 1..totalParts, each with an ETag.
func verifyCompletedParts(parts []api.CompletedPart, totalParts int) error {
	got := mapset.NewThreadUnsafeSet[int]()
	for _, p := range parts {
		if p.ETag == "" {
			return errors.Errorf("part %d has no ETag", p.PartNumber)
		}
		if !got.Add(p.PartNumber) {
			return errors.Errorf("part %d recorded twice", p.PartNumber)
		}
	}

	want := mapset.NewThreadUnsafeSet[int]()
	for i := 1; i <= totalParts; i++ {
		want.Add(i)
	}
	if !got.Equal(want) {
		missing := want.Difference(got).ToSlice()
		unexpected := got.Difference(want).ToSlice()
		slices.Sort(missing)
		slices.Sort(unexpected)
		return errors.Errorf("parts do not cover 1..%d, missing: %v, unexpected: %v", totalParts, missing, unexpected)
	}
	return nil
}

// abortSession discards the remote session of a failed or cancelled upload.
// Failed uploads keep their session when KeepFailedSession is set.
func (um *UploadManager) abortSession(ctx context.Context, taskID string, session *api.InitiateResult, cause error) {
	if !isCancellation(ctx, cause) && um.opts.KeepFailedSession {
		um.debugF("Keeping multipart upload %s of task %s", session.SessionID, taskID)
		return
	}

	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()
	if err := um.apiOpts.Abort(abortCtx, session.SessionID, session.StorageKey); err != nil {
		um.debugF("Abort multipart upload %s failed: %v", session.SessionID, err)
		if um.noTTY {
			log.Warnf("Unable to abort multipart upload %s: %v", session.SessionID, err)
		}
		return
	}
	um.debugF("Aborted multipart upload %s", session.SessionID)
}

// finish records the outcome of a task.
func (um *UploadManager) finish(ctx context.Context, taskID string, up PendingUpload, err error) error {
	displayName := taskID
	if up.File != nil {
		displayName = up.File.Name()
	}

	if err == nil {
		if um.noTTY {
			log.Infof("Completed multipart upload: %s -> %s", displayName, up.Target)
		}
		return nil
	}

	status := StatusError
	switch {
	case isCancellation(ctx, err):
		status = StatusCancelled
		err = errors.Wrapf(ErrCancelled, "upload %s", displayName)
	case errors.Is(err, context.DeadlineExceeded):
		err = errors.Wrapf(err, "upload %s timed out", displayName)
	}

	if _, setErr := um.registry.SetStatus(taskID, status, err.Error()); setErr != nil {
		um.debugF("Unable to record %s for task %s: %v", status, taskID, setErr)
	}
	if um.noTTY {
		if status == StatusCancelled {
			log.Warnf("Upload cancelled for %s", displayName)
		} else {
			log.Errorf("Upload failed for %s: %v", displayName, err)
		}
	}
	return err
}

// isCancellation reports whether err stems from a cancel rather than a failure or timeout.
func isCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, ErrCancelled) || errors.Is(context.Cause(ctx), ErrCancelled) {
		return true
	}
	return errors.Is(err, context.Canceled) && !errors.Is(context.Cause(ctx), context.DeadlineExceeded)
}

// goWithSentry starts a goroutine with sentry error publishing.
// Also stops the monitor and waits for it to finish if an error occurs.
func (um *UploadManager) goWithSentry(routineName string, fn func(*sentry.Hub)) {
	utils.SentryRunOptions{
		RoutineName: routineName,
		OnErrorFn:   um.StopMonitor,
	}.Run(fn)
}

// debugF is used to print debug messages.
// cannot use logrus here because tea.Program overtakes the log output.
func (um *UploadManager) debugF(format string, args ...interface{}) {
	if um.isDebug {
		msg := fmt.Sprintf(format, args...)
		if um.noTTY {
			// In non-interactive mode, use logrus
			log.Debug(msg)
		} else if um.monitor != nil {
			// In interactive mode, use tea.Program
			debugMsg := wordwrap.String(fmt.Sprintf("DEBUG: %s", msg), int(um.windowWidth.Load()))
			um.monitor.Println(debugMsg)
		}
	}
}
