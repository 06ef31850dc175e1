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

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// QueuedUpload is an entry of the pending upload queue.
type QueuedUpload struct {
	TaskID string
	PendingUpload

	// Failed entries stay listed until they are re-submitted.
	Failed bool

	dispatched bool
}

// UploadQueue sequences whole file uploads so that at most FileConcurrency run at once.
type UploadQueue struct {
	um          *UploadManager
	concurrency int

	mu      sync.Mutex
	entries []*QueuedUpload
}

// NewUploadQueue returns a queue running uploads through um.
// A concurrency below 1 falls back to the manager's FileConcurrency.
func NewUploadQueue(um *UploadManager, concurrency int) *UploadQueue {
	if concurrency < 1 {
		concurrency = um.opts.FileConcurrency
	}
	return &UploadQueue{
		um:          um,
		concurrency: concurrency,
	}
}

// Enqueue adds up to the end of the queue with a pending task and returns the task id.
// An entry for the same target that has not started yet is replaced; its pending task is dropped.
func (q *UploadQueue) Enqueue(up PendingUpload) (string, error) {
	task, err := q.um.registry.Create(newUploadTask(up))
	if err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	replaced, ok := lo.Find(q.entries, func(e *QueuedUpload) bool {
		return e.Target == up.Target && !e.dispatched
	})
	if ok {
		q.entries = lo.Without(q.entries, replaced)
		if !replaced.Failed {
			q.um.registry.Remove(replaced.TaskID)
		}
		q.um.debugF("Replaced queued upload %s for %s", replaced.TaskID, up.Target)
	}

	q.entries = append(q.entries, &QueuedUpload{TaskID: task.ID, PendingUpload: up})
	return task.ID, nil
}

// Remove drops an entry that is not running and cancels its task if it is still pending.
func (q *UploadQueue) Remove(taskID string) bool {
	q.mu.Lock()
	entry, ok := lo.Find(q.entries, func(e *QueuedUpload) bool {
		return e.TaskID == taskID && !e.dispatched
	})
	if ok {
		q.entries = lo.Without(q.entries, entry)
	}
	q.mu.Unlock()

	if ok && !entry.Failed {
		if err := q.um.Cancel(taskID); err != nil {
			q.um.debugF("Cancel removed upload %s failed: %v", taskID, err)
		}
	}
	return ok
}

// Pending returns copies of the queued and failed entries in queue order.
func (q *UploadQueue) Pending() []QueuedUpload {
	q.mu.Lock()
	defer q.mu.Unlock()

	return lo.Map(q.entries, func(e *QueuedUpload, _ int) QueuedUpload {
		return *e
	})
}

// Run uploads every queued entry with a fixed pool of workers fed in FIFO order.
// It returns once the queue holds no runnable entry and every worker is idle.
// Failures are joined into a *BatchError; cancelled entries are not failures.
func (q *UploadQueue) Run(ctx context.Context) error {
	jobs := make(chan *QueuedUpload)
	batchErr := &BatchError{}
	var errMu sync.Mutex
	var wg sync.WaitGroup

	// Start the upload workers
	for i := 0; i < q.concurrency; i++ {
		wg.Add(1)
		q.um.goWithSentry(fmt.Sprintf("upload worker %d", i), func(_ *sentry.Hub) {
			defer wg.Done()
			defer func() {
				q.um.debugF("Worker %d stopped", i)
			}()

			for entry := range jobs {
				q.um.debugF("Worker %d received upload task %s: %s", i, entry.TaskID, entry.Target)
				err := q.um.run(ctx, entry.TaskID, entry.PendingUpload)
				q.settle(entry, err)
				if err != nil && !errors.Is(err, ErrCancelled) {
					errMu.Lock()
					batchErr.add(entry.TaskID, err)
					errMu.Unlock()
				}
			}
		})
	}

	// Feed the workers; the unbuffered channel hands out an entry only when a worker is free.
	for entry := q.next(); entry != nil; entry = q.next() {
		jobs <- entry
	}
	close(jobs)
	wg.Wait()

	if len(batchErr.Errs) > 0 {
		return batchErr
	}
	return nil
}

// next marks the oldest runnable entry dispatched and returns it, or nil when none is left.
func (q *UploadQueue) next() *QueuedUpload {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := lo.Find(q.entries, func(e *QueuedUpload) bool {
		return !e.dispatched && !e.Failed
	})
	if !ok {
		return nil
	}
	entry.dispatched = true
	return entry
}

// settle removes a succeeded or cancelled entry and keeps a failed one listed.
func (q *UploadQueue) settle(entry *QueuedUpload, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil && !errors.Is(err, ErrCancelled) {
		entry.Failed = true
		entry.dispatched = false
		return
	}
	q.entries = lo.Without(q.entries, entry)
}
