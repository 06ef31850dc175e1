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
	"encoding/json"
	"sync"
	"time"

	"github.com/Manhosu/CineVision-sub004/api"
	"github.com/Manhosu/CineVision-sub004/internal/taskstore"
	"github.com/Manhosu/CineVision-sub004/internal/utils"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

const (
	defaultRetention = 2 * time.Minute
	minSweepInterval = time.Second
)

// TaskStatus is the lifecycle state of an upload task.
type TaskStatus string

const (
	// StatusPending is a task waiting for a free upload slot.
	StatusPending TaskStatus = "pending"

	// StatusUploading is a task whose parts are being transferred.
	StatusUploading TaskStatus = "uploading"

	// StatusCompleted is a task whose multipart session was finalized.
	StatusCompleted TaskStatus = "completed"

	// StatusConverting is a completed upload picked up by the processing pipeline.
	StatusConverting TaskStatus = "converting"

	// StatusReady is a processed upload.
	StatusReady TaskStatus = "ready"

	// StatusError is a failed task. It is never retried automatically.
	StatusError TaskStatus = "error"

	// StatusCancelled is a task stopped by the user.
	StatusCancelled TaskStatus = "cancelled"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:    {StatusUploading, StatusCancelled, StatusError},
	StatusUploading:  {StatusCompleted, StatusError, StatusCancelled},
	StatusCompleted:  {StatusConverting},
	StatusConverting: {StatusReady, StatusError},
}

// CanTransition reports whether a task may move from s to next.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	return s == next || slices.Contains(taskTransitions[s], next)
}

// IsSettled reports whether this core is done with a task in status s.
func (s TaskStatus) IsSettled() bool {
	switch s {
	case StatusCompleted, StatusReady, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// UploadTask is one file being transferred.
type UploadTask struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	Target   string `json:"target"`
	Title    string `json:"title,omitempty"`

	PartSize      int64               `json:"part_size"`
	TotalParts    int                 `json:"total_parts"`
	UploadedParts []api.CompletedPart `json:"uploaded_parts,omitempty"`
	UploadedBytes int64               `json:"uploaded_bytes"`
	Progress      float64             `json:"progress"`
	Throughput    float64             `json:"throughput"`

	Status TaskStatus `json:"status"`
	Error  string     `json:"error,omitempty"`

	SessionID  string `json:"session_id,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

func (t *UploadTask) clone() UploadTask {
	c := *t
	c.UploadedParts = slices.Clone(t.UploadedParts)
	return c
}

type TaskRegistryOpts struct {
	// Retention is how long settled tasks stay listed. Zero means two minutes, negative keeps them forever.
	Retention time.Duration

	// Store mirrors every task change when set. The registry closes it on Close.
	Store *taskstore.Store

	Now func() time.Time
}

// TaskRegistry holds the state of every upload task of a session.
// Writers go through Update; readers get copies.
type TaskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*UploadTask
	order []string

	observersMu sync.RWMutex
	observers   map[int]ProgressObserver
	nextObsID   int

	retention   time.Duration
	store       *taskstore.Store
	now         func() time.Time
	stopSweeper context.CancelFunc
}

func NewTaskRegistry(opts TaskRegistryOpts) *TaskRegistry {
	retention := opts.Retention
	if retention == 0 {
		retention = defaultRetention
	}
	return &TaskRegistry{
		tasks:     make(map[string]*UploadTask),
		observers: make(map[int]ProgressObserver),
		retention: retention,
		store:     opts.Store,
		now:       lo.Ternary(opts.Now != nil, opts.Now, time.Now),
	}
}

// Create adds a task. An empty id is replaced by a fresh uuid and an empty status by pending.
func (r *TaskRegistry) Create(task UploadTask) (UploadTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, ok := r.tasks[task.ID]; ok {
		return UploadTask{}, errors.Errorf("task %s already exists", task.ID)
	}
	if task.Status == "" {
		task.Status = StatusPending
	}
	now := r.now()
	task.CreatedAt = now
	task.UpdatedAt = now

	stored := task.clone()
	r.tasks[task.ID] = &stored
	r.order = append(r.order, task.ID)
	r.persist(&stored)
	return stored.clone(), nil
}

// Update applies fn to a copy of the task and stores the result.
// The change is dropped if fn fails or moves the status along an invalid transition.
func (r *TaskRegistry) Update(taskID string, fn func(*UploadTask) error) (UploadTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tasks[taskID]
	if !ok {
		return UploadTask{}, errors.Errorf("task %s not found", taskID)
	}

	next := current.clone()
	if err := fn(&next); err != nil {
		return UploadTask{}, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	if !current.Status.CanTransition(next.Status) {
		return UploadTask{}, errors.Errorf("task %s: invalid status transition %s -> %s", taskID, current.Status, next.Status)
	}

	now := r.now()
	next.UpdatedAt = now
	if next.Status.IsSettled() && !current.Status.IsSettled() && next.CompletedAt.IsZero() {
		next.CompletedAt = now
	}

	*current = next
	r.persist(current)
	return current.clone(), nil
}

// SetStatus moves a task to status with an optional message.
func (r *TaskRegistry) SetStatus(taskID string, status TaskStatus, message string) (UploadTask, error) {
	return r.Update(taskID, func(t *UploadTask) error {
		t.Status = status
		t.Error = message
		return nil
	})
}

// MarkConverting records that the processing pipeline picked up a completed upload.
func (r *TaskRegistry) MarkConverting(taskID string) error {
	_, err := r.SetStatus(taskID, StatusConverting, "")
	return err
}

// MarkReady records that the processing pipeline finished.
func (r *TaskRegistry) MarkReady(taskID string) error {
	_, err := r.SetStatus(taskID, StatusReady, "")
	return err
}

// Remove drops a task from the registry and the store. Removing an unknown task is a no-op.
func (r *TaskRegistry) Remove(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(taskID, true)
}

func (r *TaskRegistry) removeLocked(taskID string, fromStore bool) {
	if _, ok := r.tasks[taskID]; !ok {
		return
	}
	delete(r.tasks, taskID)
	r.order = lo.Without(r.order, taskID)
	if fromStore && r.store != nil {
		if err := r.store.Delete(taskID); err != nil {
			log.Warnf("Unable to delete task %s from store: %v", taskID, err)
		}
	}
}

func (r *TaskRegistry) Get(taskID string) (UploadTask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return UploadTask{}, false
	}
	return task.clone(), true
}

// Snapshot returns copies of every task in creation order.
func (r *TaskRegistry) Snapshot() []UploadTask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.order, func(id string, _ int) UploadTask {
		return r.tasks[id].clone()
	})
}

// Subscribe registers an observer for progress snapshots and returns a func removing it.
func (r *TaskRegistry) Subscribe(observer ProgressObserver) func() {
	r.observersMu.Lock()
	defer r.observersMu.Unlock()

	id := r.nextObsID
	r.nextObsID++
	r.observers[id] = observer
	return func() {
		r.observersMu.Lock()
		defer r.observersMu.Unlock()
		delete(r.observers, id)
	}
}

// recordProgress stores a completed part and its progress snapshot, then notifies observers.
func (r *TaskRegistry) recordProgress(taskID string, part api.CompletedPart, snapshot ProgressSnapshot) error {
	if _, err := r.Update(taskID, func(t *UploadTask) error {
		if t.Status != StatusUploading {
			return errors.Errorf("task %s is %s, not uploading", taskID, t.Status)
		}
		t.UploadedParts = append(t.UploadedParts, part)
		t.UploadedBytes = snapshot.UploadedBytes
		t.Progress = snapshot.Percentage
		t.Throughput = snapshot.Throughput
		return nil
	}); err != nil {
		return err
	}

	r.observersMu.RLock()
	defer r.observersMu.RUnlock()
	for _, observer := range r.observers {
		observer(snapshot)
	}
	return nil
}

// Sweep evicts tasks that settled more than the retention window before now.
// Evicted tasks stay in the store so later sessions can still list them.
func (r *TaskRegistry) Sweep(now time.Time) []string {
	if r.retention < 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expired := lo.Filter(r.order, func(id string, _ int) bool {
		task := r.tasks[id]
		return task.Status.IsSettled() && now.Sub(task.CompletedAt) >= r.retention
	})
	for _, id := range expired {
		r.removeLocked(id, false)
	}
	return expired
}

// StartSweeper runs Sweep periodically until ctx is done or the registry is closed.
func (r *TaskRegistry) StartSweeper(ctx context.Context) {
	if r.retention < 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.stopSweeper != nil {
		r.stopSweeper()
	}
	r.stopSweeper = cancel
	r.mu.Unlock()

	interval := max(r.retention/2, minSweepInterval)
	utils.SentryRunOptions{RoutineName: "task registry sweeper"}.Run(func(_ *sentry.Hub) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if swept := r.Sweep(r.now()); len(swept) > 0 {
					log.Debugf("Swept %d settled tasks", len(swept))
				}
			}
		}
	})
}

// ClearStuck drops every task still marked uploading and returns their ids.
// Callers stop the corresponding uploads first.
func (r *TaskRegistry) ClearStuck() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	stuck := lo.Filter(r.order, func(id string, _ int) bool {
		return r.tasks[id].Status == StatusUploading
	})
	for _, id := range stuck {
		r.removeLocked(id, true)
	}
	return stuck
}

// Close stops the sweeper and closes the store.
func (r *TaskRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopSweeper != nil {
		r.stopSweeper()
		r.stopSweeper = nil
	}
	if r.store != nil {
		err := r.store.Close()
		r.store = nil
		return err
	}
	return nil
}

func (r *TaskRegistry) persist(task *UploadTask) {
	if r.store == nil {
		return
	}
	if err := r.store.Put(task.ID, task); err != nil {
		log.Warnf("Unable to persist task %s: %v", task.ID, err)
	}
}

// LoadTasks reads the tasks persisted in store, oldest first.
func LoadTasks(store *taskstore.Store) ([]UploadTask, error) {
	var tasks []UploadTask
	if err := store.ForEach(func(key string, value []byte) error {
		var task UploadTask
		if err := json.Unmarshal(value, &task); err != nil {
			return errors.Wrapf(err, "decode task %s", key)
		}
		tasks = append(tasks, task)
		return nil
	}); err != nil {
		return nil, err
	}

	slices.SortFunc(tasks, func(a, b UploadTask) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return tasks, nil
}

// ClearStuckTasks deletes persisted tasks a previous session left pending or uploading.
func ClearStuckTasks(store *taskstore.Store) ([]string, error) {
	tasks, err := LoadTasks(store)
	if err != nil {
		return nil, err
	}

	stuck := lo.FilterMap(tasks, func(t UploadTask, _ int) (string, bool) {
		return t.ID, !t.Status.IsSettled() && t.Status != StatusConverting
	})
	for _, id := range stuck {
		if err := store.Delete(id); err != nil {
			return nil, errors.Wrapf(err, "delete task %s", id)
		}
	}
	return stuck, nil
}
