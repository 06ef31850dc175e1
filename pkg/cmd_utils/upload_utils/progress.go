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
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressSnapshot is the progress of one task after a part completed.
type ProgressSnapshot struct {
	TaskID        string  `json:"task_id"`
	UploadedBytes int64   `json:"uploaded_bytes"`
	FileSize      int64   `json:"file_size"`
	Percentage    float64 `json:"percentage"`

	// Throughput is in bytes per second.
	Throughput float64 `json:"throughput"`

	// ETASeconds is +Inf while the remaining time is unknown.
	ETASeconds float64 `json:"-"`

	// CurrentPart is the number of the part whose completion produced this snapshot.
	CurrentPart int `json:"current_part"`
	TotalParts  int `json:"total_parts"`
}

// ETAKnown reports whether ETASeconds is a usable number.
func (s ProgressSnapshot) ETAKnown() bool {
	return !math.IsInf(s.ETASeconds, 0) && !math.IsNaN(s.ETASeconds)
}

// String renders the snapshot the way the non-interactive reporter logs it.
func (s ProgressSnapshot) String() string {
	return fmt.Sprintf("%.1f%% (%s / %s) part %d/%d at %s/s, %s remaining",
		s.Percentage,
		humanize.IBytes(uint64(s.UploadedBytes)),
		humanize.IBytes(uint64(s.FileSize)),
		s.CurrentPart, s.TotalParts,
		humanize.IBytes(uint64(s.Throughput)),
		FormatETA(s.ETASeconds))
}

// FormatETA renders seconds as mm:ss or h:mm:ss, or --:-- when unknown.
func FormatETA(seconds float64) string {
	if math.IsInf(seconds, 0) || math.IsNaN(seconds) || seconds < 0 {
		return "--:--"
	}
	total := int64(math.Ceil(seconds))
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

// ProgressObserver receives a snapshot every time a part of a task completes.
// Observers are called synchronously and must not block.
type ProgressObserver func(ProgressSnapshot)

// progressAggregator accumulates completed part sizes of one task.
// It is not safe for concurrent use; the scheduler serializes calls.
type progressAggregator struct {
	taskID     string
	fileSize   int64
	totalParts int
	startedAt  time.Time
	now        func() time.Time

	uploadedBytes  int64
	lastPercentage float64
}

func newProgressAggregator(taskID string, fileSize int64, totalParts int, startedAt time.Time, now func() time.Time) *progressAggregator {
	if now == nil {
		now = time.Now
	}
	return &progressAggregator{
		taskID:     taskID,
		fileSize:   fileSize,
		totalParts: totalParts,
		startedAt:  startedAt,
		now:        now,
	}
}

// add records a completed part and returns the new snapshot.
func (a *progressAggregator) add(part Part) ProgressSnapshot {
	a.uploadedBytes = min(a.uploadedBytes+part.Size(), a.fileSize)

	percentage := 0.0
	if a.fileSize > 0 {
		percentage = 100 * float64(a.uploadedBytes) / float64(a.fileSize)
	}
	a.lastPercentage = max(a.lastPercentage, percentage)

	throughput := 0.0
	if elapsed := a.now().Sub(a.startedAt).Seconds(); elapsed > 0 {
		throughput = float64(a.uploadedBytes) / elapsed
	}

	eta := math.Inf(1)
	if throughput > 0 && !math.IsInf(throughput, 0) && !math.IsNaN(throughput) {
		eta = float64(a.fileSize-a.uploadedBytes) / throughput
	}

	return ProgressSnapshot{
		TaskID:        a.taskID,
		UploadedBytes: a.uploadedBytes,
		FileSize:      a.fileSize,
		Percentage:    a.lastPercentage,
		Throughput:    throughput,
		ETASeconds:    eta,
		CurrentPart:   part.Number,
		TotalParts:    a.totalParts,
	}
}
