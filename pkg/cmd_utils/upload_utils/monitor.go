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
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/getsentry/sentry-go"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	log "github.com/sirupsen/logrus"
)

const defaultWindowWidth = 80

var (
	spinnerFrames = []string{"⣾", "⣷", "⣯", "⣟", "⡿", "⢿", "⣻", "⣽"}
)

// StartMonitor starts the status display: a live tea program in interactive mode,
// progress log lines otherwise.
func (um *UploadManager) StartMonitor() {
	if um.noTTY {
		// Non-interactive mode - use simple logging
		log.Info("Starting upload in non-interactive mode...")
		um.stopReport = um.registry.Subscribe(um.reportProgress)
		return
	}

	// Start the status monitor
	um.goWithSentry("upload status monitor", func(_ *sentry.Hub) {
		if _, err := um.monitor.Run(); err != nil {
			log.Errorf("Error running upload status monitor: %v", err)
		}
		if um.manualQuit {
			um.CancelAll()
		}
	})

	// Send an empty message to wait for the monitor to start
	um.monitor.Send(struct{}{})
}

// StopMonitor stops the status display and prints a summary.
func (um *UploadManager) StopMonitor() {
	if um.stopReport != nil {
		um.stopReport()
		um.stopReport = nil
	}
	if !um.noTTY && um.monitor != nil {
		um.monitor.Quit()
		um.monitor.Wait()
	}

	um.printSummary()
}

// reportProgress logs one progress line per completed part in non-interactive mode.
func (um *UploadManager) reportProgress(s ProgressSnapshot) {
	task, ok := um.registry.Get(s.TaskID)
	if !ok {
		return
	}
	log.Infof("Upload Progress: %s | %s", task.FileName, s)
}

// printSummary logs the counts of the tasks in the registry.
func (um *UploadManager) printSummary() {
	tasks := um.registry.Snapshot()
	var completed, failed, cancelled int
	for _, task := range tasks {
		switch task.Status {
		case StatusCompleted, StatusConverting, StatusReady:
			completed++
		case StatusError:
			failed++
		case StatusCancelled:
			cancelled++
		}
	}

	if !um.noTTY {
		for _, task := range tasks {
			if task.Status == StatusError {
				fmt.Printf("Upload %s failed with: \n%v\n\n", task.FileName, task.Error)
			}
		}
		return
	}

	log.Infof("Upload finished! Total: %d | Success: %d | Failed: %d | Cancelled: %d",
		len(tasks), completed, failed, cancelled)
	if failed > 0 {
		log.Warn("Some files failed to upload. Check the error messages above.")
	}
}

func (um *UploadManager) Init() tea.Cmd {
	return tick()
}

func (um *UploadManager) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		um.windowWidth.Store(int32(msg.Width))
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEscape, tea.KeyCtrlD:
			um.manualQuit = true
			return um, tea.Quit
		}
	case TickMsg:
		um.spinnerIdx = (um.spinnerIdx + 1) % len(spinnerFrames)
		return um, tick()
	}
	return um, nil
}

func (um *UploadManager) View() string {
	width := int(um.windowWidth.Load())
	if width <= 0 {
		width = defaultWindowWidth
	}

	s := "Upload Status:\n"
	var successCount, failedCount int
	spinnerFrame := spinnerFrames[um.spinnerIdx]
	tasks := um.registry.Snapshot()
	for _, task := range tasks {
		displayName := task.FileName
		if task.Title != "" {
			displayName = fmt.Sprintf("%s (%s)", task.Title, task.FileName)
		}
		// Keep room for the status column
		displayName = runewidth.Truncate(displayName, max(width/2, 10), "…")

		statusStrLen := max(width-runewidth.StringWidth(displayName)-1, 0)
		switch task.Status {
		case StatusPending:
			s += fmt.Sprintf("%s:%*s\n", displayName, statusStrLen, "Waiting for upload")
		case StatusUploading:
			if task.TotalParts == 0 {
				s += fmt.Sprintf("%s:%*s\n", displayName, statusStrLen, "Preparing for upload"+spinnerFrame)
				continue
			}
			if len(task.UploadedParts) == task.TotalParts {
				s += fmt.Sprintf("%s:%*s\n", displayName, statusStrLen, "Completing multipart upload"+spinnerFrame)
				continue
			}
			barWidth := max(width-runewidth.StringWidth(displayName)-12, 10)         // Adjust for label and percentage, make sure it is at least 10
			progressCount := min(int(task.Progress*float64(barWidth)/100), barWidth) // min used to prevent float rounding errors
			emptyBar := strings.Repeat("-", barWidth-progressCount)
			progressBar := strings.Repeat("█", progressCount)
			s += fmt.Sprintf("%s: [%s%s] %*.2f%%\n", displayName, progressBar, emptyBar, 6, task.Progress)
		case StatusCompleted, StatusConverting, StatusReady:
			s += fmt.Sprintf("%s:%*s\n", displayName, statusStrLen, "Upload completed")
			successCount++
		case StatusError:
			s += fmt.Sprintf("%s:%*s\n", displayName, statusStrLen, "Upload failed")
			failedCount++
		case StatusCancelled:
			s += fmt.Sprintf("%s:%*s\n", displayName, statusStrLen, "Upload cancelled")
		}
	}

	// Add summary of all task status
	s += "\n"
	s += fmt.Sprintf("Total: %d, Success: %d, Failed: %d", len(tasks), successCount, failedCount)
	if uploaded := totalUploaded(tasks); uploaded > 0 {
		s += fmt.Sprintf(", Uploaded: %s", humanize.IBytes(uint64(uploaded)))
	}
	s += "\n"
	s = wordwrap.String(s, width)
	return s
}

func totalUploaded(tasks []UploadTask) int64 {
	var total int64
	for _, task := range tasks {
		total += task.UploadedBytes
	}
	return total
}

// TickMsg is a message that is sent to the update function every 0.5 second.
type TickMsg time.Time

// tick is a command that sends a TickMsg every 0.5 second.
func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
