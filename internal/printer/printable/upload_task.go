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

package printable

import (
	"fmt"
	"time"

	"github.com/Manhosu/CineVision-sub004/internal/printer/table"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

type UploadTasks struct {
	Tasks []upload_utils.UploadTask
}

func NewUploadTasks(tasks []upload_utils.UploadTask) *UploadTasks {
	return &UploadTasks{Tasks: tasks}
}

func (p *UploadTasks) Data() any {
	// Keep an empty list instead of null in json and yaml output.
	if p.Tasks == nil {
		return []upload_utils.UploadTask{}
	}
	return p.Tasks
}

func (p *UploadTasks) ToTable(opts *table.PrintOpts) table.Table {
	columnDefs := []table.ColumnDefinition{
		{FieldName: "ID", TrimSize: 8},
		{FieldName: "FILE", TrimSize: 40},
		{FieldName: "TARGET", TrimSize: 40},
		{FieldName: "STATUS"},
		{FieldName: "PROGRESS"},
		{FieldName: "SIZE"},
		{FieldName: "UPDATED"},
		{FieldName: "ERROR", TrimSize: 60},
	}

	rows := lo.Map(p.Tasks, func(task upload_utils.UploadTask, _ int) []string {
		return []string{
			task.ID,
			task.FileName,
			task.Target,
			string(task.Status),
			fmt.Sprintf("%.1f%%", task.Progress),
			humanize.IBytes(uint64(max(task.FileSize, 0))),
			updatedAt(task.UpdatedAt, opts),
			task.Error,
		}
	})

	return table.Table{
		ColumnDefs: columnDefs,
		Rows:       rows,
	}
}

func updatedAt(t time.Time, opts *table.PrintOpts) string {
	if t.IsZero() {
		return ""
	}
	if opts != nil && opts.Verbose {
		return t.In(time.Local).Format(time.RFC3339)
	}
	return humanize.Time(t)
}
