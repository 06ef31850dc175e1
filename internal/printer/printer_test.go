package printer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Manhosu/CineVision-sub004/internal/printer/printable"
	"github.com/Manhosu/CineVision-sub004/internal/printer/table"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleTasks() *printable.UploadTasks {
	return printable.NewUploadTasks([]upload_utils.UploadTask{
		{
			ID:        "0b5f7c1e-aaaa-bbbb-cccc-000000000001",
			FileName:  "episode-1.mp4",
			FileSize:  25 * 1024 * 1024,
			Target:    "episodes/ep-1",
			Status:    upload_utils.StatusCompleted,
			Progress:  100,
			UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:       "0b5f7c1e-aaaa-bbbb-cccc-000000000002",
			FileName: "pt-br.mkv",
			FileSize: 1024,
			Target:   "languages/pt-br",
			Status:   upload_utils.StatusError,
			Error:    "upload part 2 failed with status 403: expired",
		},
	})
}

func TestTablePrinter(t *testing.T) {
	var buf bytes.Buffer
	err := Printer("table", &Options{TableOpts: &table.PrintOpts{}}).PrintObj(sampleTasks(), &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^ID\s+FILE\s+TARGET\s+STATUS\s+PROGRESS\s+SIZE\s+UPDATED\s+ERROR$`, lines[0])
	assert.Contains(t, lines[1], "0b5f7...")
	assert.Contains(t, lines[1], "100.0%")
	assert.Contains(t, lines[1], "25 MiB")
	assert.Contains(t, lines[2], "languages/pt-br")
	assert.Contains(t, lines[2], "status 403")
}

func TestTablePrinter_OmitAndVerbose(t *testing.T) {
	var buf bytes.Buffer
	err := Printer("", &Options{TableOpts: &table.PrintOpts{
		Verbose:    true,
		OmitFields: []string{"ERROR", "UPDATED"},
	}}).PrintObj(sampleTasks(), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "0b5f7c1e-aaaa-bbbb-cccc-000000000001")
	assert.NotContains(t, out, "ERROR")
	assert.NotContains(t, out, "expired")
}

func TestJSONPrinter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Printer("json", nil).PrintObj(sampleTasks(), &buf))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "episode-1.mp4", got[0]["file_name"])
	assert.Equal(t, "error", got[1]["status"])
}

func TestYAMLPrinter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Printer("yaml", nil).PrintObj(sampleTasks(), &buf))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "languages/pt-br", got[1]["target"])
}

func TestEmptyListPrintsEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Printer("json", nil).PrintObj(printable.NewUploadTasks(nil), &buf))
	assert.Equal(t, "[]\n", buf.String())
}

func TestUnsupportedFormat(t *testing.T) {
	err := Printer("xml", nil).PrintObj(sampleTasks(), &bytes.Buffer{})
	assert.ErrorContains(t, err, `unsupported output format "xml"`)
}
