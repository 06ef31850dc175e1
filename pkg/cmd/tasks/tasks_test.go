package tasks_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/Manhosu/CineVision-sub004/internal/iostreams"
	"github.com/Manhosu/CineVision-sub004/internal/taskstore"
	"github.com/Manhosu/CineVision-sub004/internal/testutil"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd/tasks"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedTasks records one completed and one interrupted upload next to the config at cfgPath.
func seedTasks(t *testing.T, cfgPath string) (completedID, stuckID string) {
	t.Helper()
	store, err := taskstore.Open(cmd_utils.TaskStorePath(cfgPath))
	require.NoError(t, err)

	r := upload_utils.NewTaskRegistry(upload_utils.TaskRegistryOpts{Store: store})
	done, err := r.Create(upload_utils.UploadTask{FileName: "episode-1.mp4", Target: "episodes/ep-1", Status: upload_utils.StatusUploading})
	require.NoError(t, err)
	_, err = r.SetStatus(done.ID, upload_utils.StatusCompleted, "")
	require.NoError(t, err)
	stuck, err := r.Create(upload_utils.UploadTask{FileName: "episode-2.mp4", Target: "episodes/ep-2", Status: upload_utils.StatusUploading})
	require.NoError(t, err)

	require.NoError(t, r.Close())
	return done.ID, stuck.ID
}

func runTasks(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd := tasks.NewRootCommand(&cfgPath, iostreams.Test(nil, buf, buf))
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestTasksCommand(t *testing.T) {
	t.Run("List with empty store", func(t *testing.T) {
		cfgPath := filepath.Join(testutil.TempDir(t), "config.yaml")
		assert.Contains(t, runTasks(t, cfgPath, "list"), "No tasks found.")
	})

	t.Run("List as table", func(t *testing.T) {
		cfgPath := filepath.Join(testutil.TempDir(t), "config.yaml")
		seedTasks(t, cfgPath)

		output := runTasks(t, cfgPath, "list")
		assert.Contains(t, output, "STATUS")
		assert.Contains(t, output, "episode-1.mp4")
		assert.Contains(t, output, "completed")
		assert.Contains(t, output, "uploading")
	})

	t.Run("List as json with status filter", func(t *testing.T) {
		cfgPath := filepath.Join(testutil.TempDir(t), "config.yaml")
		completedID, _ := seedTasks(t, cfgPath)

		output := runTasks(t, cfgPath, "list", "-o", "json", "--status", "completed")
		var got []upload_utils.UploadTask
		require.NoError(t, json.Unmarshal([]byte(output), &got))
		require.Len(t, got, 1)
		assert.Equal(t, completedID, got[0].ID)
	})

	t.Run("Clear stuck", func(t *testing.T) {
		cfgPath := filepath.Join(testutil.TempDir(t), "config.yaml")
		completedID, _ := seedTasks(t, cfgPath)

		assert.Contains(t, runTasks(t, cfgPath, "clear", "--stuck"), "Cleared 1 stuck tasks")

		output := runTasks(t, cfgPath, "list", "-o", "json")
		var got []upload_utils.UploadTask
		require.NoError(t, json.Unmarshal([]byte(output), &got))
		require.Len(t, got, 1)
		assert.Equal(t, completedID, got[0].ID)
	})

	t.Run("Clear all", func(t *testing.T) {
		cfgPath := filepath.Join(testutil.TempDir(t), "config.yaml")
		seedTasks(t, cfgPath)

		assert.Contains(t, runTasks(t, cfgPath, "clear"), "Cleared all tasks")
		assert.Contains(t, runTasks(t, cfgPath, "list"), "No tasks found.")
	})
}
