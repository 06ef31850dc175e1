package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/Manhosu/CineVision-sub004/internal/config"
	"github.com/Manhosu/CineVision-sub004/internal/iostreams"
	"github.com/Manhosu/CineVision-sub004/internal/name"
	"github.com/Manhosu/CineVision-sub004/internal/taskstore"
	"github.com/Manhosu/CineVision-sub004/internal/testutil"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils"
	"github.com/Manhosu/CineVision-sub004/pkg/cmd_utils/upload_utils"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUploadAPI serves the coordinator endpoints and the presigned part destination.
type fakeUploadAPI struct {
	srv *httptest.Server

	// rejectPart makes the destination answer 403 for that part number.
	rejectPart int

	mu        sync.Mutex
	sessions  map[string]string
	parts     map[string]map[int][]byte
	completed map[string][]map[string]any
	aborted   []string
}

func newFakeUploadAPI(t *testing.T) *fakeUploadAPI {
	t.Helper()
	f := &fakeUploadAPI{
		sessions:  make(map[string]string),
		parts:     make(map[string]map[int][]byte),
		completed: make(map[string][]map[string]any),
	}

	r := chi.NewRouter()
	r.Route("/api/v1/admin/uploads", func(r chi.Router) {
		r.Post("/init", f.handleInit)
		r.Post("/presigned-url", f.handlePresignedURL)
		r.Post("/complete", f.handleComplete)
		r.Post("/abort", f.handleAbort)
	})
	r.Put("/storage/{uploadID}/{partNumber}", f.handlePart)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUploadAPI) handleInit(w http.ResponseWriter, req *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(req.Body).Decode(&body)

	f.mu.Lock()
	uploadID := fmt.Sprintf("upload-%d", len(f.sessions)+1)
	f.sessions[uploadID] = fmt.Sprint(body["filename"])
	f.parts[uploadID] = make(map[int][]byte)
	f.mu.Unlock()

	writeJSON(w, map[string]any{"uploadId": uploadID, "key": "raw/" + uploadID})
}

func (f *fakeUploadAPI) handlePresignedURL(w http.ResponseWriter, req *http.Request) {
	var body struct {
		UploadID   string `json:"uploadId"`
		PartNumber int    `json:"partNumber"`
	}
	_ = json.NewDecoder(req.Body).Decode(&body)
	writeJSON(w, map[string]any{"url": fmt.Sprintf("%s/storage/%s/%d", f.srv.URL, body.UploadID, body.PartNumber)})
}

func (f *fakeUploadAPI) handlePart(w http.ResponseWriter, req *http.Request) {
	partNumber, _ := strconv.Atoi(chi.URLParam(req, "partNumber"))
	data, _ := io.ReadAll(req.Body)
	if partNumber == f.rejectPart {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	f.mu.Lock()
	f.parts[chi.URLParam(req, "uploadID")][partNumber] = data
	f.mu.Unlock()

	w.Header().Set("ETag", fmt.Sprintf(`"etag-%d"`, partNumber))
	w.WriteHeader(http.StatusOK)
}

func (f *fakeUploadAPI) handleComplete(w http.ResponseWriter, req *http.Request) {
	var body struct {
		UploadID string           `json:"uploadId"`
		Parts    []map[string]any `json:"parts"`
	}
	_ = json.NewDecoder(req.Body).Decode(&body)

	f.mu.Lock()
	f.completed[body.UploadID] = body.Parts
	f.mu.Unlock()
	writeJSON(w, map[string]any{"location": "https://cdn.test/" + body.UploadID})
}

func (f *fakeUploadAPI) handleAbort(w http.ResponseWriter, req *http.Request) {
	var body struct {
		UploadID string `json:"uploadId"`
	}
	_ = json.NewDecoder(req.Body).Decode(&body)

	f.mu.Lock()
	f.aborted = append(f.aborted, body.UploadID)
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// assembled joins the stored parts of uploadID in part order.
func (f *fakeUploadAPI) assembled(uploadID string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	numbers := make([]int, 0, len(f.parts[uploadID]))
	for n := range f.parts[uploadID] {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var buf bytes.Buffer
	for _, n := range numbers {
		buf.Write(f.parts[uploadID][n])
	}
	return buf.Bytes()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testProvider(endpoint string) func(string) config.Provider {
	cfg := config.Default()
	cfg.Endpoint = endpoint
	cfg.Token = "secret"
	cfg.Upload.PartSize = "1KiB"
	return func(string) config.Provider {
		return config.NewStaticProvider(cfg)
	}
}

func TestUploadCommand(t *testing.T) {
	ctx := testutil.TestContext(t)
	api := newFakeUploadAPI(t)

	dir := testutil.TempDir(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	mediaPath := testutil.CreateMediaFile(t, dir, "s01e01.mp4", 5*1024+300)

	buf := new(bytes.Buffer)
	cmd := NewUploadCommand(&cfgPath, iostreams.Test(nil, buf, buf), testProvider(api.srv.URL), &upload_utils.UploadManagerOpts{NoTTY: true})
	cmd.SetArgs([]string{"episodes/ep-1", mediaPath, "--title", "Pilot"})
	require.NoError(t, cmd.ExecuteContext(ctx))

	assert.Contains(t, buf.String(), "Uploaded s01e01.mp4 to raw/upload-1")

	want, err := os.ReadFile(mediaPath)
	require.NoError(t, err)
	assert.Equal(t, want, api.assembled("upload-1"))

	parts := api.completed["upload-1"]
	require.Len(t, parts, 6)
	for i, p := range parts {
		assert.EqualValues(t, i+1, p["PartNumber"])
		assert.Equal(t, fmt.Sprintf("etag-%d", i+1), p["ETag"])
	}

	store, err := taskstore.Open(cmd_utils.TaskStorePath(cfgPath))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	tasks, err := upload_utils.LoadTasks(store)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, upload_utils.StatusCompleted, tasks[0].Status)
	assert.Equal(t, "Pilot", tasks[0].Title)
	assert.Equal(t, "episodes/ep-1", tasks[0].Target)
}

func TestUploadCommand_PartRejected(t *testing.T) {
	ctx := testutil.TestContext(t)
	api := newFakeUploadAPI(t)
	api.rejectPart = 2

	dir := testutil.TempDir(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	mediaPath := testutil.CreateMediaFile(t, dir, "dub.mkv", 3*1024)

	buf := new(bytes.Buffer)
	cmd := NewUploadCommand(&cfgPath, iostreams.Test(nil, buf, buf), testProvider(api.srv.URL), &upload_utils.UploadManagerOpts{NoTTY: true})
	cmd.SetArgs([]string{"languages/pt-br", mediaPath})
	cmd.SilenceUsage = true

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "part 2")
	assert.Empty(t, api.completed)
	assert.Equal(t, []string{"upload-1"}, api.aborted)
}

func TestUploadCommand_InvalidTarget(t *testing.T) {
	dir := testutil.TempDir(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	mediaPath := testutil.CreateMediaFile(t, dir, "movie.mp4", 10)

	cmd := NewUploadCommand(&cfgPath, iostreams.Test(nil, io.Discard, io.Discard), testProvider("http://unused.test"), &upload_utils.UploadManagerOpts{NoTTY: true})
	cmd.SetArgs([]string{"movies/1", mediaPath})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	assert.Error(t, cmd.ExecuteContext(testutil.TestContext(t)))
}

func TestBatchCommand(t *testing.T) {
	ctx := testutil.TestContext(t)
	api := newFakeUploadAPI(t)

	dir := testutil.TempDir(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	first := testutil.CreateMediaFile(t, dir, "e1.mp4", 2048)
	second := testutil.CreateMediaFile(t, dir, "e2.mp4", 2048)
	replacement := testutil.CreateMediaFile(t, dir, "e2-fixed.mp4", 3000)

	buf := new(bytes.Buffer)
	cmd := NewBatchCommand(&cfgPath, iostreams.Test(nil, buf, buf), testProvider(api.srv.URL), &upload_utils.UploadManagerOpts{NoTTY: true, FileConcurrency: 1})
	cmd.SetArgs([]string{
		"episodes/ep-1=" + first,
		"episodes/ep-2=" + second,
		"episodes/ep-2=" + replacement,
	})
	require.NoError(t, cmd.ExecuteContext(ctx))

	assert.Contains(t, buf.String(), "Uploading 2 files")
	assert.Contains(t, buf.String(), "All uploads completed")
	assert.Equal(t, map[string]string{"upload-1": "e1.mp4", "upload-2": "e2-fixed.mp4"}, api.sessions)

	want, err := os.ReadFile(replacement)
	require.NoError(t, err)
	assert.Equal(t, want, api.assembled("upload-2"))
}

func TestBatchCommand_ReportsFailures(t *testing.T) {
	ctx := testutil.TestContext(t)
	api := newFakeUploadAPI(t)
	api.rejectPart = 2

	dir := testutil.TempDir(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	first := testutil.CreateMediaFile(t, dir, "e1.mp4", 2048)
	second := testutil.CreateMediaFile(t, dir, "e2.mp4", 512)

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd := NewBatchCommand(&cfgPath, iostreams.Test(nil, out, errOut), testProvider(api.srv.URL), &upload_utils.UploadManagerOpts{NoTTY: true, FileConcurrency: 1})
	cmd.SetArgs([]string{"episodes/ep-1=" + first, "languages/en=" + second})
	cmd.SilenceUsage = true
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Equal(t, "1 of 2 uploads failed", err.Error())
	assert.Contains(t, errOut.String(), "Upload of e1.mp4 to episodes/ep-1 failed")
	assert.NotContains(t, errOut.String(), "e2.mp4")
	assert.NotContains(t, out.String(), "All uploads completed")
	assert.Equal(t, []string{"upload-1"}, api.aborted)
}

func TestParseBatchArgs(t *testing.T) {
	entries, err := parseBatchArgs([]string{"episodes/ep-1=a.mp4", "languages/en=dir/b=c.mkv"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, name.NewEpisode("ep-1"), entries[0].target)
	assert.Equal(t, "a.mp4", entries[0].path)
	assert.Equal(t, name.NewLanguage("en"), entries[1].target)
	assert.Equal(t, "dir/b=c.mkv", entries[1].path)

	for _, bad := range []string{"episodes/ep-1", "episodes/ep-1=", "movies/1=a.mp4"} {
		_, err := parseBatchArgs([]string{bad})
		assert.Error(t, err, bad)
	}
}
