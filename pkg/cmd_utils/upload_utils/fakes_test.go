package upload_utils

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Manhosu/CineVision-sub004/api"
	"github.com/Manhosu/CineVision-sub004/internal/fs"
	"github.com/Manhosu/CineVision-sub004/internal/name"
	"github.com/Manhosu/CineVision-sub004/internal/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"
)

// peakCounter tracks how many operations are in flight and the highest value seen.
type peakCounter struct {
	current atomic.Int32
	peak    atomic.Int32
}

func (c *peakCounter) inc() {
	n := c.current.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (c *peakCounter) dec() {
	c.current.Add(-1)
}

// fakeCoordinator is an in-memory StorageCoordinator.
type fakeCoordinator struct {
	mu sync.Mutex

	// partSize and batchURLs shape the Initiate response.
	partSize  int64
	batchURLs func(sessionID string) map[int]string

	initiateErr error
	completeErr error

	initiated    []api.InitiateRequest
	urlRequests  []int
	completed    map[string][]api.CompletedPart
	completeCall int
	aborted      []string

	// activeFiles counts sessions between Initiate and Complete/Abort.
	activeFiles peakCounter
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{completed: make(map[string][]api.CompletedPart)}
}

func (c *fakeCoordinator) Initiate(_ context.Context, req api.InitiateRequest) (*api.InitiateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initiateErr != nil {
		return nil, c.initiateErr
	}
	c.initiated = append(c.initiated, req)
	c.activeFiles.inc()

	sessionID := fmt.Sprintf("session-%d", len(c.initiated))
	res := &api.InitiateResult{
		SessionID:  sessionID,
		StorageKey: fmt.Sprintf("raw/%s/%s", req.Target, req.Filename),
		PartSize:   c.partSize,
	}
	if c.batchURLs != nil {
		res.PartURLs = c.batchURLs(sessionID)
	}
	return res, nil
}

func (c *fakeCoordinator) GetPartUploadURL(_ context.Context, sessionID string, _ string, partNumber int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.urlRequests = append(c.urlRequests, partNumber)
	return fmt.Sprintf("https://storage.test/%s/%d", sessionID, partNumber), nil
}

func (c *fakeCoordinator) Complete(_ context.Context, sessionID string, _ string, parts []api.CompletedPart) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completeCall++
	if c.completeErr != nil {
		return c.completeErr
	}
	c.completed[sessionID] = slices.Clone(parts)
	c.activeFiles.dec()
	return nil
}

func (c *fakeCoordinator) Abort(_ context.Context, sessionID string, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.aborted = append(c.aborted, sessionID)
	c.activeFiles.dec()
	return nil
}

func (c *fakeCoordinator) completeCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completeCall
}

func (c *fakeCoordinator) abortedSessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.aborted)
}

func (c *fakeCoordinator) initiatedFiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	files := make([]string, 0, len(c.initiated))
	for _, req := range c.initiated {
		files = append(files, req.Filename)
	}
	return files
}

// fakePartUploader records part launches and delegates behavior to fn.
type fakePartUploader struct {
	fn func(ctx context.Context, part Part) (string, error)

	mu       sync.Mutex
	launched []int
	inFlight peakCounter
}

func (u *fakePartUploader) UploadPart(ctx context.Context, _ string, part Part, body io.ReaderAt) (api.CompletedPart, error) {
	u.mu.Lock()
	u.launched = append(u.launched, part.Number)
	u.mu.Unlock()

	u.inFlight.inc()
	defer u.inFlight.dec()

	// Read the range the way a real transfer would.
	if _, err := io.Copy(io.Discard, io.NewSectionReader(body, part.Start, part.Size())); err != nil {
		return api.CompletedPart{}, &PartUploadError{PartNumber: part.Number, Err: err}
	}

	etag := fmt.Sprintf("etag-%d", part.Number)
	if u.fn != nil {
		var err error
		if etag, err = u.fn(ctx, part); err != nil {
			return api.CompletedPart{}, err
		}
	}
	return api.CompletedPart{PartNumber: part.Number, ETag: etag}, nil
}

func (u *fakePartUploader) launches() []int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Clone(u.launched)
}

func newTestManager(t *testing.T, coord api.StorageCoordinator, uploader PartUploader, opts UploadManagerOpts) *UploadManager {
	t.Helper()
	opts.NoTTY = true
	um, err := NewUploadManager(&ApiOpts{
		StorageCoordinator: coord,
		TokenSource:        api.StaticToken("token"),
		PartUploader:       uploader,
	}, NewTaskRegistry(TaskRegistryOpts{}), &opts)
	require.NoError(t, err)
	return um
}

func memUpload(filename string, size int, target name.Target) PendingUpload {
	return PendingUpload{
		File:   fs.NewMemFile(filename, testutil.MediaBytes(size)),
		Target: target,
	}
}
