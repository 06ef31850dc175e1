package upload_utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/Manhosu/CineVision-sub004/api"
	"github.com/Manhosu/CineVision-sub004/internal/config"
	"github.com/Manhosu/CineVision-sub004/internal/fs"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/term"
)

// ApiOpts are the collaborators of an upload.
type ApiOpts struct {
	api.StorageCoordinator
	api.TokenSource
	PartUploader
}

var (
	defaultPartSize    = uint64(10 * 1024 * 1024)
	defaultMaxFileSize = uint64(10 * 1024 * 1024 * 1024)

	allowedContentTypes = []string{"video/mp4", "video/x-matroska", "video/quicktime"}
)

type UploadManagerOpts struct {
	PartSize       string
	partSizeUint64 uint64

	// PartConcurrency caps in-flight parts of one file.
	PartConcurrency int

	// FileConcurrency caps files uploading at once through the queue.
	FileConcurrency int

	MaxFileSize       string
	maxFileSizeUint64 uint64
	AllowedExtensions []string

	Retry RetryPolicy

	// KeepFailedSession leaves the remote session open when an upload fails.
	// Cancelled uploads are always aborted.
	KeepFailedSession bool

	// Timeout bounds a single file upload. Zero means no limit.
	Timeout time.Duration

	NoTTY bool // Force non-interactive mode
	TTY   bool // Force interactive mode
}

func defaultUploadManagerOpts() UploadManagerOpts {
	return UploadManagerOpts{
		PartSize:          humanize.IBytes(defaultPartSize),
		PartConcurrency:   3,
		FileConcurrency:   2,
		MaxFileSize:       humanize.IBytes(defaultMaxFileSize),
		AllowedExtensions: []string{".mp4", ".mkv", ".mov"},
	}
}

// OptsFromConfig maps the upload section of the configuration onto manager options.
func OptsFromConfig(cfg config.UploadConfig) UploadManagerOpts {
	return UploadManagerOpts{
		PartSize:          cfg.PartSize,
		PartConcurrency:   cfg.PartConcurrency,
		FileConcurrency:   cfg.FileConcurrency,
		MaxFileSize:       cfg.MaxFileSize,
		AllowedExtensions: cfg.AllowedExtensions,
		Retry:             RetryPolicy{MaxRetries: cfg.MaxRetries},
		KeepFailedSession: cfg.KeepFailedSession,
		Timeout:           cfg.Timeout,
	}
}

// Valid fills unset options with defaults and parses the byte sizes.
func (opt *UploadManagerOpts) Valid() error {
	if err := mergo.Merge(opt, defaultUploadManagerOpts()); err != nil {
		return errors.Wrap(err, "merge default options")
	}

	if sizeUint64, err := humanize.ParseBytes(opt.PartSize); err != nil {
		return errors.Wrap(err, "parse part size")
	} else if sizeUint64 == 0 {
		return errors.New("part size must be positive")
	} else {
		opt.partSizeUint64 = sizeUint64
	}

	if sizeUint64, err := humanize.ParseBytes(opt.MaxFileSize); err != nil {
		return errors.Wrap(err, "parse max file size")
	} else {
		opt.maxFileSizeUint64 = sizeUint64
	}

	if opt.PartConcurrency < 1 {
		return errors.Errorf("part concurrency must be at least 1, got %d", opt.PartConcurrency)
	}
	if opt.FileConcurrency < 1 {
		return errors.Errorf("file concurrency must be at least 1, got %d", opt.FileConcurrency)
	}

	opt.AllowedExtensions = lo.Map(opt.AllowedExtensions, func(ext string, _ int) string {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return ext
	})
	return nil
}

// validateFile rejects files that must never reach the storage coordinator.
func (opt *UploadManagerOpts) validateFile(file fs.FileRef) error {
	if file == nil {
		return newValidationError("no file given")
	}
	if file.Size() <= 0 {
		return newValidationError("%s is empty", file.Name())
	}
	if opt.maxFileSizeUint64 > 0 && uint64(file.Size()) > opt.maxFileSizeUint64 {
		return newValidationError("%s is %s, larger than the %s limit",
			file.Name(), humanize.IBytes(uint64(file.Size())), humanize.IBytes(opt.maxFileSizeUint64))
	}

	ext := strings.ToLower(filepath.Ext(file.Name()))
	if !lo.Contains(opt.AllowedExtensions, ext) {
		return newValidationError("%s has extension %q, allowed: %s", file.Name(), ext, strings.Join(opt.AllowedExtensions, ", "))
	}
	if ct := fs.ContentType(file.Name()); !lo.Contains(allowedContentTypes, ct) {
		return newValidationError("%s has unsupported content type %s", file.Name(), ct)
	}
	return nil
}

// IsHeadlessEnvironment detects if we're running in a CI/headless environment
func IsHeadlessEnvironment() bool {
	// Check if stdin or stdout is not a terminal
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return true
	}

	// Check for common CI environment variables
	if os.Getenv("CI") == "true" {
		return true
	}

	// Check for dumb terminal
	if os.Getenv("TERM") == "dumb" {
		return true
	}

	return false
}

// ShouldUseInteractiveMode determines if interactive mode should be used
func (opt *UploadManagerOpts) ShouldUseInteractiveMode() bool {
	// Explicit flags take precedence
	if opt.NoTTY {
		return false
	}
	if opt.TTY {
		return true
	}

	// Auto-detect based on environment
	return !IsHeadlessEnvironment()
}
