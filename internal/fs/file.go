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

package fs

import (
	"bytes"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const defaultVideoContentType = "video/mp4"

// extensionContentTypes covers the video containers mime's table does not know on every platform.
var extensionContentTypes = map[string]string{
	".mp4": "video/mp4",
	".m4v": "video/mp4",
	".mkv": "video/x-matroska",
	".mov": "video/quicktime",
}

// FileRef is a handle to source bytes whose size is known up front.
// Content is read lazily by byte range.
type FileRef interface {
	io.ReaderAt
	Name() string
	Size() int64
}

// LocalFile is a FileRef backed by a file on disk.
type LocalFile struct {
	*os.File
	path string
	size int64
}

// OpenLocalFile opens path for ranged reads.
func OpenLocalFile(path string) (*LocalFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve path %s", path)
	}
	f, err := os.Open(absPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", absPath)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "stat %s", absPath)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, errors.Errorf("%s is a directory", absPath)
	}
	return &LocalFile{File: f, path: absPath, size: info.Size()}, nil
}

// Name returns the base name of the file.
func (f *LocalFile) Name() string { return filepath.Base(f.path) }

// Path returns the absolute path of the file.
func (f *LocalFile) Path() string { return f.path }

func (f *LocalFile) Size() int64 { return f.size }

// MemFile is an in-memory FileRef.
type MemFile struct {
	*bytes.Reader
	name string
}

func NewMemFile(name string, data []byte) *MemFile {
	return &MemFile{Reader: bytes.NewReader(data), name: name}
}

func (f *MemFile) Name() string { return f.name }

// ContentType guesses the content type of a media file from its extension.
func ContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return defaultVideoContentType
}
