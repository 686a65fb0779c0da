// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package source reads the documents a compile session sends to the compiler:
// the entry file and every file the compiler asks to import.
//
// Document URLs use the mlr:// scheme around an absolute local path. Imports may
// also name file:// and s3:// URLs. Locate maps a URL to a readable location and
// Router dispatches it to the local filesystem or S3.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Scheme prefixes the URL of every local document.
const Scheme = "mlr://"

// InlineFileName is the file name given to sources compiled from a string.
const InlineFileName = "__inline-source__.malloy"

// Reader returns the text at a location produced by Locate.
type Reader interface {
	Read(ctx context.Context, location string) (string, error)
}

// DocumentURL returns the compiler URL of a local path. Values that already
// carry a scheme are returned unchanged.
func DocumentURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return Scheme + path
}

// Locate maps a document URL to a location: s3:// URLs are kept, mlr:// and
// file:// are stripped to a path, and relative paths are joined to baseDir.
func Locate(url, baseDir string) string {
	if strings.HasPrefix(url, "s3://") {
		return url
	}
	path := url
	for _, prefix := range []string{Scheme, "file://"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			path = rest
			break
		}
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Clean(path)
}

// FileReader reads local documents from an afero filesystem.
type FileReader struct {
	Fs afero.Fs
}

// NewFileReader returns a reader over the OS filesystem.
func NewFileReader() *FileReader {
	return &FileReader{Fs: afero.NewOsFs()}
}

func (r *FileReader) Read(_ context.Context, location string) (string, error) {
	b, err := afero.ReadFile(r.Fs, location)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Router sends s3:// locations to S3 and everything else to Local.
type Router struct {
	Local Reader
	S3    Reader
}

func (r *Router) Read(ctx context.Context, location string) (string, error) {
	if strings.HasPrefix(location, "s3://") {
		if r.S3 == nil {
			return "", fmt.Errorf("read %s: s3 imports are not configured", location)
		}
		return r.S3.Read(ctx, location)
	}
	return r.Local.Read(ctx, location)
}
