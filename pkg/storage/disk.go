// Package storage stores uploaded files (menu images, mail outbox) on a
// local directory or an S3-compatible bucket.
//
//	if err := storage.Connect(ctx); err != nil { ... }
//	disk := storage.Default()
//	err := disk.Put(ctx, "menu/12/photo.jpg", r, "image/jpeg")
//	url := disk.URL("menu/12/photo.jpg")
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned by Get when nothing is stored at the path.
var ErrNotFound = errors.New("storage: file not found")

// ErrInvalidPath rejects absolute paths and paths escaping the disk root.
var ErrInvalidPath = errors.New("storage: invalid path")

// Disk is the driver interface.
type Disk interface {
	// Put writes r to p, replacing any existing file.
	Put(ctx context.Context, p string, r io.Reader, contentType string) error
	Get(ctx context.Context, p string) ([]byte, error)
	Exists(ctx context.Context, p string) (bool, error)
	// Delete removes p. Missing files are not an error.
	Delete(ctx context.Context, p string) error
	// List returns the paths directly under dir.
	List(ctx context.Context, dir string) ([]string, error)
	// URL is the public address of p.
	URL(p string) string
}

// Clean normalizes p to a slash-separated relative key.
func Clean(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrInvalidPath
	}
	return c, nil
}
