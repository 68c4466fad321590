// Package storage provides read-only access to a tenant's remote document
// tree.
package storage

import (
	"context"
	"errors"
)

// Well-known content types in the remote store.
const (
	MimeFolder    = "application/vnd.google-apps.folder"
	MimeGoogleDoc = "application/vnd.google-apps.document"
	MimeDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePlainText = "text/plain"
	MimeCSV       = "text/csv"
)

// ErrNotConfigured is returned when the storage credentials are absent.
var ErrNotConfigured = errors.New("remote storage is not configured")

// Entry is one child of a remote folder.
type Entry struct {
	ID       string
	Name     string
	MimeType string
}

// IsFolder reports whether the entry is a folder.
func (e Entry) IsFolder() bool {
	return e.MimeType == MimeFolder
}

// Store is the remote storage collaborator: list children of a folder and
// fetch file content, nothing else.
type Store interface {
	// List returns the direct children of a folder in listing order.
	List(ctx context.Context, folderID string) ([]Entry, error)

	// Download fetches the raw bytes of a file.
	Download(ctx context.Context, fileID string) ([]byte, error)

	// ExportText fetches a cloud-native document as plain text.
	ExportText(ctx context.Context, fileID string) ([]byte, error)
}

// Unconfigured returns a Store whose every operation fails with
// ErrNotConfigured. Missing credentials disable document loading without
// taking the server down.
func Unconfigured() Store {
	return unconfigured{}
}

type unconfigured struct{}

func (unconfigured) List(context.Context, string) ([]Entry, error)   { return nil, ErrNotConfigured }
func (unconfigured) Download(context.Context, string) ([]byte, error) { return nil, ErrNotConfigured }
func (unconfigured) ExportText(context.Context, string) ([]byte, error) {
	return nil, ErrNotConfigured
}
