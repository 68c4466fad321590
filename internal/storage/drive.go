package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const listPageSize = 1000

// DriveStore is the Google Drive implementation of Store, authenticated with
// a service account.
type DriveStore struct {
	svc *drive.Service
}

// NewDriveStore creates a Drive client from a service-account credential
// blob. An empty blob is a configuration error, not a crash.
func NewDriveStore(ctx context.Context, credentialsJSON string) (*DriveStore, error) {
	if credentialsJSON == "" {
		return nil, ErrNotConfigured
	}

	svc, err := drive.NewService(ctx,
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &DriveStore{svc: svc}, nil
}

// List returns the direct, non-trashed children of a folder.
func (s *DriveStore) List(ctx context.Context, folderID string) ([]Entry, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false", folderID)

	var entries []Entry
	pageToken := ""
	for {
		call := s.svc.Files.List().
			Q(query).
			Fields("nextPageToken", "files(id, name, mimeType)").
			PageSize(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
		}

		for _, f := range page.Files {
			entries = append(entries, Entry{
				ID:       f.Id,
				Name:     f.Name,
				MimeType: f.MimeType,
			})
		}

		if page.NextPageToken == "" {
			return entries, nil
		}
		pageToken = page.NextPageToken
	}
}

// Download fetches the raw bytes of a file, retrying transient failures.
func (s *DriveStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	return s.fetch(ctx, func() (*http.Response, error) {
		return s.svc.Files.Get(fileID).Context(ctx).Download()
	})
}

// ExportText fetches a Google-native document exported as plain text.
func (s *DriveStore) ExportText(ctx context.Context, fileID string) ([]byte, error) {
	return s.fetch(ctx, func() (*http.Response, error) {
		return s.svc.Files.Export(fileID, MimePlainText).Context(ctx).Download()
	})
}

func (s *DriveStore) fetch(ctx context.Context, do func() (*http.Response, error)) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			resp, err := do()
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}
