// Package tenant provides the static tenant directory.
package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrUnknownTenant is returned when an access id does not resolve.
var ErrUnknownTenant = errors.New("unknown tenant")

// Directory maps tenant access ids to remote storage folder ids. It is
// loaded once at startup and immutable afterwards.
type Directory struct {
	folders map[string]string
}

// New creates a directory from an id -> folder mapping.
func New(folders map[string]string) *Directory {
	m := make(map[string]string, len(folders))
	for id, folder := range folders {
		m[id] = folder
	}
	return &Directory{folders: m}
}

// Load builds the directory from a JSON blob or, if blob is empty, from a
// JSON file. The format is a flat object: {"access_id": "folder_id", ...}.
func Load(blob, path string) (*Directory, error) {
	data := []byte(blob)
	if len(data) == 0 {
		if path == "" {
			return nil, errors.New("tenant database not configured")
		}
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read tenant database: %w", err)
		}
	}

	var folders map[string]string
	if err := json.Unmarshal(data, &folders); err != nil {
		return nil, fmt.Errorf("failed to parse tenant database: %w", err)
	}
	if len(folders) == 0 {
		return nil, errors.New("tenant database is empty")
	}

	return New(folders), nil
}

// Resolve returns the folder id for an access id. Lookup is exact-match.
func (d *Directory) Resolve(accessID string) (string, error) {
	folder, ok := d.folders[accessID]
	if !ok {
		return "", ErrUnknownTenant
	}
	return folder, nil
}

// Len returns the number of registered tenants.
func (d *Directory) Len() int {
	return len(d.folders)
}
