package tenant

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBlob(t *testing.T) {
	dir, err := Load(`{"demo": "folder-1", "acme": "folder-2"}`, "")
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Len())

	folder, err := dir.Resolve("acme")
	require.NoError(t, err)
	assert.Equal(t, "folder-2", folder)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"demo": "folder-1"}`), 0o600))

	dir, err := Load("", path)
	require.NoError(t, err)

	folder, err := dir.Resolve("demo")
	require.NoError(t, err)
	assert.Equal(t, "folder-1", folder)
}

func TestLoadBlobWinsOverFile(t *testing.T) {
	dir, err := Load(`{"demo": "from-blob"}`, "/does/not/exist.json")
	require.NoError(t, err)

	folder, err := dir.Resolve("demo")
	require.NoError(t, err)
	assert.Equal(t, "from-blob", folder)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		blob string
		path string
	}{
		{name: "not configured"},
		{name: "missing file", path: "/does/not/exist.json"},
		{name: "invalid json", blob: `{"demo": `},
		{name: "wrong shape", blob: `{"demo": {"nested": true}}`},
		{name: "empty object", blob: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.blob, tt.path)
			assert.Error(t, err)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	dir := New(map[string]string{"demo": "folder-1"})

	_, err := dir.Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownTenant)

	// Lookup is exact-match, no case folding.
	_, err = dir.Resolve("DEMO")
	assert.ErrorIs(t, err, ErrUnknownTenant)
}
