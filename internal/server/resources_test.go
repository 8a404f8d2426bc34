package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querier/internal/decl"
)

func copyFixture(t *testing.T, dir, name, as string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "resources", name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, as), data, 0o644))
}

func TestWatchDir(t *testing.T) {
	resources, err := WatchDir("testdata/resources")
	require.NoError(t, err)

	assert.Equal(t, []string{"ghosts", "people", "tiny"}, resources.Names())

	people, ok := resources.Resource("people")
	require.True(t, ok)
	assert.Equal(t, "people", people.Table)
	assert.Equal(t, "id", people.TieBreaker)

	_, ok = resources.Resource("planets")
	assert.False(t, ok)
}

func TestWatchDir_SkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "people.yaml", "people.yml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# resources\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	resources, err := WatchDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, resources.Names())
}

func TestWatchDir_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string)
		wantErr string
	}{
		{
			name:    "empty directory",
			setup:   func(t *testing.T, dir string) {},
			wantErr: "no declarations found",
		},
		{
			name: "same name twice",
			setup: func(t *testing.T, dir string) {
				copyFixture(t, dir, "people.yaml", "people.yaml")
				copyFixture(t, dir, "people.yaml", "people.yml")
			},
			wantErr: `resource "people" is declared twice`,
		},
		{
			name: "invalid declaration",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("table: \"drop table\"\n"), 0o644))
			},
			wantErr: `resource "bad"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			_, err := WatchDir(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWatchDir_MissingDirectory(t *testing.T) {
	_, err := WatchDir(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read resources directory")
}

func TestResources_RunReloads(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "people.yaml", "people.yaml")

	resources, err := WatchDir(dir, decl.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- resources.Run(ctx) }()

	// give the watchers time to register
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.yaml"), []byte("table: accounts\ncolumns: [id]\n"), 0o644))

	require.Eventually(t, func() bool {
		r, _ := resources.Resource("people")
		return r.Table == "accounts"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
