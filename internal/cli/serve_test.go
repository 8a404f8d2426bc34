package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{
			name:    "missing config file",
			args:    []string{"--config", filepath.Join(t.TempDir(), "missing.yaml")},
			wantMsg: "failed to read config",
		},
		{
			name:    "unsafe tie breaker",
			args:    []string{"--tie-breaker", "id; drop table people"},
			wantMsg: "tie_breaker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewServeCommand(&RootOptions{Format: "text"})
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestServeMissingResources(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := NewServeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--db", filepath.Join(tmpDir, "test.db"),
		"--resources", filepath.Join(tmpDir, "missing"),
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load resources")
}

func TestServeGracefulShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	resourcesDir := filepath.Join(tmpDir, "resources")
	require.NoError(t, os.MkdirAll(resourcesDir, 0755))
	data, err := os.ReadFile(peopleDecl)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(resourcesDir, "people.yaml"), data, 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &bytes.Buffer{}
	cmd := NewServeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--addr", "127.0.0.1:0",
		"--db", filepath.Join(tmpDir, "test.db"),
		"--resources", resourcesDir,
	})
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	assert.Contains(t, buf.String(), "Serving 1 resource(s) on 127.0.0.1:0")
}
