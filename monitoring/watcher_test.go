package monitoring

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestArtifactWatcherReportsKnownFiles(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)
	changes := make(chan string, 16)

	w, err := NewArtifactWatcher(dir, []string{"model_info.json"}, zap.New(core), func(file string) {
		changes <- file
	})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_info.json"), []byte("{}"), 0o644))

	select {
	case file := <-changes:
		assert.Equal(t, "model_info.json", file)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	entries := logs.FilterMessage("artifact changed on disk, restart required to serve it").All()
	require.NotEmpty(t, entries)
	assert.Equal(t, "model_info.json", entries[0].ContextMap()["file"])
}

func TestNewArtifactWatcherErrors(t *testing.T) {
	_, err := NewArtifactWatcher(t.TempDir(), nil, nil, nil)
	assert.Error(t, err)

	_, err = NewArtifactWatcher(filepath.Join(t.TempDir(), "missing"), []string{"a"}, nil, nil)
	assert.Error(t, err)
}
