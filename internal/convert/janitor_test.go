package convert

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_SweepRemovesOnlyStaleEntries(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "conv-stale")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "input.step"), []byte("x"), 0o600))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(dir, "conv-fresh")
	require.NoError(t, os.MkdirAll(fresh, 0o755))

	j := NewJanitor(dir, time.Hour, time.Minute, testLogger())
	removed := j.Sweep()

	assert.Equal(t, 1, removed)
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestJanitor_MissingDirIsQuiet(t *testing.T) {
	j := NewJanitor(filepath.Join(t.TempDir(), "absent"), time.Hour, time.Minute, testLogger())
	assert.Equal(t, 0, j.Sweep())
}

func TestJanitor_StartStop(t *testing.T) {
	j := NewJanitor(t.TempDir(), time.Hour, 10*time.Millisecond, testLogger())
	j.Start()
	time.Sleep(30 * time.Millisecond)
	j.Stop()
}
