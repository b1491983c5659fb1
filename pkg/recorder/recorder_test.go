package recorder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	got := FileName("/logs/calls", "abc-123", ts)
	require.Equal(t, filepath.Join("/logs/calls", "call_abc-123_20260102_150405.raw"), got)
}

func TestOpenWriteClose(t *testing.T) {
	dir := t.TempDir()
	ts := time.Now()

	r, err := Open(dir, "call1", ts)
	require.NoError(t, err)
	require.True(t, r.Enabled())

	require.NoError(t, r.Write([]byte{1, 2, 3, 4}))
	require.NoError(t, r.Write([]byte{5, 6}))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(FileName(dir, "call1", ts))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, data)
}

func TestOpenFailureIsNonFatal(t *testing.T) {
	// Pointing dir at a path that can't be created (a file, not a dir).
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	r, err := Open(filepath.Join(blocker, "sub"), "call1", time.Now())
	require.Error(t, err)
	require.False(t, r.Enabled())
	require.NoError(t, r.Write([]byte{1, 2, 3}))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	require.False(t, r.Enabled())
	require.NoError(t, r.Write([]byte{1}))
	require.NoError(t, r.Close())
}
