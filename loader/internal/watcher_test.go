package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (*Watcher, *time.Time) {
	t.Helper()
	root := t.TempDir()
	w, err := NewWatcher(WatcherConfig{
		SourceDir:      filepath.Join(root, "inbox"),
		ArchiveDir:     filepath.Join(root, "archive"),
		BadDir:         filepath.Join(root, "bad"),
		MonitoringTime: 5 * time.Second,
		Extensions:     []string{".pdf"},
	}, nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	return w, &now
}

func TestWatcherWaitsForStableFiles(t *testing.T) {
	w, now := newTestWatcher(t)
	pdf := filepath.Join(w.cfg.SourceDir, "a.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(w.cfg.SourceDir, "notes.txt"), []byte("x"), 0o644))

	assert.Empty(t, w.Scan())

	*now = now.Add(2 * time.Second)
	assert.Empty(t, w.Scan())

	*now = now.Add(3 * time.Second)
	assert.Equal(t, []string{pdf}, w.Scan())

	// already handed out
	*now = now.Add(time.Minute)
	assert.Empty(t, w.Scan())

	w.Done(pdf)
	assert.Empty(t, w.Scan())
}

func TestWatcherForgetsRemovedFiles(t *testing.T) {
	w, now := newTestWatcher(t)
	pdf := filepath.Join(w.cfg.SourceDir, "a.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))

	w.Scan()
	require.NoError(t, os.Remove(pdf))
	w.Scan()

	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))
	*now = now.Add(10 * time.Second)
	assert.Empty(t, w.Scan())
}

func TestMoveToArchive(t *testing.T) {
	w, _ := newTestWatcher(t)
	day := filepath.Join(w.cfg.ArchiveDir, "2026-03-01")

	for _, want := range []string{"a.pdf", "a_1.pdf"} {
		src := filepath.Join(w.cfg.SourceDir, "a.pdf")
		require.NoError(t, os.WriteFile(src, []byte("%PDF"), 0o644))

		dest, err := w.MoveToArchive(src, FileDone)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(day, want), dest)
		assert.FileExists(t, dest)
		assert.NoFileExists(t, src)
	}
}

func TestMoveToBad(t *testing.T) {
	w, _ := newTestWatcher(t)
	src := filepath.Join(w.cfg.SourceDir, "b.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF"), 0o644))

	dest, err := w.MoveToArchive(src, FileBad)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.cfg.BadDir, "2026-03-01", "b.pdf"), dest)
}
