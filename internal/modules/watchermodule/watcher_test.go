package watchermodule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumengallery/lumen/internal/modules/storemodule"
)

func newTestWatcher(t *testing.T) (*DirectoryWatcher, *storemodule.Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storemodule.NewStore(filepath.Join(root, "imageData.json"), nil)
	require.NoError(t, err)
	dw, err := NewDirectoryWatcher(root, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dw.Stop() })
	return dw, store, root
}

func touchFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("fake image data"), 0o644))
}

func TestReconcile_CreatesRecordsForExistingImages(t *testing.T) {
	dw, store, root := newTestWatcher(t)
	touchFile(t, filepath.Join(root, "a.png"))
	touchFile(t, filepath.Join(root, "b.jpg"))
	touchFile(t, filepath.Join(root, "notes.txt"))
	touchFile(t, filepath.Join(root, "nested", "c.webp"))

	require.NoError(t, dw.Reconcile())

	assert.Equal(t, 3, store.Len())
	_, err := store.Get("c.webp")
	assert.NoError(t, err)
	_, err = store.Get("notes.txt")
	assert.Error(t, err)
}

func TestReconcile_IsIdempotentAndKeepsEnrichment(t *testing.T) {
	dw, store, root := newTestWatcher(t)
	touchFile(t, filepath.Join(root, "a.png"))

	require.NoError(t, dw.Reconcile())
	_, err := store.SetTags("a.png", []string{"cat"})
	require.NoError(t, err)

	require.NoError(t, dw.Reconcile())

	assert.Equal(t, 1, store.Len())
	rec, err := store.Get("a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, rec.Tags)
}

func TestReconcile_NeverDeletesOrphanedRecords(t *testing.T) {
	dw, store, root := newTestWatcher(t)
	_, _, err := store.Create("gone.png", filepath.Join(root, "gone.png"))
	require.NoError(t, err)

	require.NoError(t, dw.Reconcile())

	_, err = store.Get("gone.png")
	assert.NoError(t, err, "records without a file survive reconciliation")
}

func TestShouldIgnore(t *testing.T) {
	dw, _, root := newTestWatcher(t)

	ignored := []string{
		filepath.Join(root, ".hidden.png"),
		filepath.Join(root, "imageData.json"),
		filepath.Join(root, "settings.json"),
		filepath.Join(root, storemodule.TempFilePrefix+"12345"),
	}
	for _, path := range ignored {
		assert.True(t, dw.shouldIgnore(path), path)
	}
	assert.False(t, dw.shouldIgnore(filepath.Join(root, "a.png")))
}

func TestApplyEvent_CreateRemoveWrite(t *testing.T) {
	dw, store, root := newTestWatcher(t)
	path := filepath.Join(root, "a.png")
	touchFile(t, path)

	require.NoError(t, dw.applyEvent(fileEvent{op: fsnotify.Create, path: path}))
	assert.Equal(t, 1, store.Len())

	// Write on a known record refreshes, never errors.
	require.NoError(t, dw.applyEvent(fileEvent{op: fsnotify.Write, path: path}))

	// Write for a path with no file behind it is silently skipped.
	require.NoError(t, dw.applyEvent(fileEvent{op: fsnotify.Write, path: filepath.Join(root, "b.png")}))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, dw.applyEvent(fileEvent{op: fsnotify.Remove, path: path}))
	assert.Zero(t, store.Len())

	// Removing it again is a no-op.
	require.NoError(t, dw.applyEvent(fileEvent{op: fsnotify.Remove, path: path}))
}

func TestApplyEvent_WriteForUnknownFileCreatesRecord(t *testing.T) {
	dw, store, root := newTestWatcher(t)
	path := filepath.Join(root, "a.png")
	touchFile(t, path)

	require.NoError(t, dw.applyEvent(fileEvent{op: fsnotify.Write, path: path}))

	rec, err := store.Get("a.png")
	require.NoError(t, err)
	assert.Equal(t, path, rec.FilePath)
}

// A new file lands as create followed by write within one debounce
// tick, and the pending map keeps only the latest event per path. The
// record must still be created.
func TestDebounce_CreateThenWriteStillCreates(t *testing.T) {
	dw, store, root := newTestWatcher(t)
	path := filepath.Join(root, "a.png")
	touchFile(t, path)

	dw.wg.Add(1)
	go dw.processFileEvents()

	dw.eventQueue <- fileEvent{op: fsnotify.Create, path: path}
	dw.eventQueue <- fileEvent{op: fsnotify.Write, path: path}

	deadline := time.Now().Add(2 * time.Second)
	for len(dw.eventQueue) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Zero(t, len(dw.eventQueue), "queue not drained")

	// Stop cancels the loop, which flushes the pending batch.
	require.NoError(t, dw.Stop())

	assert.Equal(t, 1, store.Len())
	_, err := store.Get("a.png")
	assert.NoError(t, err)
}

func TestApplyEvent_RenameDeletesOldRecord(t *testing.T) {
	dw, store, root := newTestWatcher(t)
	path := filepath.Join(root, "a.png")
	_, _, err := store.Create("a.png", path)
	require.NoError(t, err)

	require.NoError(t, dw.applyEvent(fileEvent{op: fsnotify.Rename, path: path}))
	assert.Zero(t, store.Len())
}
