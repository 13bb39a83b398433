package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

func summaryAt(started time.Time) *types.RunSummary {
	return &types.RunSummary{
		Root:     "/srv/mirror",
		Site:     "https://example.kuvat.fi",
		Started:  started,
		Finished: started.Add(time.Minute),
		Fetched:  2,
	}
}

func TestNew(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	j, err := New(t.TempDir())
	require.NoError(t, err)
	assert.NotEmpty(t, j.Dir())
}

func TestJournalWriteAndGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	j, err := New(dir)
	require.NoError(t, err)

	rec := NewRecorder()
	rec.FileFetched("/a/1.jpg", "h1", 10)
	rec.FileUnchanged("/a/2.jpg")
	rec.FileRemoved("/a/3.jpg")
	rec.FolderRenamed("/b/", "/c/")
	rec.Warning("/a/", "missing content for 4.jpg")

	entry, err := j.Write(summaryAt(time.Now()), rec, nil)
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	assert.Len(t, entry.Items, 4)
	assert.Equal(t, 1, entry.Count(KindRenamed))

	got, err := j.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, 2, got.Summary.Fetched)
	require.Len(t, got.Items, 4)
	assert.Equal(t, KindFetched, got.Items[0].Kind)
	assert.Equal(t, int64(10), got.Items[0].Size)
	assert.Equal(t, "/b/", got.Items[2].From)

	// No temp files left behind.
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestJournalWriteSetupError(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)

	entry, err := j.Write(summaryAt(time.Now()), nil, errors.New("tree unavailable"))
	require.NoError(t, err)
	assert.Equal(t, "tree unavailable", entry.Error)
	assert.Empty(t, entry.Items)

	_, err = j.Write(nil, nil, nil)
	assert.Error(t, err)
}

func TestJournalGetPrefix(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)

	entry, err := j.Write(summaryAt(time.Now()), nil, nil)
	require.NoError(t, err)

	got, err := j.Get(entry.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)

	_, err = j.Get("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = j.Get("")
	assert.Error(t, err)
}

func TestJournalListNewestFirst(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := j.Write(summaryAt(base.Add(time.Duration(i)*time.Hour)), nil, nil)
		require.NoError(t, err)
	}

	// Garbage is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(j.Dir(), "junk.json"), []byte("{"), 0o644))

	entries, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, base.Add(2*time.Hour), entries[0].Summary.Started.UTC())
	assert.Equal(t, base, entries[2].Summary.Started.UTC())

	limited, err := j.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestJournalListMissingDir(t *testing.T) {
	j, err := New(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)

	entries, err := j.List(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournalCleanup(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	_, err = j.Write(summaryAt(now.AddDate(0, 0, -40)), nil, nil)
	require.NoError(t, err)
	recent, err := j.Write(summaryAt(now.AddDate(0, 0, -1)), nil, nil)
	require.NoError(t, err)

	n, err := j.Cleanup(0, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = j.Cleanup(30, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, recent.ID, entries[0].ID)
}

func TestRecorderConcurrent(t *testing.T) {
	rec := NewRecorder()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for k := 0; k < 50; k++ {
				rec.FileFetched("/x.jpg", "h", 1)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Len(t, rec.Items(), 400)
}

func TestRecorderFailures(t *testing.T) {
	rec := NewRecorder()
	rec.FileFailed("/a/x.jpg", errors.New("status 500"))
	rec.FolderFailed("/b/", errors.New("listing refused"))
	rec.FolderPruned("/old/")

	items := rec.Items()
	require.Len(t, items, 3)
	assert.Equal(t, KindFailed, items[0].Kind)
	assert.Equal(t, "status 500", items[0].Message)
	assert.Equal(t, KindFolder, items[1].Kind)
	assert.Equal(t, KindPruned, items[2].Kind)
	assert.False(t, items[2].At.IsZero())
}
