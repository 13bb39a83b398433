package index

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderTracksRun(t *testing.T) {
	store, err := OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	rec := NewRecorder(store, "/r", clock)

	rec.FileFetched("/a/1.jpg", "h1", 100)
	rec.FileFetched("/a/2.jpg", "h2", 200)
	rec.FileFetched("/b/3.jpg", "h3", 300)

	e, err := store.Get("/r", "/a/1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "h1", e.Fingerprint)
	assert.Equal(t, clock.Now(), e.Fetched().UTC())

	// Removing a sidecar leaves the entry; removing the content drops it.
	rec.FileRemoved("/a/2.jpg.json")
	_, err = store.Get("/r", "/a/2.jpg")
	require.NoError(t, err)
	rec.FileRemoved("/a/2.jpg")
	_, err = store.Get("/r", "/a/2.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	rec.FolderRenamed("/a", "/z")
	_, err = store.Get("/r", "/z/1.jpg")
	require.NoError(t, err)

	rec.FolderPruned("/b")
	_, err = store.Get("/r", "/b/3.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	rec.FileFetched("/z/1.jpg", "h1", 100)
	rec.FileFailed("/z/1.jpg", errors.New("boom"))
	_, err = store.Get("/r", "/z/1.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, rec.Errors())
}
