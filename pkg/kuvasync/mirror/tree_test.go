package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

func TestRun_MirrorsTree(t *testing.T) {
	fs := osFs(t)
	g := newFakeGallery()
	g.setTree(map[string]int{"/": 0, "/a/": 1, "/a/b/": 2})
	g.addFile("/a/", "one.jpg", "h1")
	g.addFile("/a/b/", "two.jpg", "h2")
	e, _ := newTestEngine(t, fs, g)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Fetched)
	assert.Len(t, summary.Folders, 3)
	assert.False(t, summary.Interrupted)

	assert.Equal(t, []string{
		"/FolderTree.json",
		"/a/",
		"/a/b/",
		"/a/b/two.jpg",
		"/a/b/two.jpg.json",
		"/a/one.jpg",
		"/a/one.jpg.json",
	}, listTree(t, fs))
	assert.JSONEq(t, g.tree, readFile(t, fs, "/"+TreeFile))
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	fs := osFs(t)
	g := newFakeGallery()
	g.setTree(map[string]int{"/a/": 1, "/b/": 2})
	g.addFile("/a/", "one.jpg", "h1")
	g.addFile("/b/", "two.jpg", "h2")
	e, rec := newTestEngine(t, fs, g)

	_, err := e.Run(ctx)
	require.NoError(t, err)
	before := listTree(t, fs)

	g.resetCalls()
	rec.removed = nil
	summary, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Zero(t, g.downloadCount())
	assert.Zero(t, summary.Fetched)
	assert.Zero(t, summary.Removed)
	assert.Zero(t, summary.Pruned)
	assert.Zero(t, summary.Renamed)
	assert.Equal(t, 2, summary.Unchanged)
	assert.Empty(t, rec.removed)
	assert.Equal(t, before, listTree(t, fs))
}

func TestRun_RenameScenario(t *testing.T) {
	ctx := context.Background()
	fs := osFs(t)
	g := newFakeGallery()
	g.setTree(map[string]int{"/a/": 1, "/b/": 2})
	g.addFile("/a/", "p.jpg", "h1")
	g.addFile("/b/", "q.jpg", "h2")
	e, rec := newTestEngine(t, fs, g)

	_, err := e.Run(ctx)
	require.NoError(t, err)
	writeFile(t, fs, "/a/notes.txt", "local only")

	// The remote folder /a/ is renamed to /a2/. Its pictures keep their
	// fingerprints but now live under the new path.
	g.setTree(map[string]int{"/a2/": 1, "/b/": 2})
	delete(g.listings, "/a/")
	g.addFile("/a2/", "p.jpg", "h1")
	g.resetCalls()

	summary, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Renamed)
	assert.Equal(t, []string{"/a->/a2"}, rec.renamed)
	assert.Zero(t, g.downloadCount(), "renamed pictures are not downloaded again")

	assert.False(t, exists(t, fs, "/a"))
	assert.Equal(t, "full-h1", readFile(t, fs, "/a2/p.jpg"))
	assert.True(t, exists(t, fs, "/a2/p.jpg.json"))
	assert.Equal(t, "full-h2", readFile(t, fs, "/b/q.jpg"))
	assert.False(t, exists(t, fs, "/a2/notes.txt"), "unlisted files are reconciled away")
}

func TestRun_PrunesRemovedFolders(t *testing.T) {
	ctx := context.Background()
	fs := osFs(t)
	g := newFakeGallery()
	g.setTree(map[string]int{"/a/": 1, "/b/": 2, "/b/c/": 3})
	g.addFile("/a/", "p.jpg", "h1")
	g.addFile("/b/c/", "q.jpg", "h2")
	e, rec := newTestEngine(t, fs, g)

	_, err := e.Run(ctx)
	require.NoError(t, err)

	g.setTree(map[string]int{"/a/": 1})
	summary, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Pruned)
	assert.Equal(t, []string{"/b"}, rec.pruned)
	assert.False(t, exists(t, fs, "/b"))
	assert.True(t, exists(t, fs, "/a/p.jpg"))
}

func TestRun_PreserveModeKeepsFolders(t *testing.T) {
	ctx := context.Background()
	fs := osFs(t)
	g := newFakeGallery()
	g.setTree(map[string]int{"/a/": 1, "/b/": 2})
	g.addFile("/b/", "q.jpg", "h2")
	e, _ := newTestEngine(t, fs, g, func(o *Options) { o.Preserve = true })

	_, err := e.Run(ctx)
	require.NoError(t, err)

	g.setTree(map[string]int{"/a/": 1})
	summary, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Zero(t, summary.Pruned)
	assert.True(t, summary.Preserve)
	assert.True(t, exists(t, fs, "/b/q.jpg"))
}

func TestRun_ListingErrorIsolatedToFolder(t *testing.T) {
	ctx := context.Background()
	fs := osFs(t)
	g := newFakeGallery()
	g.setTree(map[string]int{"/a/": 1, "/b/": 2})
	g.addFile("/a/", "p.jpg", "h1")
	g.addFile("/b/", "q.jpg", "h2")
	e, _ := newTestEngine(t, fs, g)

	_, err := e.Run(ctx)
	require.NoError(t, err)

	g.listErrs["/a/"] = &types.RemoteAPIError{Folder: "/a/", Message: "forbidden"}
	g.removeFile("/a/", "p.jpg")
	g.addFile("/b/", "r.jpg", "h3")

	summary, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FolderErrors())
	assert.True(t, exists(t, fs, "/a/p.jpg"), "nothing deleted in the failing folder")
	assert.True(t, exists(t, fs, "/a/p.jpg.json"))
	assert.Equal(t, "full-h3", readFile(t, fs, "/b/r.jpg"), "other folders proceed")
}

func TestRun_FatalTreeErrors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		fs := osFs(t)
		g := newFakeGallery()
		g.treeErr = errors.New("dns failure")
		e, _ := newTestEngine(t, fs, g)

		_, err := e.Run(context.Background())
		var fatal *types.FatalSetupError
		require.True(t, errors.As(err, &fatal))
		assert.Equal(t, "fetch folder tree", fatal.Op)
		assert.False(t, exists(t, fs, "/"+TreeFile))
	})

	t.Run("malformed tree", func(t *testing.T) {
		fs := osFs(t)
		writeFile(t, fs, "/"+TreeFile, `{"/a/": {"id": 1}}`)
		require.NoError(t, fs.MkdirAll("/a", 0o755))

		g := newFakeGallery()
		g.tree = `{"/a/": {"pro": 0}}`
		e, _ := newTestEngine(t, fs, g)

		_, err := e.Run(context.Background())
		assert.ErrorIs(t, err, gallery.ErrInvalidTree)
		assert.JSONEq(t, `{"/a/": {"id": 1}}`, readFile(t, fs, "/"+TreeFile), "previous snapshot untouched")
		assert.True(t, exists(t, fs, "/a"))
	})
}

func TestRun_CorruptPreviousSnapshotIsEmpty(t *testing.T) {
	fs := osFs(t)
	writeFile(t, fs, "/"+TreeFile, "not json")

	g := newFakeGallery()
	g.setTree(map[string]int{"/a/": 1})
	g.addFile("/a/", "p.jpg", "h1")
	e, _ := newTestEngine(t, fs, g)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fetched)
	assert.JSONEq(t, g.tree, readFile(t, fs, "/"+TreeFile))
}

func TestRun_ProtectedFolders(t *testing.T) {
	tree := `{"/open/": {"id": 1, "pro": 0}, "/secret/": {"id": 2, "pro": 1}}`

	t.Run("without password the folder is skipped and kept", func(t *testing.T) {
		fs := osFs(t)
		writeFile(t, fs, "/secret/old.jpg", "x")

		g := newFakeGallery()
		g.tree = tree
		g.addFile("/open/", "p.jpg", "h1")
		e, _ := newTestEngine(t, fs, g)

		summary, err := e.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, g.authed)
		assert.NotContains(t, g.listed, "/secret/")
		assert.True(t, exists(t, fs, "/secret/old.jpg"))
		assert.Zero(t, summary.Pruned)

		var skipped []string
		for _, f := range summary.Folders {
			if f.Skipped != "" {
				skipped = append(skipped, f.Path+":"+f.Skipped)
			}
		}
		assert.Equal(t, []string{"/secret/:protected"}, skipped)
	})

	t.Run("with password the folder is authenticated and synced", func(t *testing.T) {
		fs := osFs(t)
		g := newFakeGallery()
		g.tree = tree
		g.addFile("/secret/", "s.jpg", "h9")
		e, _ := newTestEngine(t, fs, g, func(o *Options) {
			o.Passwords = staticPasswords{"/secret/": "hunter2"}
		})

		_, err := e.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"/secret/"}, g.authed)
		assert.Equal(t, "full-h9", readFile(t, fs, "/secret/s.jpg"))
	})

	t.Run("failed authentication skips the folder", func(t *testing.T) {
		fs := osFs(t)
		g := newFakeGallery()
		g.tree = tree
		g.authErr = errors.New("wrong password")
		e, rec := newTestEngine(t, fs, g, func(o *Options) {
			o.Passwords = staticPasswords{"/secret/": "nope"}
		})

		_, err := e.Run(context.Background())
		require.NoError(t, err)
		assert.NotContains(t, g.listed, "/secret/")
		assert.NotEmpty(t, rec.warnings)
	})
}

func TestRun_ExcludedFoldersAreKept(t *testing.T) {
	ctx := context.Background()
	fs := osFs(t)
	g := newFakeGallery()
	g.setTree(map[string]int{"/a/": 1, "/private/": 2, "/private/x/": 3})
	g.addFile("/a/", "p.jpg", "h1")
	g.addFile("/private/", "s.jpg", "h2")
	e, _ := newTestEngine(t, fs, g, func(o *Options) { o.Exclude = []string{"/private/"} })

	writeFile(t, fs, "/private/x/old.jpg", "x")
	writeFile(t, fs, "/private/x/deeper/keep.txt", "x")

	_, err := e.Run(ctx)
	require.NoError(t, err)

	assert.NotContains(t, g.listed, "/private/")
	assert.NotContains(t, g.listed, "/private/x/")
	assert.False(t, exists(t, fs, "/private/s.jpg"))
	assert.True(t, exists(t, fs, "/private/x/old.jpg"))
	assert.True(t, exists(t, fs, "/private/x/deeper/keep.txt"))
	assert.True(t, exists(t, fs, "/a/p.jpg"))
}

func TestNew_InvalidExclude(t *testing.T) {
	_, err := New(Options{Fs: osFs(t), Gallery: newFakeGallery(), Exclude: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestRun_ConcurrentFolders(t *testing.T) {
	fs := osFs(t)
	g := newFakeGallery()
	folders := map[string]int{}
	for i, name := range []string{"a", "b", "c", "d", "e", "f"} {
		folders["/"+name+"/"] = i + 1
		g.addFile("/"+name+"/", "p.jpg", "h-"+name)
	}
	g.setTree(folders)
	e, _ := newTestEngine(t, fs, g, func(o *Options) { o.Concurrency = 3 })

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Fetched)
	assert.Len(t, summary.Folders, 6)
	for name := range folders {
		assert.True(t, exists(t, fs, name+"p.jpg"))
	}
}

func TestRun_CancelledSkipsPrune(t *testing.T) {
	fs := osFs(t)
	require.NoError(t, fs.MkdirAll("/stale", 0o755))

	g := newFakeGallery()
	g.setTree(map[string]int{"/a/": 1})

	e, _ := newTestEngine(t, fs, g)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := e.Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.True(t, exists(t, fs, "/stale"))
}
