package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/logging"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// fakeGallery serves a tree and listings from memory and records calls.
type fakeGallery struct {
	mu sync.Mutex

	tree     string
	treeErr  error
	listings map[string][]gallery.File
	// rawListings serves a folder from a listing document instead.
	rawListings map[string]string
	listErrs    map[string]error
	content     map[string]string
	failURLs    map[string]int
	downloads   []string
	listed      []string
	authed      []string
	authErr     error
}

func newFakeGallery() *fakeGallery {
	return &fakeGallery{
		listings:    make(map[string][]gallery.File),
		rawListings: make(map[string]string),
		listErrs:    make(map[string]error),
		content:     make(map[string]string),
		failURLs:    make(map[string]int),
	}
}

// setTree replaces the tree with folders given as path -> id.
func (g *fakeGallery) setTree(folders map[string]int) {
	entries := make(map[string]map[string]interface{}, len(folders))
	for p, id := range folders {
		entries[p] = map[string]interface{}{"id": id, "pro": 0}
	}
	data, _ := json.Marshal(entries)
	g.tree = string(data)
}

// addFile lists a picture with small and full variants.
func (g *fakeGallery) addFile(folder, name, hash string) gallery.File {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := gallery.DirOf(folder)
	if p == "/" {
		p = ""
	}
	p += "/" + name
	f := gallery.File{
		Path:        p,
		Fingerprint: hash,
		Variants:    []string{"small:" + p, "full:" + p},
	}
	f.Raw = f.Descriptor()
	g.content["small:"+p] = "small-" + hash
	g.content["full:"+p] = "full-" + hash

	files := g.listings[folder]
	for i, existing := range files {
		if existing.Path == p {
			files[i] = f
			return f
		}
	}
	g.listings[folder] = append(files, f)
	return f
}

func (g *fakeGallery) removeFile(folder, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	files := g.listings[folder]
	for i, f := range files {
		if f.Name() == name {
			g.listings[folder] = append(files[:i], files[i+1:]...)
			return
		}
	}
}

func (g *fakeGallery) FetchTree(context.Context) ([]byte, error) {
	if g.treeErr != nil {
		return nil, g.treeErr
	}
	return []byte(g.tree), nil
}

func (g *fakeGallery) FetchListing(_ context.Context, folderPath string) (*gallery.Listing, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listed = append(g.listed, folderPath)
	if err := g.listErrs[folderPath]; err != nil {
		return nil, err
	}
	if raw, ok := g.rawListings[folderPath]; ok {
		return gallery.ParseListing(folderPath, []byte(raw), nil)
	}
	return &gallery.Listing{Files: append([]gallery.File(nil), g.listings[folderPath]...)}, nil
}

func (g *fakeGallery) AuthenticateFolder(_ context.Context, folder gallery.Folder, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authed = append(g.authed, folder.Path)
	return g.authErr
}

func (g *fakeGallery) Download(_ context.Context, url string, w io.Writer) (int64, error) {
	g.mu.Lock()
	g.downloads = append(g.downloads, url)
	status := g.failURLs[url]
	body, ok := g.content[url]
	g.mu.Unlock()

	if status != 0 {
		return 0, &types.FetchError{URL: url, StatusCode: status, Body: "nope"}
	}
	if !ok {
		return 0, &types.FetchError{URL: url, StatusCode: 404, Body: "not found"}
	}
	n, err := io.Copy(w, strings.NewReader(body))
	return n, err
}

func (g *fakeGallery) downloadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.downloads)
}

func (g *fakeGallery) resetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.downloads = nil
	g.listed = nil
	g.authed = nil
}

// eventRecorder captures engine events.
type eventRecorder struct {
	NopRecorder
	mu       sync.Mutex
	fetched  []string
	removed  []string
	renamed  []string
	pruned   []string
	failed   []string
	warnings []string
}

func (r *eventRecorder) FileFetched(path, _ string, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetched = append(r.fetched, path)
}

func (r *eventRecorder) FileRemoved(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *eventRecorder) FolderRenamed(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renamed = append(r.renamed, from+"->"+to)
}

func (r *eventRecorder) FolderPruned(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned = append(r.pruned, path)
}

func (r *eventRecorder) FolderFailed(path string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, path)
}

func (r *eventRecorder) Warning(path, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, path+": "+msg)
}

type staticPasswords map[string]string

func (s staticPasswords) Password(folder gallery.Folder) (string, bool) {
	pw, ok := s[folder.Path]
	return pw, ok
}

func newTestEngine(t *testing.T, fs afero.Fs, g Gallery, mutate ...func(*Options)) (*Engine, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	opts := Options{
		Fs:       fs,
		Gallery:  g,
		Recorder: rec,
		Logger:   logging.Discard(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e, rec
}

// osFs returns a mirror filesystem rooted in a temporary directory.
func osFs(t *testing.T) afero.Fs {
	t.Helper()
	return afero.NewBasePathFs(afero.NewOsFs(), t.TempDir())
}

func readFile(t *testing.T, fs afero.Fs, p string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	return string(data)
}

func writeFile(t *testing.T, fs afero.Fs, p, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(path.Dir(p), 0o755))
	require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
}

func exists(t *testing.T, fs afero.Fs, p string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, p)
	require.NoError(t, err)
	return ok
}

// listTree returns every path in fs below the root, sorted.
func listTree(t *testing.T, fs afero.Fs) []string {
	t.Helper()
	var out []string
	require.NoError(t, afero.Walk(fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p != "/" {
			suffix := ""
			if info.IsDir() {
				suffix = "/"
			}
			out = append(out, fmt.Sprintf("%s%s", p, suffix))
		}
		return nil
	}))
	sort.Strings(out)
	return out
}
