package index

import (
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/logging"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/mirror"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/sidecar"
)

// Recorder keeps the index in step with a mirror run. Index failures are
// logged and counted but never fail the run.
type Recorder struct {
	mirror.NopRecorder

	store *Store
	root  string
	clock clockwork.Clock
	log   *logging.Logger

	mu     sync.Mutex
	errors int
}

// NewRecorder returns a recorder that updates store for the mirror at root.
func NewRecorder(store *Store, root string, clock clockwork.Clock) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recorder{
		store: store,
		root:  root,
		clock: clock,
		log:   logging.Get("index"),
	}
}

// Errors returns how many index updates failed.
func (r *Recorder) Errors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

func (r *Recorder) fail(op, p string, err error) {
	if err == nil {
		return
	}
	r.log.Warn("index update failed", "op", op, "path", p, "error", err)
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
}

func (r *Recorder) FileFetched(p, fingerprint string, size int64) {
	err := r.store.Put(r.root, p, &Entry{
		Fingerprint: fingerprint,
		Size:        size,
		FetchedAt:   r.clock.Now().UnixNano(),
	})
	r.fail("put", p, err)
}

func (r *Recorder) FileFailed(p string, _ error) {
	r.fail("delete", p, r.store.Delete(r.root, p))
}

func (r *Recorder) FileRemoved(p string) {
	if sidecar.IsSidecar(p) {
		return
	}
	r.fail("delete", p, r.store.Delete(r.root, p))
}

func (r *Recorder) FolderRenamed(from, to string) {
	_, err := r.store.MovePrefix(r.root, from, to)
	r.fail("move", from, err)
}

func (r *Recorder) FolderPruned(dir string) {
	_, err := r.store.DeletePrefix(r.root, strings.TrimSuffix(dir, "/"))
	r.fail("delete", dir, err)
}
