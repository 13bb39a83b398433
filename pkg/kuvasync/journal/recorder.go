package journal

import (
	"sync"
	"time"
)

// Recorder collects run events for a journal entry. It satisfies
// mirror.Recorder and is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	items []Item
	now   func() time.Time
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) add(it Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it.At = r.now().UTC()
	r.items = append(r.items, it)
}

// Items returns a copy of the collected items.
func (r *Recorder) Items() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Item(nil), r.items...)
}

func (r *Recorder) FileFetched(path, fingerprint string, size int64) {
	r.add(Item{Kind: KindFetched, Path: path, Fingerprint: fingerprint, Size: size})
}

func (r *Recorder) FileUnchanged(string) {}

func (r *Recorder) FileFailed(path string, err error) {
	r.add(Item{Kind: KindFailed, Path: path, Message: err.Error()})
}

func (r *Recorder) FileRemoved(path string) {
	r.add(Item{Kind: KindRemoved, Path: path})
}

func (r *Recorder) FolderRenamed(from, to string) {
	r.add(Item{Kind: KindRenamed, Path: to, From: from})
}

func (r *Recorder) FolderPruned(path string) {
	r.add(Item{Kind: KindPruned, Path: path})
}

func (r *Recorder) FolderFailed(path string, err error) {
	r.add(Item{Kind: KindFolder, Path: path, Message: err.Error()})
}

func (r *Recorder) Warning(path, msg string) {
	r.add(Item{Kind: KindWarning, Path: path, Message: msg})
}
