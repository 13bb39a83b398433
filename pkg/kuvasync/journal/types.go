// Package journal keeps a record of every reconciliation run on disk.
package journal

import (
	"time"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// ItemKind classifies a journal item.
type ItemKind string

const (
	KindFetched ItemKind = "fetched"
	KindFailed  ItemKind = "failed"
	KindRemoved ItemKind = "removed"
	KindRenamed ItemKind = "renamed"
	KindPruned  ItemKind = "pruned"
	KindFolder  ItemKind = "folder_failed"
	KindWarning ItemKind = "warning"
)

// Item is one notable event of a run. Unchanged pictures are not recorded.
type Item struct {
	Kind        ItemKind  `json:"kind"`
	Path        string    `json:"path"`
	From        string    `json:"from,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Size        int64     `json:"size,omitempty"`
	Message     string    `json:"message,omitempty"`
	At          time.Time `json:"at"`
}

// Entry is the journal record of one run.
type Entry struct {
	ID      string            `json:"id"`
	Summary *types.RunSummary `json:"summary"`

	// Error is set when the run aborted during setup.
	Error string `json:"error,omitempty"`

	Items []Item `json:"items,omitempty"`
}

// Count returns the number of items of kind k.
func (e *Entry) Count(k ItemKind) int {
	n := 0
	for _, it := range e.Items {
		if it.Kind == k {
			n++
		}
	}
	return n
}
