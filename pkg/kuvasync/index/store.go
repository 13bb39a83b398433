package index

import (
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no entry exists for a path.
var ErrNotFound = errors.New("index entry not found")

// Store wraps Badger for index operations.
type Store struct {
	db *badger.DB
}

// Open opens or creates an index at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an index that lives only for the life of the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry for a picture path.
func (s *Store) Get(root, p string) (*Entry, error) {
	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(MakeKey(root, p))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores the entry for a picture path.
func (s *Store) Put(root, p string, entry *Entry) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MakeKey(root, p), value)
	})
}

// Delete removes the entry for a picture path. Deleting an absent entry
// is not an error.
func (s *Store) Delete(root, p string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(MakeKey(root, p))
	})
}

// DeletePrefix removes every entry of root below dir and returns how many
// were removed.
func (s *Store) DeletePrefix(root, dir string) (int, error) {
	prefix := MakeKeyPrefix(root, dir)
	n := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		keys := collectKeys(txn, prefix)
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	return n, err
}

// MovePrefix rewrites every entry of root below from so it lives below to
// instead. It returns how many entries moved.
func (s *Store) MovePrefix(root, from, to string) (int, error) {
	prefix := MakeKeyPrefix(root, from)
	target := MakeKeyPrefix(root, to)
	n := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, k := range collectKeys(txn, prefix) {
			item, err := txn.Get(k)
			if err != nil {
				return err
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			moved := append(append([]byte{}, target...), k[len(prefix):]...)
			if err := txn.Set(moved, value); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func collectKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// Walk calls fn for every entry of root in key order. Returning an error
// from fn stops the walk.
func (s *Store) Walk(root string, fn func(p string, e *Entry) error) error {
	prefix := MakeKeyPrefix(root, "")
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry Entry
			if err := it.Item().Value(entry.Decode); err != nil {
				return err
			}
			_, p := ParseKey(it.Item().Key())
			if err := fn(p, &entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// FolderStats summarizes the indexed pictures of one folder.
type FolderStats struct {
	Folder      string `json:"folder" yaml:"folder"`
	Files       int    `json:"files" yaml:"files"`
	Bytes       int64  `json:"bytes" yaml:"bytes"`
	LastFetched int64  `json:"last_fetched" yaml:"last_fetched"`
}

// Stats returns per-folder statistics for root, sorted by folder path.
func (s *Store) Stats(root string) ([]FolderStats, error) {
	byFolder := make(map[string]*FolderStats)
	err := s.Walk(root, func(p string, e *Entry) error {
		folder := path.Dir(p)
		if !strings.HasSuffix(folder, "/") {
			folder += "/"
		}
		st, ok := byFolder[folder]
		if !ok {
			st = &FolderStats{Folder: folder}
			byFolder[folder] = st
		}
		st.Files++
		st.Bytes += e.Size
		if e.FetchedAt > st.LastFetched {
			st.LastFetched = e.FetchedAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats := make([]FolderStats, 0, len(byFolder))
	for _, st := range byFolder {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Folder < stats[j].Folder })
	return stats, nil
}
