// Package sidecar stores the per-picture fingerprint records that sit next
// to downloaded content in the mirror.
//
// A record for "/a/pic.jpg" lives at "/a/pic.jpg.json" and holds the file
// descriptor exactly as the gallery sent it. A record only vouches for the
// content when both files exist.
package sidecar

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Suffix is appended to a content path to form its sidecar path.
const Suffix = ".json"

// PartSuffix marks content that is still being downloaded. A part file
// next to a content file means the sidecar may describe a newer picture
// than the content holds.
const PartSuffix = ".part"

// State describes how a local content/sidecar pair relates to a remote
// fingerprint.
type State int

const (
	// Missing means neither the content nor the sidecar exists.
	Missing State = iota
	// Partial means exactly one of the pair exists, or the sidecar is
	// unreadable.
	Partial
	// Stale means both exist but the stored fingerprint differs.
	Stale
	// Pending means both exist but a download into the part file did not
	// finish, so the content may be older than the sidecar.
	Pending
	// Fresh means both exist and the fingerprint matches.
	Fresh
)

func (s State) String() string {
	switch s {
	case Missing:
		return "missing"
	case Partial:
		return "partial"
	case Stale:
		return "stale"
	case Pending:
		return "pending"
	case Fresh:
		return "fresh"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Record is a stored sidecar.
type Record struct {
	Fingerprint string

	// Raw is the serialized descriptor. Write stores it verbatim.
	Raw []byte
}

// NewRecord builds a record from a raw descriptor, reading the fingerprint
// from its "hash" field.
func NewRecord(raw []byte) (Record, error) {
	var doc struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Record{}, fmt.Errorf("parse sidecar: %w", err)
	}
	if doc.Hash == "" {
		return Record{}, fmt.Errorf("parse sidecar: no hash")
	}
	return Record{Fingerprint: doc.Hash, Raw: raw}, nil
}

// Store reads and writes sidecars on a filesystem.
type Store struct {
	fs afero.Fs
}

// New returns a store over fs. Paths passed to the store are interpreted
// by fs, so a base-path filesystem scopes them to the mirror root.
func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// PathFor returns the sidecar path of a content path.
func PathFor(contentPath string) string {
	return contentPath + Suffix
}

// PartPath returns the in-progress download path of a content path.
func PartPath(contentPath string) string {
	return contentPath + PartSuffix
}

// IsSidecar reports whether a file name looks like a sidecar.
func IsSidecar(name string) bool {
	return strings.HasSuffix(name, Suffix) && len(name) > len(Suffix)
}

// ContentName returns the content file name a sidecar belongs to.
func ContentName(name string) string {
	return strings.TrimSuffix(name, Suffix)
}

// Read loads the sidecar of contentPath. Absent, unreadable and corrupt
// sidecars all report false.
func (s *Store) Read(contentPath string) (Record, bool) {
	data, err := afero.ReadFile(s.fs, PathFor(contentPath))
	if err != nil {
		return Record{}, false
	}
	rec, err := NewRecord(data)
	if err != nil {
		return Record{}, false
	}
	return rec, true
}

// Write stores rec as the sidecar of contentPath. The file is written to a
// temporary name first and renamed into place.
func (s *Store) Write(contentPath string, rec Record) error {
	target := PathFor(contentPath)
	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create sidecar dir: %w", err)
	}

	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, rec.Raw, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename sidecar: %w", err)
	}
	return nil
}

// Exists reports whether the content file exists as a regular file.
func (s *Store) Exists(contentPath string) bool {
	info, err := s.fs.Stat(contentPath)
	return err == nil && info.Mode().IsRegular()
}

// Check classifies the local pair for contentPath against fingerprint.
func (s *Store) Check(contentPath, fingerprint string) State {
	content := s.Exists(contentPath)
	rec, ok := s.Read(contentPath)

	switch {
	case content && ok:
		if s.pending(contentPath) {
			return Pending
		}
		if rec.Fingerprint == fingerprint {
			return Fresh
		}
		return Stale
	case !content && !ok && !s.sidecarPresent(contentPath):
		return Missing
	default:
		return Partial
	}
}

func (s *Store) sidecarPresent(contentPath string) bool {
	_, err := s.fs.Stat(PathFor(contentPath))
	return err == nil
}

func (s *Store) pending(contentPath string) bool {
	_, err := s.fs.Stat(PartPath(contentPath))
	return err == nil
}
