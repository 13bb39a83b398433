// Package index keeps a persistent record of mirrored pictures, keyed by
// mirror root and picture path, so status queries need not walk the tree.
package index

import (
	"bytes"
	"encoding/gob"
	"strings"
	"time"
)

// FormatVersion is incremented when the entry encoding changes.
const FormatVersion = 1

// KeySeparator separates root from picture path in keys.
const KeySeparator = '\x00'

// Entry describes one mirrored picture.
type Entry struct {
	Fingerprint string
	Size        int64
	FetchedAt   int64 // UnixNano
}

// Fetched returns FetchedAt as a time.
func (e *Entry) Fetched() time.Time {
	return time.Unix(0, e.FetchedAt)
}

// Encode serializes the entry using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes data into the entry.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey creates a key from root and picture path.
// Format: <root>\x00<path>
func MakeKey(root, p string) []byte {
	return []byte(root + string(KeySeparator) + p)
}

// ParseKey splits a key into root and picture path.
func ParseKey(key []byte) (root, p string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}

// MakeKeyPrefix returns the prefix for all keys of root below dir. An
// empty dir selects the whole root.
func MakeKeyPrefix(root, dir string) []byte {
	if dir == "" {
		return []byte(root + string(KeySeparator))
	}
	return []byte(root + string(KeySeparator) + strings.TrimSuffix(dir, "/") + "/")
}
