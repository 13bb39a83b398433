package gallery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// File describes one remote picture as listed in its folder.
type File struct {
	// Path is the remote file path, unique within its listing.
	Path string

	// Fingerprint is the remote-computed content hash.
	Fingerprint string

	// Variants holds download URLs ordered from smallest to largest
	// resolution.
	Variants []string

	// Raw is the descriptor exactly as the gallery sent it. It is what the
	// sidecar stores.
	Raw json.RawMessage
}

// Name returns the base name of the file.
func (f File) Name() string {
	return path.Base(f.Path)
}

// Largest returns the full-resolution download URL.
func (f File) Largest() string {
	if len(f.Variants) == 0 {
		return ""
	}
	return f.Variants[len(f.Variants)-1]
}

// Smallest returns the lowest-resolution download URL.
func (f File) Smallest() string {
	if len(f.Variants) == 0 {
		return ""
	}
	return f.Variants[0]
}

// Descriptor returns the descriptor bytes to persist for f. Files that were
// not parsed from a listing get a minimal descriptor.
func (f File) Descriptor() []byte {
	if len(f.Raw) > 0 {
		return f.Raw
	}
	data, _ := json.Marshal(rawFile{FilePath: f.Path, Hash: f.Fingerprint, URLs: f.Variants})
	return data
}

// VariantFunc derives the ordered download URLs of a file that did not
// list them explicitly.
type VariantFunc func(filePath string) []string

// Listing is a parsed folder listing.
type Listing struct {
	Files []File

	// Skipped names descriptors that were rejected as malformed.
	Skipped []string

	// Retained holds the paths of rejected descriptors that still named a
	// file. Their local copies must be kept.
	Retained []string
}

type rawListing struct {
	Status  *int            `json:"status"`
	Message json.RawMessage `json:"message"`
}

type rawFile struct {
	FilePath string   `json:"filepath"`
	Hash     string   `json:"hash"`
	URLs     []string `json:"urls,omitempty"`
}

// ParseListing parses a folder listing response. A status of 0 yields a
// *types.RemoteAPIError carrying the gallery's message.
func ParseListing(folder string, data []byte, variants VariantFunc) (*Listing, error) {
	var raw rawListing
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse listing for %s: %w", folder, err)
	}
	if raw.Status == nil {
		return nil, fmt.Errorf("parse listing for %s: missing status", folder)
	}

	msg := bytes.TrimSpace(raw.Message)
	if *raw.Status == 0 {
		var text string
		if err := json.Unmarshal(msg, &text); err != nil {
			text = string(msg)
		}
		return nil, &types.RemoteAPIError{Folder: folder, Message: text}
	}

	listing := &Listing{}
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return listing, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(msg, &entries); err != nil {
		return nil, fmt.Errorf("parse listing for %s: message is not a file list: %w", folder, err)
	}

	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		var rf rawFile
		if err := json.Unmarshal(entry, &rf); err != nil {
			listing.Skipped = append(listing.Skipped, fmt.Sprintf("entry %d: %v", i, err))
			listing.retain(entry)
			continue
		}
		if !validFilePath(rf.FilePath) {
			listing.Skipped = append(listing.Skipped, fmt.Sprintf("entry %d: bad filepath %q", i, rf.FilePath))
			continue
		}
		if rf.Hash == "" {
			listing.Skipped = append(listing.Skipped, fmt.Sprintf("entry %d: missing hash for %q", i, rf.FilePath))
			listing.Retained = append(listing.Retained, rf.FilePath)
			continue
		}
		if seen[rf.FilePath] {
			listing.Skipped = append(listing.Skipped, fmt.Sprintf("entry %d: duplicate %q", i, rf.FilePath))
			continue
		}
		seen[rf.FilePath] = true

		urls := rf.URLs
		if len(urls) == 0 && variants != nil {
			urls = variants(rf.FilePath)
		}

		listing.Files = append(listing.Files, File{
			Path:        rf.FilePath,
			Fingerprint: rf.Hash,
			Variants:    urls,
			Raw:         append(json.RawMessage(nil), entry...),
		})
	}
	return listing, nil
}

// retain records the file path of an entry that could not be decoded as a
// whole, if the path itself is readable.
func (l *Listing) retain(entry json.RawMessage) {
	var named struct {
		FilePath string `json:"filepath"`
	}
	if json.Unmarshal(entry, &named) == nil && validFilePath(named.FilePath) {
		l.Retained = append(l.Retained, named.FilePath)
	}
}

func validFilePath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasSuffix(p, "/")
}
