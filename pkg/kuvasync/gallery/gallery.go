// Package gallery defines the remote gallery data model and parses the
// gallery's loosely typed JSON responses into validated structures.
//
// Folder paths are remote paths with a leading and a trailing slash
// ("/2019/summer/"). File paths are remote paths without a trailing slash
// ("/2019/summer/IMG_0001.jpg"). The same strings address the local mirror.
package gallery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

// FolderID is the remote-assigned identifier of a folder. It survives
// renames and is the join key for rename detection.
type FolderID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *FolderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FolderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("folder id: %w", err)
	}
	*id = FolderID(n.String())
	return nil
}

// flag decodes booleans that the gallery sometimes sends as 0/1.
type flag struct {
	set   bool
	value bool
}

func (f *flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null":
		return nil
	case "true", "1", `"1"`, `"true"`:
		*f = flag{set: true, value: true}
		return nil
	case "false", "0", `"0"`, `"false"`, `""`:
		*f = flag{set: true, value: false}
		return nil
	}
	if n, err := strconv.ParseFloat(string(data), 64); err == nil {
		*f = flag{set: true, value: n != 0}
		return nil
	}
	return fmt.Errorf("invalid boolean %s", data)
}

// Folder describes one remote folder.
type Folder struct {
	ID   FolderID
	Path string

	// Protected folders ("pro" folders) need a password before their
	// listing returns anything useful.
	Protected bool

	// AllowOriginal is false when the owner disallows downloading
	// full-resolution originals.
	AllowOriginal bool
}

// Dir returns the folder path without its trailing slash, which is the
// local directory of the folder. The gallery root maps to "/".
func (f Folder) Dir() string {
	return DirOf(f.Path)
}

// DirOf converts a folder path ("/a/b/") to its directory form ("/a/b").
func DirOf(folderPath string) string {
	d := strings.TrimSuffix(folderPath, "/")
	if d == "" {
		return "/"
	}
	return d
}

// Split returns the parent directory and leaf name of a folder path.
func Split(folderPath string) (parent, leaf string) {
	dir := DirOf(folderPath)
	if dir == "/" {
		return "/", ""
	}
	return path.Split(dir)
}

// Tree maps folder paths to folders. It is the snapshot compared between
// runs.
type Tree map[string]Folder

// ErrInvalidTree is returned when a folder tree fails validation.
var ErrInvalidTree = errors.New("invalid folder tree")

type rawFolder struct {
	ID       *FolderID `json:"id"`
	Pro      flag      `json:"pro"`
	Original flag      `json:"original"`
}

// ParseTree parses and validates a folder tree response. Every folder must
// have an id, ids and paths must be unique, and paths must be absolute
// folder paths.
func ParseTree(data []byte) (Tree, error) {
	var raw map[string]rawFolder
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}

	tree := make(Tree, len(raw))
	seen := make(map[FolderID]string, len(raw))
	for p, rf := range raw {
		if !strings.HasPrefix(p, "/") || !strings.HasSuffix(p, "/") {
			return nil, fmt.Errorf("%w: folder path %q must start and end with /", ErrInvalidTree, p)
		}
		if strings.Contains(p, "/../") || strings.Contains(p, "/./") {
			return nil, fmt.Errorf("%w: folder path %q is not clean", ErrInvalidTree, p)
		}
		if rf.ID == nil || *rf.ID == "" {
			return nil, fmt.Errorf("%w: folder %q has no id", ErrInvalidTree, p)
		}
		if other, dup := seen[*rf.ID]; dup {
			return nil, fmt.Errorf("%w: id %s used by both %q and %q", ErrInvalidTree, *rf.ID, other, p)
		}
		seen[*rf.ID] = p

		allow := true
		if rf.Original.set {
			allow = rf.Original.value
		}
		tree[p] = Folder{
			ID:            *rf.ID,
			Path:          p,
			Protected:     rf.Pro.value,
			AllowOriginal: allow,
		}
	}
	return tree, nil
}

// Paths returns the folder paths sorted so that parents precede children.
func (t Tree) Paths() []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ByID indexes the tree by folder id.
func (t Tree) ByID() map[FolderID]Folder {
	byID := make(map[FolderID]Folder, len(t))
	for _, f := range t {
		byID[f.ID] = f
	}
	return byID
}
