package mirror

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
)

// loadPrevious reads the tree persisted by the last run. A missing or
// unreadable snapshot yields an empty tree.
func (e *Engine) loadPrevious() gallery.Tree {
	data, err := afero.ReadFile(e.fs, "/"+TreeFile)
	if err != nil {
		if !os.IsNotExist(err) {
			e.log.Warn("cannot read previous tree", "error", err)
		}
		return gallery.Tree{}
	}
	tree, err := gallery.ParseTree(data)
	if err != nil {
		e.log.Warn("ignoring corrupt previous tree", "error", err)
		return gallery.Tree{}
	}
	return tree
}

// persistTree stores the raw tree document in the mirror root.
func (e *Engine) persistTree(data []byte) error {
	target := "/" + TreeFile
	tmp := target + ".tmp"
	if err := afero.WriteFile(e.fs, tmp, data, 0o644); err != nil {
		return err
	}
	if err := e.fs.Rename(tmp, target); err != nil {
		_ = e.fs.Remove(tmp)
		return err
	}
	return nil
}

// localDirs returns every directory below the mirror root, excluding the
// root itself.
func (e *Engine) localDirs() (map[string]struct{}, error) {
	dirs := make(map[string]struct{})
	err := afero.Walk(e.fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && p != "/" {
			dirs[path.Clean(p)] = struct{}{}
		}
		return nil
	})
	return dirs, err
}

// ancestors returns dir and every parent of it up to, but not including,
// the root.
func ancestors(dir string) []string {
	var out []string
	for d := path.Clean(dir); d != "/" && d != "."; d = path.Dir(d) {
		out = append(out, d)
	}
	return out
}

// underAny reports whether dir equals or lies below any of prefixes.
func underAny(dir string, prefixes []string) bool {
	for _, p := range prefixes {
		if dir == p || strings.HasPrefix(dir, p+"/") {
			return true
		}
	}
	return false
}

// depth counts path segments.
func depth(p string) int {
	return strings.Count(strings.Trim(p, "/"), "/")
}

// sortShallowFirst orders dirs by depth, then lexically.
func sortShallowFirst(dirs []string) {
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := depth(dirs[i]), depth(dirs[j])
		if di != dj {
			return di < dj
		}
		return dirs[i] < dirs[j]
	})
}
