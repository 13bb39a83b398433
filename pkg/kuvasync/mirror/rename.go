package mirror

import (
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
)

// rename is a local directory move implied by a folder keeping its id but
// changing its leaf name.
type rename struct {
	ID   gallery.FolderID
	From string
	To   string
}

// planRenames compares two trees by folder id. Only ids present in both
// trees are considered, and only folders whose parent path is unchanged
// count as renamed. The result is ordered shallowest first.
func planRenames(prev, next gallery.Tree) []rename {
	prevByID := prev.ByID()
	var plan []rename
	for _, nf := range next {
		of, ok := prevByID[nf.ID]
		if !ok {
			continue
		}
		oldParent, oldLeaf := gallery.Split(of.Path)
		newParent, newLeaf := gallery.Split(nf.Path)
		if oldLeaf == "" || oldParent != newParent || oldLeaf == newLeaf {
			continue
		}
		plan = append(plan, rename{ID: nf.ID, From: of.Dir(), To: nf.Dir()})
	}

	froms := make([]string, len(plan))
	byFrom := make(map[string]rename, len(plan))
	for i, r := range plan {
		froms[i] = r.From
		byFrom[r.From] = r
	}
	sortShallowFirst(froms)
	for i, f := range froms {
		plan[i] = byFrom[f]
	}
	return plan
}

// applyRenames moves local directories according to plan and returns the
// renames that were performed.
//
// Source paths are rewritten through renames already applied, so a folder
// whose old parent moved is found at its new location. A rename whose
// target is the source of a pending rename waits for that one. A rename
// whose source is missing or whose target already exists is skipped.
func (e *Engine) applyRenames(plan []rename) []rename {
	var done []rename
	pending := plan

	for len(pending) > 0 {
		var deferred []rename
		progress := false

		for _, r := range pending {
			from := rewrite(r.From, done)

			if blockedBy(r.To, pending, r) {
				deferred = append(deferred, r)
				continue
			}
			progress = true

			if ok, _ := afero.DirExists(e.fs, from); !ok {
				e.log.Debug("rename source missing", "from", from, "to", r.To)
				continue
			}
			if exists, _ := afero.Exists(e.fs, r.To); exists {
				e.log.Warn("rename target exists, skipping", "from", from, "to", r.To)
				e.rec.Warning(r.To+"/", "rename target exists: "+from+" -> "+r.To)
				continue
			}
			if err := e.fs.MkdirAll(path.Dir(r.To), 0o755); err != nil {
				e.log.Warn("rename failed", "from", from, "to", r.To, "error", err)
				continue
			}
			if err := e.fs.Rename(from, r.To); err != nil {
				e.log.Warn("rename failed", "from", from, "to", r.To, "error", err)
				e.rec.Warning(r.To+"/", "rename failed: "+err.Error())
				continue
			}

			e.log.Info("renamed folder", "from", from, "to", r.To)
			e.rec.FolderRenamed(from, r.To)
			done = append(done, rename{ID: r.ID, From: from, To: r.To})
		}

		if !progress {
			for _, r := range deferred {
				e.log.Warn("rename cycle, skipping", "from", r.From, "to", r.To)
				e.rec.Warning(r.To+"/", "rename cycle: "+r.From+" -> "+r.To)
			}
			break
		}
		pending = deferred
	}
	return done
}

// blockedBy reports whether target is still occupied by the source of
// another pending rename.
func blockedBy(target string, pending []rename, self rename) bool {
	for _, p := range pending {
		if p.ID != self.ID && p.From == target {
			return true
		}
	}
	return false
}

// rewrite maps p through renames already performed.
func rewrite(p string, done []rename) string {
	for _, r := range done {
		switch {
		case p == r.From:
			p = r.To
		case strings.HasPrefix(p, r.From+"/"):
			p = r.To + strings.TrimPrefix(p, r.From)
		}
	}
	return p
}
