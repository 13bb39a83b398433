package mirror

import (
	"context"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// Run performs one reconciliation pass.
//
// Failing to fetch, parse or persist the folder tree is fatal and returns a
// *types.FatalSetupError before anything local changes. Every other
// failure is scoped to a folder or a file and reported in the summary.
func (e *Engine) Run(ctx context.Context) (*types.RunSummary, error) {
	summary := &types.RunSummary{
		Root:     e.root,
		Site:     e.site,
		Started:  e.clock.Now(),
		Preserve: e.preserve,
	}
	defer func() { summary.Finished = e.clock.Now() }()

	first, _, err := e.fetchTree(ctx)
	if err != nil {
		return summary, err
	}
	authed := e.authenticate(ctx, first)

	prev := e.loadPrevious()
	next, raw, err := e.fetchTree(ctx)
	if err != nil {
		return summary, err
	}
	if err := e.persistTree(raw); err != nil {
		return summary, &types.FatalSetupError{Op: "persist folder tree", Err: err}
	}

	renamed := e.applyRenames(planRenames(prev, next))
	summary.Renamed = len(renamed)

	local, err := e.localDirs()
	if err != nil {
		e.log.Warn("cannot snapshot local folders, pruning disabled", "error", err)
		local = nil
	}

	var (
		mu   sync.Mutex
		keep []string
		todo []gallery.Folder
	)
	for _, p := range next.Paths() {
		folder := next[p]
		if reason := e.skipReason(folder, authed); reason != "" {
			e.log.Warn("skipping folder", "path", p, "reason", reason)
			summary.Add(types.FolderReport{Path: p, Skipped: reason})
			keep = append(keep, folder.Dir())
			continue
		}
		todo = append(todo, folder)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, folder := range todo {
		if gctx.Err() != nil {
			break
		}
		folder := folder
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := e.syncFolderDir(gctx, folder)
			mu.Lock()
			summary.Add(res.Report())
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		summary.Interrupted = true
		e.log.Warn("run interrupted, skipping prune", "error", err)
		return summary, nil
	}

	if local != nil {
		summary.Pruned = e.prune(local, next, keep)
	}

	e.log.Info("run complete",
		"fetched", summary.Fetched, "unchanged", summary.Unchanged,
		"failed", summary.Failed, "removed", summary.Removed,
		"renamed", summary.Renamed, "pruned", summary.Pruned)
	return summary, nil
}

// fetchTree downloads and parses the folder tree.
func (e *Engine) fetchTree(ctx context.Context) (gallery.Tree, []byte, error) {
	raw, err := e.gallery.FetchTree(ctx)
	if err != nil {
		return nil, nil, &types.FatalSetupError{Op: "fetch folder tree", Err: err}
	}
	tree, err := gallery.ParseTree(raw)
	if err != nil {
		return nil, nil, &types.FatalSetupError{Op: "parse folder tree", Err: err}
	}
	return tree, raw, nil
}

// authenticate unlocks every protected folder for which a password is
// known and returns the ids that were unlocked.
func (e *Engine) authenticate(ctx context.Context, tree gallery.Tree) map[gallery.FolderID]bool {
	authed := make(map[gallery.FolderID]bool)
	for _, p := range tree.Paths() {
		folder := tree[p]
		if !folder.Protected {
			continue
		}
		var (
			password string
			ok       bool
		)
		if e.passwords != nil {
			password, ok = e.passwords.Password(folder)
		}
		if !ok {
			e.log.Warn("no password for protected folder", "path", p)
			continue
		}

		e.log.Info("authenticating folder", "path", p)
		err := throttled(ctx, e.throttles.Auth, func(ctx context.Context) error {
			return e.gallery.AuthenticateFolder(ctx, folder, password)
		})
		if err != nil {
			e.log.Warn("folder authentication failed", "path", p, "error", err)
			e.rec.Warning(p, "authentication failed: "+err.Error())
			continue
		}
		authed[folder.ID] = true
	}
	return authed
}

// skipReason explains why folder is not synchronized, or returns "".
func (e *Engine) skipReason(folder gallery.Folder, authed map[gallery.FolderID]bool) string {
	if e.excluded(folder.Path) {
		return "excluded"
	}
	if folder.Protected && !authed[folder.ID] {
		return "protected"
	}
	return ""
}

// excluded reports whether the folder or one of its ancestors matches an
// exclude pattern.
func (e *Engine) excluded(folderPath string) bool {
	if len(e.exclude) == 0 {
		return false
	}
	candidates := []string{"/"}
	for _, d := range ancestors(gallery.DirOf(folderPath)) {
		candidates = append(candidates, d+"/")
	}
	return lo.SomeBy(candidates, func(c string) bool {
		return lo.SomeBy(e.exclude, func(g glob.Glob) bool { return g.Match(c) })
	})
}

// syncFolderDir makes sure the folder's directory exists and synchronizes
// it.
func (e *Engine) syncFolderDir(ctx context.Context, folder gallery.Folder) FolderResult {
	if err := e.fs.MkdirAll(folder.Dir(), 0o755); err != nil {
		e.log.Error("cannot create folder", "path", folder.Path, "error", err)
		e.rec.FolderFailed(folder.Path, err)
		return FolderResult{Path: folder.Path, Err: err}
	}
	return e.SyncFolder(ctx, folder)
}

// prune removes local directories that correspond to no remote folder.
// Directories of remote folders and their ancestors are wanted. Directories
// at or below kept folders are left alone.
func (e *Engine) prune(local map[string]struct{}, next gallery.Tree, keep []string) int {
	wanted := make(map[string]struct{}, len(next))
	for _, folder := range next {
		for _, d := range ancestors(folder.Dir()) {
			wanted[d] = struct{}{}
		}
	}

	stale := lo.Filter(lo.Keys(local), func(d string, _ int) bool {
		_, ok := wanted[d]
		return !ok && !underAny(d, keep)
	})
	sortShallowFirst(stale)

	var removed []string
	for _, d := range stale {
		if underAny(d, removed) {
			continue
		}
		if e.preserve {
			e.log.Info("preserving stale folder", "path", d)
			removed = append(removed, d)
			continue
		}
		if err := e.fs.RemoveAll(d); err != nil {
			e.log.Warn("cannot remove stale folder", "path", d, "error", err)
			e.rec.Warning(d+"/", "cannot remove folder: "+err.Error())
			continue
		}
		e.log.Info("removed folder", "path", d)
		e.rec.FolderPruned(d)
		removed = append(removed, d)
	}

	if e.preserve {
		return 0
	}
	return len(removed)
}
