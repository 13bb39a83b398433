package mirror

import (
	"context"
	"errors"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/sidecar"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// FolderResult summarizes one folder synchronization.
type FolderResult struct {
	Path      string
	Fetched   int
	Unchanged int
	Failed    int
	Removed   int
	Preserved int
	Bytes     int64
	Warnings  []types.ConsistencyWarning

	// Skipped is set when the folder was not synchronized on purpose.
	Skipped string

	// Err is set when the folder was aborted. No local file was deleted.
	Err error
}

// Report converts r for the run summary.
func (r FolderResult) Report() types.FolderReport {
	rep := types.FolderReport{
		Path:      r.Path,
		Fetched:   r.Fetched,
		Unchanged: r.Unchanged,
		Failed:    r.Failed,
		Removed:   r.Removed,
		Preserved: r.Preserved,
		Bytes:     r.Bytes,
		Skipped:   r.Skipped,
	}
	for _, w := range r.Warnings {
		rep.Warnings = append(rep.Warnings, w.String())
	}
	if r.Err != nil {
		rep.Error = r.Err.Error()
	}
	return rep
}

// reserved lists root-level names that folder cleanup never touches.
var reserved = []string{TreeFile, TreeFile + ".tmp"}

// SyncFolder synchronizes every picture in folder and deletes local files
// the listing no longer mentions.
//
// A listing that fails, remotely or in transport, aborts the folder before
// anything is deleted.
func (e *Engine) SyncFolder(ctx context.Context, folder gallery.Folder) FolderResult {
	res := FolderResult{Path: folder.Path}
	log := e.log.With("folder", folder.Path)

	var listing *gallery.Listing
	err := throttled(ctx, e.throttles.Listing, func(ctx context.Context) error {
		var lerr error
		listing, lerr = e.gallery.FetchListing(ctx, folder.Path)
		return lerr
	})
	if err != nil {
		var apiErr *types.RemoteAPIError
		if errors.As(err, &apiErr) {
			log.Warn("remote api error", "message", apiErr.Message)
		} else {
			log.Warn("listing failed", "error", err)
		}
		res.Err = err
		e.rec.FolderFailed(folder.Path, err)
		return res
	}

	for _, reason := range listing.Skipped {
		log.Warn("skipped malformed descriptor", "reason", reason)
		e.rec.Warning(folder.Path, "skipped descriptor: "+reason)
	}

	variant := Full
	if !folder.AllowOriginal {
		variant = SmallestAllowed
	}

	dir := folder.Dir()
	var kept []string
	for _, f := range listing.Files {
		if path.Dir(f.Path) != dir {
			log.Warn("descriptor outside folder", "path", f.Path)
			e.rec.Warning(folder.Path, "descriptor outside folder: "+f.Path)
			continue
		}

		status, n, err := e.syncFile(ctx, f, variant)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.Err = ctxErr
				return res
			}
			log.Error("picture sync failed", "path", f.Path, "error", err)
			e.rec.FileFailed(f.Path, err)
			status = FetchFailed
		}
		switch status {
		case Changed:
			res.Fetched++
			res.Bytes += n
		case Unchanged:
			res.Unchanged++
		case FetchFailed:
			res.Failed++
		}
		kept = append(kept, f.Name())
	}

	names, err := e.localFiles(dir)
	if err != nil {
		log.Warn("cannot list local folder", "error", err)
		res.Err = err
		e.rec.FolderFailed(folder.Path, err)
		return res
	}
	local := newLocalSet(names)
	if dir == "/" {
		for _, name := range reserved {
			local.drop(name)
		}
	}

	for _, name := range kept {
		for _, want := range []string{name, name + sidecar.Suffix} {
			if local.claim(want) {
				continue
			}
			w := types.ConsistencyWarning{Folder: folder.Path, Name: name, Missing: want}
			log.Warn("consistency warning", "name", name, "missing", want)
			e.rec.Warning(folder.Path, w.String())
			res.Warnings = append(res.Warnings, w)
		}
		local.claim(name + sidecar.PartSuffix)
	}

	// Descriptors rejected as malformed still name their file. Whatever is
	// on disk for them stays until the gallery lists them properly.
	for _, p := range listing.Retained {
		if path.Dir(p) != dir {
			continue
		}
		name := path.Base(p)
		for _, held := range []string{name, name + sidecar.Suffix, name + sidecar.PartSuffix} {
			if local.claim(held) {
				log.Debug("keeping file of malformed descriptor", "path", path.Join(dir, held))
			}
		}
	}

	for _, name := range local.remaining() {
		p := path.Join(dir, name)
		if e.preserve {
			log.Info("preserving stale file", "path", p)
			res.Preserved++
			continue
		}
		if err := e.fs.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn("cannot remove stale file", "path", p, "error", err)
			e.rec.Warning(folder.Path, "cannot remove "+p+": "+err.Error())
			continue
		}
		log.Info("removed", "path", p)
		e.rec.FileRemoved(p)
		res.Removed++
	}

	log.Debug("folder synced",
		"fetched", res.Fetched, "unchanged", res.Unchanged,
		"failed", res.Failed, "removed", res.Removed)
	return res
}

// localFiles lists the regular files directly inside dir. A missing
// directory has no files.
func (e *Engine) localFiles(dir string) ([]string, error) {
	infos, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if info.Mode().IsRegular() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}
