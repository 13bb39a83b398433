package mirror

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/spf13/afero"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/sidecar"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// Variant selects which resolution of a picture to download.
type Variant int

const (
	// Full is the largest variant offered.
	Full Variant = iota
	// SmallestAllowed is the smallest variant offered. It is used for
	// folders that disallow original downloads.
	SmallestAllowed
)

func (v Variant) String() string {
	if v == SmallestAllowed {
		return "smallest"
	}
	return "full"
}

// Status is the outcome of synchronizing one picture.
type Status int

const (
	Unchanged Status = iota
	Changed
	FetchFailed
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case FetchFailed:
		return "fetch failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// SyncFile brings one picture up to date.
//
// A picture whose content and sidecar both exist with a matching
// fingerprint, and which has no unfinished download, is left alone without
// any network call. Otherwise a ".part" file is opened next to the content,
// the new sidecar is written and the content is downloaded into the part
// file, which replaces the content only once complete. A failed download
// keeps the previous content and leaves the part file behind, which the
// sidecar store reports as pending so the next run retries.
//
// Download failures are reported as FetchFailed. The returned error is
// reserved for local I/O failures and cancellation.
func (e *Engine) SyncFile(ctx context.Context, f gallery.File, v Variant) (Status, error) {
	status, _, err := e.syncFile(ctx, f, v)
	return status, err
}

// syncFile is SyncFile that also reports the number of bytes downloaded.
func (e *Engine) syncFile(ctx context.Context, f gallery.File, v Variant) (Status, int64, error) {
	p := f.Path
	if e.sidecars.Check(p, f.Fingerprint) == sidecar.Fresh {
		e.rec.FileUnchanged(p)
		return Unchanged, 0, nil
	}

	rec, err := sidecar.NewRecord(f.Descriptor())
	if err != nil {
		return FetchFailed, 0, fmt.Errorf("build sidecar for %s: %w", p, err)
	}

	part := sidecar.PartPath(p)
	if err := e.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return FetchFailed, 0, fmt.Errorf("create dir for %s: %w", p, err)
	}
	out, err := e.fs.Create(part)
	if err != nil {
		return FetchFailed, 0, fmt.Errorf("create %s: %w", part, err)
	}
	if err := e.sidecars.Write(p, rec); err != nil {
		_ = out.Close()
		return FetchFailed, 0, err
	}

	url := f.Largest()
	if v == SmallestAllowed {
		url = f.Smallest()
	}
	if url == "" {
		_ = out.Close()
		e.log.Warn("no download url", "path", p)
		e.rec.FileFailed(p, errors.New("no download url"))
		return FetchFailed, 0, nil
	}

	e.log.Info("fetching picture", "path", p, "variant", v)
	n, err := e.download(ctx, out, p, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return FetchFailed, 0, ctxErr
		}
		var local *localError
		if errors.As(err, &local) {
			return FetchFailed, 0, local.err
		}
		var fetchErr *types.FetchError
		if errors.As(err, &fetchErr) {
			e.log.Warn("picture fetch failed",
				"path", p, "status", fetchErr.StatusCode, "body", fetchErr.Body)
		} else {
			e.log.Warn("picture fetch failed", "path", p, "error", err)
		}
		e.rec.FileFailed(p, err)
		return FetchFailed, 0, nil
	}

	e.rec.FileFetched(p, f.Fingerprint, n)
	return Changed, n, nil
}

// localError marks a failure of the local filesystem during a download, as
// opposed to a failure of the remote side.
type localError struct{ err error }

func (e *localError) Error() string { return e.err.Error() }
func (e *localError) Unwrap() error { return e.err }

// download streams url into the open part file out and renames it over p
// on success. out is always closed. On failure the part file stays behind
// as the pending marker.
func (e *Engine) download(ctx context.Context, out afero.File, p, url string) (int64, error) {
	part := sidecar.PartPath(p)

	var n int64
	err := throttled(ctx, e.throttles.Picture, func(ctx context.Context) error {
		var derr error
		n, derr = e.gallery.Download(ctx, url, out)
		return derr
	})
	if cerr := out.Close(); err == nil && cerr != nil {
		err = &localError{fmt.Errorf("close %s: %w", part, cerr)}
	}
	if err != nil {
		return n, err
	}

	if err := e.fs.Rename(part, p); err != nil {
		return n, &localError{fmt.Errorf("rename %s: %w", part, err)}
	}
	return n, nil
}
