// Package mirror reconciles a local directory tree with a remote gallery.
//
// One Run fetches the remote folder tree, renames local folders that were
// renamed remotely, synchronizes every folder's pictures by fingerprint and
// finally prunes local folders that no longer exist remotely. All mutation
// goes through an afero.Fs rooted at the mirror directory, so remote paths
// such as "/2019/summer/IMG_1.jpg" address local files directly.
package mirror

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gobwas/glob"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/logging"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/sidecar"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/throttle"
)

// TreeFile is the name of the persisted tree snapshot in the mirror root.
const TreeFile = "FolderTree.json"

// Gallery is the remote side of a mirror.
type Gallery interface {
	// FetchTree returns the raw folder tree document.
	FetchTree(ctx context.Context) ([]byte, error)

	// FetchListing returns the parsed listing of one folder.
	FetchListing(ctx context.Context, folderPath string) (*gallery.Listing, error)

	// AuthenticateFolder unlocks a protected folder for this session.
	AuthenticateFolder(ctx context.Context, folder gallery.Folder, password string) error

	// Download streams the content at url into w.
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// PasswordSource supplies passwords for protected folders.
type PasswordSource interface {
	Password(folder gallery.Folder) (string, bool)
}

// Throttles holds one throttle per call site. Nil entries do not wait.
type Throttles struct {
	Listing *throttle.Throttle
	Picture *throttle.Throttle
	Auth    *throttle.Throttle
}

// NewThrottles returns independent throttles for each call site, all using
// interval.
func NewThrottles(interval time.Duration, opts ...throttle.Option) Throttles {
	return Throttles{
		Listing: throttle.New(interval, opts...),
		Picture: throttle.New(interval, opts...),
		Auth:    throttle.New(interval, opts...),
	}
}

// SharedThrottles returns throttles that share one clock across all call
// sites.
func SharedThrottles(interval time.Duration, opts ...throttle.Option) Throttles {
	t := throttle.New(interval, opts...)
	return Throttles{Listing: t, Picture: t, Auth: t}
}

// Options configures an Engine. Every optional field has a usable zero
// value.
type Options struct {
	// Fs is the mirror filesystem, rooted at the mirror directory.
	Fs afero.Fs

	Gallery Gallery

	Passwords PasswordSource
	Throttles Throttles

	// Preserve logs would-be deletions instead of performing them.
	Preserve bool

	// Concurrency bounds the number of folders synchronized in parallel.
	// Values below 1 mean 1.
	Concurrency int

	// Exclude holds glob patterns matched against folder paths such as
	// "/private/". Excluded folders and everything below them are neither
	// synchronized nor pruned.
	Exclude []string

	Recorder Recorder
	Logger   *logging.Logger
	Clock    clockwork.Clock

	// Root and Site label the run summary.
	Root string
	Site string
}

// Engine runs reconciliation passes.
type Engine struct {
	fs        afero.Fs
	gallery   Gallery
	sidecars  *sidecar.Store
	passwords PasswordSource
	throttles Throttles
	preserve  bool
	workers   int
	exclude   []glob.Glob
	rec       Recorder
	log       *logging.Logger
	clock     clockwork.Clock
	root      string
	site      string
}

// New validates opts and returns an engine.
func New(opts Options) (*Engine, error) {
	if opts.Fs == nil {
		return nil, fmt.Errorf("mirror: filesystem is required")
	}
	if opts.Gallery == nil {
		return nil, fmt.Errorf("mirror: gallery is required")
	}

	e := &Engine{
		fs:        opts.Fs,
		gallery:   opts.Gallery,
		sidecars:  sidecar.New(opts.Fs),
		passwords: opts.Passwords,
		throttles: opts.Throttles,
		preserve:  opts.Preserve,
		workers:   opts.Concurrency,
		rec:       opts.Recorder,
		log:       opts.Logger,
		clock:     opts.Clock,
		root:      opts.Root,
		site:      opts.Site,
	}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.rec == nil {
		e.rec = NopRecorder{}
	}
	if e.log == nil {
		e.log = logging.Get("mirror")
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}

	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("mirror: invalid exclude pattern %q: %w", pattern, err)
		}
		e.exclude = append(e.exclude, g)
	}
	return e, nil
}

// throttled runs fn through t, or directly when t is nil.
func throttled(ctx context.Context, t *throttle.Throttle, fn func(context.Context) error) error {
	if t == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx)
	}
	return t.Do(ctx, fn)
}
