package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/config"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/credentials"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/index"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/journal"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/logging"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/metrics"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/mirror"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/output"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/preflight"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/remote"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/throttle"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Run one reconciliation pass",
	Long: `Bring the local mirror in step with the gallery.

The mirror root must already exist. Folders renamed in the gallery are
renamed locally, new and changed pictures are downloaded, and files and
folders the gallery no longer has are removed unless --preserve is set.
A folder whose listing fails is left untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

// errInterrupted is returned when a run was cancelled by a signal.
var errInterrupted = errors.New("run interrupted")

func init() {
	addSyncFlags(syncCmd)
	rootCmd.AddCommand(syncCmd)
}

// syncFlagKeys maps sync flag names to configuration keys.
var syncFlagKeys = map[string]string{
	"site":         "site",
	"rate":         "rate",
	"preserve":     "preserve",
	"concurrency":  "concurrency",
	"exclude":      "exclude",
	"metrics-file": "metrics_file",
	"min-free":     "min_free",
}

func addSyncFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("site", "", "gallery base URL")
	f.Float64("rate", 0, "requests per second for each endpoint")
	f.BoolP("preserve", "p", false, "log deletions instead of performing them")
	f.IntP("concurrency", "c", 0, "folders synchronized in parallel")
	f.StringSliceP("exclude", "e", nil, "folder glob patterns to skip (can be specified multiple times)")
	f.String("metrics-file", "", "write Prometheus metrics to this file")
	f.String("min-free", "", "warn when free space drops below this size (e.g. 1G)")
	f.StringP("output", "o", "", "output format: pretty, plain, json, yaml")
	f.Bool("no-journal", false, "do not record this run in the journal")
	f.Bool("no-index", false, "do not update the mirror index")
}

// bindSyncFlags binds the sync flags of cmd to the configuration. Only
// flags set on the command line override file and environment values.
func bindSyncFlags(cmd *cobra.Command) {
	for name, key := range syncFlagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
			_ = v.BindPFlag(key, flag)
		}
	}
	if noJournal, _ := cmd.Flags().GetBool("no-journal"); noJournal {
		v.Set("journal.enabled", false)
	}
	if noIndex, _ := cmd.Flags().GetBool("no-index"); noIndex {
		v.Set("index.enabled", false)
	}
}

// outputFormat returns the requested output format, defaulting to pretty
// on a terminal and plain otherwise.
func outputFormat(cmd *cobra.Command) string {
	if format, _ := cmd.Flags().GetString("output"); format != "" {
		return format
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "pretty"
	}
	return "plain"
}

// buildThrottles creates the per-endpoint throttles from the configured
// rates.
func buildThrottles(cfg *config.Config) mirror.Throttles {
	if cfg.RateShared {
		return mirror.SharedThrottles(throttle.FromRate(cfg.Rate))
	}
	return mirror.Throttles{
		Listing: throttle.New(throttle.FromRate(cfg.RateFor(cfg.Rates.Listing))),
		Picture: throttle.New(throttle.FromRate(cfg.RateFor(cfg.Rates.Picture))),
		Auth:    throttle.New(throttle.FromRate(cfg.RateFor(cfg.Rates.Auth))),
	}
}

// passwordSource returns the folder password resolver. A keyring that
// cannot be opened is logged and skipped.
func passwordSource(cfg *config.Config, log *logging.Logger) *credentials.Resolver {
	resolver := &credentials.Resolver{Env: cfg.PasswordEnv}
	if !cfg.Keyring.Enabled {
		return resolver
	}
	store, err := credentials.Open(cfg.Keyring.Service)
	if err != nil {
		log.Warn("keyring unavailable", "error", err)
		return resolver
	}
	resolver.Store = store
	return resolver
}

func runSync(cmd *cobra.Command, args []string) error {
	bindSyncFlags(cmd)

	formatter, err := output.Get(outputFormat(cmd))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logging.Close() }()
	log := logging.Get("cli")

	root, err := mirrorRoot(cfg, args)
	if err != nil {
		return err
	}

	var minFree int64
	if cfg.MinFree != "" {
		minFree, _ = types.ParseSize(cfg.MinFree)
	}
	check, err := preflight.Check(root, minFree)
	if err != nil {
		return err
	}
	if check.LowSpace {
		log.Warn("low free space in mirror",
			"free", types.FormatSize(check.FreeBytes), "min_free", cfg.MinFree)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := &syncRun{cfg: cfg, root: root, log: log}
	defer run.close()

	summary, runErr := run.execute(ctx)
	run.finish(summary, runErr)

	if runErr != nil {
		return runErr
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, &output.Result{Summary: summary}); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())

	if summary.Interrupted {
		return errInterrupted
	}
	return nil
}

// syncRun holds the collaborators of one sync invocation.
type syncRun struct {
	cfg  *config.Config
	root string
	log  *logging.Logger

	journal  *journal.Recorder
	index    *index.Store
	indexRec *index.Recorder
	metrics  *metrics.Metrics
}

func (r *syncRun) recorders() mirror.Recorders {
	var recs mirror.Recorders

	if r.cfg.Journal.Enabled {
		r.journal = journal.NewRecorder()
		recs = append(recs, r.journal)
	}

	if r.cfg.Index.Enabled {
		store, err := index.Open(r.cfg.Index.Path)
		if err != nil {
			r.log.Warn("index unavailable, continuing without it", "path", r.cfg.Index.Path, "error", err)
		} else {
			r.index = store
			r.indexRec = index.NewRecorder(store, r.root, nil)
			recs = append(recs, r.indexRec)
		}
	}

	if r.cfg.MetricsFile != "" {
		r.metrics = metrics.New()
		recs = append(recs, r.metrics)
	}
	return recs
}

func (r *syncRun) execute(ctx context.Context) (*types.RunSummary, error) {
	started := time.Now()
	summary := &types.RunSummary{Root: r.root, Site: r.cfg.Site, Started: started, Preserve: r.cfg.Preserve}

	client, err := remote.New(remote.Config{
		Site:      r.cfg.Site,
		Variants:  r.cfg.Remote.Variants,
		Timeout:   r.cfg.HTTP.Timeout,
		UserAgent: r.cfg.HTTP.UserAgent,
	})
	if err != nil {
		summary.Finished = time.Now()
		return summary, &types.FatalSetupError{Op: "create client", Err: err}
	}

	r.log.Info("starting sync", "root", r.root, "site", client.Site(), "preserve", r.cfg.Preserve)
	if err := client.Bootstrap(ctx); err != nil {
		summary.Finished = time.Now()
		return summary, err
	}

	passwords := passwordSource(r.cfg, r.log)
	if !passwords.Available() {
		printVerbose("No folder password configured; protected folders will be skipped")
	}

	engine, err := mirror.New(mirror.Options{
		Fs:          afero.NewBasePathFs(afero.NewOsFs(), r.root),
		Gallery:     client,
		Passwords:   passwords,
		Throttles:   buildThrottles(r.cfg),
		Preserve:    r.cfg.Preserve,
		Concurrency: r.cfg.Concurrency,
		Exclude:     r.cfg.Exclude,
		Recorder:    r.recorders(),
		Logger:      logging.Get("mirror"),
		Root:        r.root,
		Site:        client.Site(),
	})
	if err != nil {
		summary.Finished = time.Now()
		return summary, &types.FatalSetupError{Op: "configure engine", Err: err}
	}

	return engine.Run(ctx)
}

// finish writes the journal entry and metrics for a run, successful or
// not. Failures here are logged and do not change the exit status.
func (r *syncRun) finish(summary *types.RunSummary, runErr error) {
	if runErr != nil {
		r.log.Error("sync failed", "error", runErr)
	} else {
		r.log.Info("sync finished",
			"fetched", summary.Fetched, "unchanged", summary.Unchanged,
			"failed", summary.Failed, "removed", summary.Removed,
			"renamed", summary.Renamed, "pruned", summary.Pruned,
			"interrupted", summary.Interrupted)
	}

	if r.cfg.Journal.Enabled {
		j, err := journal.New(r.cfg.Journal.Path)
		if err == nil {
			var entry *journal.Entry
			entry, err = j.Write(summary, r.journal, runErr)
			if err == nil {
				printVerbose("Recorded run %s", entry.ID)
				if n, cerr := j.Cleanup(r.cfg.Journal.RetentionDays, time.Now()); cerr == nil && n > 0 {
					r.log.Debug("removed old journal entries", "count", n)
				}
			}
		}
		if err != nil {
			r.log.Warn("failed to write journal", "error", err)
		}
	}

	if r.indexRec != nil {
		if n := r.indexRec.Errors(); n > 0 {
			printWarning("%d index updates failed; 'kuvasync status' may be out of date", n)
		}
	}

	if r.metrics != nil {
		r.metrics.Finish(summary)
		if err := r.metrics.WriteTextfile(r.cfg.MetricsFile); err != nil {
			r.log.Warn("failed to write metrics", "path", r.cfg.MetricsFile, "error", err)
		}
	}
}

func (r *syncRun) close() {
	if r.index != nil {
		if err := r.index.Close(); err != nil {
			r.log.Warn("failed to close index", "error", err)
		}
	}
}
