// Package metrics exposes run statistics as Prometheus metrics, written to
// a node_exporter textfile at the end of each run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

const namespace = "kuvasync"

// Metrics holds the counters of one process. It satisfies mirror.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	bytesFetched prometheus.Counter
	removed      prometheus.Counter
	renamed      prometheus.Counter
	pruned       prometheus.Counter
	folderErrors prometheus.Counter
	warnings     prometheus.Counter
	runDuration  prometheus.Gauge
	lastRun      prometheus.Gauge
	lastSuccess  prometheus.Gauge
	interrupted  prometheus.Gauge
}

// New returns metrics registered on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		files: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Pictures processed, by result",
			},
			[]string{"result"},
		),
		bytesFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_fetched_total",
			Help:      "Bytes of picture content downloaded",
		}),
		removed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_removed_total",
			Help:      "Local files removed because the gallery no longer lists them",
		}),
		renamed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "folders_renamed_total",
			Help:      "Local folders renamed to follow the gallery",
		}),
		pruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "folders_pruned_total",
			Help:      "Local folders removed because the gallery no longer has them",
		}),
		folderErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "folder_errors_total",
			Help:      "Folders whose listing could not be synchronized",
		}),
		warnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Warnings raised during runs",
		}),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last run",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last run without folder errors finished",
		}),
		interrupted: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_interrupted",
			Help:      "1 if the last run was cancelled before completing",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) FileFetched(_, _ string, size int64) {
	m.files.WithLabelValues("fetched").Inc()
	m.bytesFetched.Add(float64(size))
}

func (m *Metrics) FileUnchanged(string) {
	m.files.WithLabelValues("unchanged").Inc()
}

func (m *Metrics) FileFailed(string, error) {
	m.files.WithLabelValues("failed").Inc()
}

func (m *Metrics) FileRemoved(string) { m.removed.Inc() }

func (m *Metrics) FolderRenamed(string, string) { m.renamed.Inc() }

func (m *Metrics) FolderPruned(string) { m.pruned.Inc() }

func (m *Metrics) FolderFailed(string, error) { m.folderErrors.Inc() }

func (m *Metrics) Warning(string, string) { m.warnings.Inc() }

// Finish records the run-level gauges from a summary.
func (m *Metrics) Finish(s *types.RunSummary) {
	m.runDuration.Set(s.Elapsed().Seconds())
	m.lastRun.Set(float64(s.Finished.Unix()))
	if s.Interrupted {
		m.interrupted.Set(1)
	} else {
		m.interrupted.Set(0)
	}
	if !s.Interrupted && s.FolderErrors() == 0 {
		m.lastSuccess.Set(float64(s.Finished.Unix()))
	}
}

// WriteTextfile writes the metrics in text exposition format to filename.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(filename, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
