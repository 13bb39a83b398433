// Package types provides the data types shared between the kuvasync
// reconciliation engine, its reporting layers and the CLI.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FolderReport summarizes what one folder synchronization did.
type FolderReport struct {
	// Path is the remote folder path (e.g. "/2019/summer/").
	Path string `json:"path" yaml:"path"`

	Fetched   int `json:"fetched" yaml:"fetched"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	Failed    int `json:"failed" yaml:"failed"`
	Removed   int `json:"removed" yaml:"removed"`

	// Preserved counts files that would have been removed outside
	// preservation mode.
	Preserved int `json:"preserved" yaml:"preserved"`

	// Bytes is the amount of content downloaded.
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// Skipped is set when the folder was not synchronized at all
	// (excluded, or protected without a credential).
	Skipped string `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Error is the folder-scoped failure, if any. Nothing was deleted in
	// a folder that has an error.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunSummary contains the aggregated results of one reconciliation pass.
type RunSummary struct {
	Root     string    `json:"root" yaml:"root"`
	Site     string    `json:"site" yaml:"site"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished" yaml:"finished"`

	// Preserve reports whether deletions were suppressed.
	Preserve bool `json:"preserve" yaml:"preserve"`

	Fetched      int   `json:"fetched" yaml:"fetched"`
	Unchanged    int   `json:"unchanged" yaml:"unchanged"`
	Failed       int   `json:"failed" yaml:"failed"`
	Removed      int   `json:"removed" yaml:"removed"`
	Preserved    int   `json:"preserved" yaml:"preserved"`
	Renamed      int   `json:"renamed" yaml:"renamed"`
	Pruned       int   `json:"pruned" yaml:"pruned"`
	BytesFetched int64 `json:"bytes_fetched" yaml:"bytes_fetched"`

	Folders []FolderReport `json:"folders" yaml:"folders"`

	// Interrupted is set when the pass stopped early because its context
	// was cancelled.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`
}

// Elapsed returns the wall time of the run.
func (s *RunSummary) Elapsed() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// FolderErrors returns the number of folders that failed.
func (s *RunSummary) FolderErrors() int {
	n := 0
	for _, f := range s.Folders {
		if f.Error != "" {
			n++
		}
	}
	return n
}

// Warnings returns the number of consistency warnings across all folders.
func (s *RunSummary) Warnings() int {
	n := 0
	for _, f := range s.Folders {
		n += len(f.Warnings)
	}
	return n
}

// Add folds a folder report into the run totals.
func (s *RunSummary) Add(r FolderReport) {
	s.Fetched += r.Fetched
	s.Unchanged += r.Unchanged
	s.Failed += r.Failed
	s.Removed += r.Removed
	s.Preserved += r.Preserved
	s.BytesFetched += r.Bytes
	s.Folders = append(s.Folders, r)
}

// ParseSize parses a human-readable size such as "500M" or "2 GiB".
// Bare unit letters are read as binary units, matching FormatSize.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	upper := strings.ToUpper(s)
	last := upper[len(upper)-1]
	if strings.ContainsRune("KMGTP", rune(last)) {
		s += "iB"
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
