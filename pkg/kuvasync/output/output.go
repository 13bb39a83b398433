// Package output renders run summaries, index status and audit reports in
// several formats (pretty, plain, json, yaml).
//
// Formatters are looked up by name in a registry:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, &output.Result{Summary: summary}); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/audit"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/index"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// Status is the indexed state of one mirror root.
type Status struct {
	Root    string              `json:"root" yaml:"root"`
	Folders []index.FolderStats `json:"folders" yaml:"folders"`
}

// Totals returns the number of pictures and bytes across all folders.
func (s *Status) Totals() (files int, bytes int64) {
	for _, f := range s.Folders {
		files += f.Files
		bytes += f.Bytes
	}
	return files, bytes
}

// Result holds what to render. Formatters render every non-nil part in
// the order Summary, Status, Audit.
type Result struct {
	Summary *types.RunSummary
	Status  *Status
	Audit   *audit.Report
}

// Formatter is the interface that all output formatters implement.
type Formatter interface {
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// sortedFolders returns the folder reports ordered by path. Folders finish
// in any order when the engine runs them concurrently.
func sortedFolders(s *types.RunSummary) []types.FolderReport {
	folders := append([]types.FolderReport(nil), s.Folders...)
	sort.Slice(folders, func(i, j int) bool { return folders[i].Path < folders[j].Path })
	return folders
}
