// Package audit inspects a mirror on disk and reports pictures whose
// content and sidecar are out of step.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/spf13/afero"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/mirror"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/sidecar"
)

// Kind classifies a finding.
type Kind string

const (
	// Partial is a sidecar whose content file is missing.
	Partial Kind = "partial"
	// Orphan is a content file without a sidecar.
	Orphan Kind = "orphan"
	// Corrupt is a sidecar that cannot be parsed.
	Corrupt Kind = "corrupt"
	// Leftover is an interrupted download or temporary file.
	Leftover Kind = "leftover"
	// Unreadable is an entry the walk could not read.
	Unreadable Kind = "unreadable"
)

// Finding is one problem found in the mirror.
type Finding struct {
	Kind   Kind   `json:"kind" yaml:"kind"`
	Path   string `json:"path" yaml:"path"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Report is the result of an audit.
type Report struct {
	Root     string    `json:"root" yaml:"root"`
	Folders  int64     `json:"folders" yaml:"folders"`
	Pictures int64     `json:"pictures" yaml:"pictures"`
	Bytes    int64     `json:"bytes" yaml:"bytes"`
	Findings []Finding `json:"findings,omitempty" yaml:"findings,omitempty"`
}

// Clean reports whether the audit found nothing wrong.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// Count returns the number of findings of kind k.
func (r *Report) Count(k Kind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// Auditor walks a mirror root.
type Auditor struct {
	root     string
	sidecars *sidecar.Store

	mu    sync.Mutex
	files map[string][]fileInfo
	found []Finding

	folders atomic.Int64
}

type fileInfo struct {
	name string
	size int64
}

// Run audits the mirror rooted at root.
func Run(ctx context.Context, root string) (*Report, error) {
	a := &Auditor{
		root:     root,
		sidecars: sidecar.New(afero.NewBasePathFs(afero.NewOsFs(), root)),
		files:    make(map[string][]fileInfo),
	}
	return a.run(ctx)
}

func (a *Auditor) run(ctx context.Context) (*Report, error) {
	info, err := os.Stat(a.root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", a.root)
	}

	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, a.root, a.walkCallback(ctx))
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &Report{Root: a.root, Folders: a.folders.Load()}
	a.pair(rep)

	rep.Findings = append(rep.Findings, a.found...)
	sort.Slice(rep.Findings, func(i, j int) bool {
		if rep.Findings[i].Path != rep.Findings[j].Path {
			return rep.Findings[i].Path < rep.Findings[j].Path
		}
		return rep.Findings[i].Kind < rep.Findings[j].Kind
	})
	return rep, nil
}

func (a *Auditor) walkCallback(ctx context.Context) fs.WalkDirFunc {
	return func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fastwalk.ErrSkipFiles
		}

		rel := a.rel(p)
		if err != nil {
			a.add(Finding{Kind: Unreadable, Path: rel, Detail: err.Error()})
			return nil
		}

		if d.IsDir() {
			if rel != "/" {
				a.folders.Add(1)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			a.add(Finding{Kind: Unreadable, Path: rel, Detail: err.Error()})
			return nil
		}

		a.mu.Lock()
		dir := path.Dir(rel)
		a.files[dir] = append(a.files[dir], fileInfo{name: d.Name(), size: info.Size()})
		a.mu.Unlock()
		return nil
	}
}

// pair matches content files with sidecars, directory by directory.
func (a *Auditor) pair(rep *Report) {
	for dir, files := range a.files {
		names := make(map[string]bool, len(files))
		for _, f := range files {
			names[f.name] = true
		}

		for _, f := range files {
			p := path.Join(dir, f.name)
			switch {
			case dir == "/" && f.name == mirror.TreeFile:
				continue
			case strings.HasSuffix(f.name, sidecar.PartSuffix) || strings.HasSuffix(f.name, ".tmp"):
				a.found = append(a.found, Finding{Kind: Leftover, Path: p})
			case sidecar.IsSidecar(f.name):
				content := sidecar.ContentName(f.name)
				if !names[content] {
					a.found = append(a.found, Finding{Kind: Partial, Path: path.Join(dir, content), Detail: "sidecar without content"})
				}
				if _, ok := a.sidecars.Read(path.Join(dir, content)); !ok {
					a.found = append(a.found, Finding{Kind: Corrupt, Path: p})
				}
			default:
				rep.Pictures++
				rep.Bytes += f.size
				if !names[f.name+sidecar.Suffix] {
					a.found = append(a.found, Finding{Kind: Orphan, Path: p, Detail: "content without sidecar"})
				}
			}
		}
	}
}

func (a *Auditor) add(f Finding) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.found = append(a.found, f)
}

// rel converts an OS path below root into a mirror path.
func (a *Auditor) rel(p string) string {
	r, err := filepath.Rel(a.root, p)
	if err != nil || r == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(r)
}
