package output

import (
	"bytes"
	"encoding/json"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/audit"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// summaryView adds derived fields to a run summary for structured output.
type summaryView struct {
	types.RunSummary `yaml:",inline"`

	Elapsed      string `json:"elapsed" yaml:"elapsed"`
	FolderErrors int    `json:"folder_errors" yaml:"folder_errors"`
}

type statusView struct {
	Status `yaml:",inline"`

	Files int   `json:"files" yaml:"files"`
	Bytes int64 `json:"bytes" yaml:"bytes"`
}

type document struct {
	Summary *summaryView  `json:"summary,omitempty" yaml:"summary,omitempty"`
	Status  *statusView   `json:"status,omitempty" yaml:"status,omitempty"`
	Audit   *audit.Report `json:"audit,omitempty" yaml:"audit,omitempty"`
}

func buildDocument(r *Result) document {
	var doc document
	if s := r.Summary; s != nil {
		view := summaryView{
			RunSummary:   *s,
			Elapsed:      s.Elapsed().String(),
			FolderErrors: s.FolderErrors(),
		}
		view.Folders = sortedFolders(s)
		doc.Summary = &view
	}
	if s := r.Status; s != nil {
		files, size := s.Totals()
		doc.Status = &statusView{Status: *s, Files: files, Bytes: size}
	}
	doc.Audit = r.Audit
	return doc
}

// JSONFormatter writes a single indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)
