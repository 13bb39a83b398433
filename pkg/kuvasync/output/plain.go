package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// PlainFormatter writes unstyled, tab-aligned text for scripts and pipes.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if s := r.Summary; s != nil {
		fmt.Fprintf(tw, "root\t%s\n", s.Root)
		fmt.Fprintf(tw, "site\t%s\n", s.Site)
		fmt.Fprintf(tw, "elapsed\t%s\n", s.Elapsed())
		fmt.Fprintf(tw, "fetched\t%d\n", s.Fetched)
		fmt.Fprintf(tw, "bytes\t%s\n", types.FormatSize(s.BytesFetched))
		fmt.Fprintf(tw, "unchanged\t%d\n", s.Unchanged)
		fmt.Fprintf(tw, "failed\t%d\n", s.Failed)
		fmt.Fprintf(tw, "removed\t%d\n", s.Removed)
		fmt.Fprintf(tw, "preserved\t%d\n", s.Preserved)
		fmt.Fprintf(tw, "renamed\t%d\n", s.Renamed)
		fmt.Fprintf(tw, "pruned\t%d\n", s.Pruned)
		fmt.Fprintf(tw, "interrupted\t%t\n", s.Interrupted)
		fmt.Fprintln(tw)

		fmt.Fprintln(tw, "FOLDER\tFETCHED\tUNCHANGED\tFAILED\tREMOVED\tSTATUS")
		for _, folder := range sortedFolders(s) {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n",
				folder.Path, folder.Fetched, folder.Unchanged, folder.Failed, folder.Removed, folderStatus(folder))
		}
	}

	if s := r.Status; s != nil {
		fmt.Fprintln(tw, "FOLDER\tFILES\tSIZE\tLAST FETCHED")
		for _, folder := range s.Folders {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
				folder.Folder, folder.Files, types.FormatSize(folder.Bytes), lastFetched(folder.LastFetched))
		}
	}

	if a := r.Audit; a != nil {
		fmt.Fprintln(tw, "KIND\tPATH\tDETAIL")
		for _, finding := range a.Findings {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", finding.Kind, finding.Path, finding.Detail)
		}
	}

	return tw.Flush()
}

func folderStatus(r types.FolderReport) string {
	switch {
	case r.Error != "":
		return "error: " + r.Error
	case r.Skipped != "":
		return "skipped: " + r.Skipped
	case len(r.Warnings) > 0:
		return fmt.Sprintf("%d warnings", len(r.Warnings))
	default:
		return "ok"
	}
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
