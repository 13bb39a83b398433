package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/audit"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// PrettyFormatter renders styled output for a terminal.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	if r.Summary != nil {
		f.formatSummary(w, r.Summary)
	}
	if r.Status != nil {
		f.formatStatus(w, r.Status)
	}
	if r.Audit != nil {
		f.formatAudit(w, r.Audit)
	}
	return nil
}

func (f *PrettyFormatter) formatSummary(w *bytes.Buffer, s *types.RunSummary) {
	lines := []string{
		field("Mirror:", ValueStyle.Render(s.Root)) + "  " + field("Site:", ValueStyle.Render(s.Site)),
		field("Elapsed:", ValueStyle.Render(formatDuration(s.Elapsed()))),
	}
	if s.Preserve {
		lines = append(lines, MutedStyle.Render("Preservation mode: nothing was deleted"))
	}
	if s.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Run interrupted; stale folders were not pruned"))
	}
	w.WriteString(HeaderBox.Render(strings.Join(lines, "\n")))
	w.WriteString("\n")

	var active []types.FolderReport
	for _, folder := range sortedFolders(s) {
		if folder.Fetched+folder.Removed+folder.Failed > 0 || folder.Error != "" {
			active = append(active, folder)
		}
	}

	if len(active) == 0 {
		w.WriteString(MutedStyle.Render("  Nothing changed\n"))
	} else {
		w.WriteString(fmt.Sprintf("  %s%s%s%s\n",
			TableHeaderStyle.Render(padRight("FETCHED", 9)),
			TableHeaderStyle.Render(padRight("REMOVED", 9)),
			TableHeaderStyle.Render(padRight("FAILED", 8)),
			TableHeaderStyle.Render("FOLDER")))
		for _, folder := range active {
			path := PathStyle.Render(folder.Path)
			if folder.Error != "" {
				path += "  " + ErrorStyle.Render(folder.Error)
			}
			w.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
				SuccessStyle.Render(padLeft(fmt.Sprint(folder.Fetched), 7)),
				ValueStyle.Render(padLeft(fmt.Sprint(folder.Removed), 7)),
				failedStyle(folder.Failed).Render(padLeft(fmt.Sprint(folder.Failed), 6)),
				path))
		}
	}

	parts := []string{
		field("Fetched:", SizeStyle.Render(fmt.Sprintf("%d (%s)", s.Fetched, humanize.IBytes(uint64(s.BytesFetched))))),
		field("Unchanged:", ValueStyle.Render(fmt.Sprint(s.Unchanged))),
		field("Removed:", ValueStyle.Render(fmt.Sprint(s.Removed))),
		field("Renamed:", ValueStyle.Render(fmt.Sprint(s.Renamed))),
		field("Pruned:", ValueStyle.Render(fmt.Sprint(s.Pruned))),
		field("Failed:", failedStyle(s.Failed).Render(fmt.Sprint(s.Failed))),
	}
	if s.Preserved > 0 {
		parts = append(parts, field("Preserved:", ValueStyle.Render(fmt.Sprint(s.Preserved))))
	}
	w.WriteString(FooterBox.Render(strings.Join(parts, "  ")))
	w.WriteString("\n")

	var warnings []string
	for _, folder := range sortedFolders(s) {
		warnings = append(warnings, folder.Warnings...)
	}
	if len(warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}
}

func (f *PrettyFormatter) formatStatus(w *bytes.Buffer, s *Status) {
	w.WriteString(HeaderBox.Render(field("Mirror:", ValueStyle.Render(s.Root))))
	w.WriteString("\n")

	if len(s.Folders) == 0 {
		w.WriteString(MutedStyle.Render("  No pictures indexed\n"))
	} else {
		w.WriteString(fmt.Sprintf("  %s%s%s%s\n",
			TableHeaderStyle.Render(padRight("FILES", 7)),
			TableHeaderStyle.Render(padRight("SIZE", 12)),
			TableHeaderStyle.Render(padRight("LAST FETCHED", 18)),
			TableHeaderStyle.Render("FOLDER")))
		for _, folder := range s.Folders {
			w.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
				ValueStyle.Render(padLeft(fmt.Sprint(folder.Files), 5)),
				SizeStyle.Render(padLeft(humanize.IBytes(uint64(folder.Bytes)), 10)),
				MutedStyle.Render(padRight(lastFetched(folder.LastFetched), 16)),
				PathStyle.Render(folder.Folder)))
		}
	}

	files, size := s.Totals()
	w.WriteString(FooterBox.Render(strings.Join([]string{
		field("Folders:", ValueStyle.Render(fmt.Sprint(len(s.Folders)))),
		field("Pictures:", ValueStyle.Render(fmt.Sprint(files))),
		field("Total:", SizeStyle.Render(humanize.IBytes(uint64(size)))),
	}, "  ")))
	w.WriteString("\n")
}

func (f *PrettyFormatter) formatAudit(w *bytes.Buffer, rep *audit.Report) {
	w.WriteString(HeaderBox.Render(strings.Join([]string{
		field("Mirror:", ValueStyle.Render(rep.Root)),
		field("Folders:", ValueStyle.Render(fmt.Sprint(rep.Folders))) + "  " +
			field("Pictures:", ValueStyle.Render(fmt.Sprint(rep.Pictures))) + "  " +
			field("Size:", SizeStyle.Render(humanize.IBytes(uint64(rep.Bytes)))),
	}, "\n")))
	w.WriteString("\n")

	if rep.Clean() {
		w.WriteString(SuccessStyle.Render("  Every picture has its content and sidecar\n"))
		return
	}

	for _, finding := range rep.Findings {
		line := fmt.Sprintf("  %s  %s", WarningStyle.Render(padRight(string(finding.Kind), 10)), PathStyle.Render(finding.Path))
		if finding.Detail != "" {
			line += "  " + MutedStyle.Render(finding.Detail)
		}
		w.WriteString(line + "\n")
	}
	w.WriteString(FooterBox.Render(ErrorStyle.Render(fmt.Sprintf("%d problems found", len(rep.Findings)))))
	w.WriteString("\n")
}

func field(label, value string) string {
	return LabelStyle.Render(label) + " " + value
}

func failedStyle(n int) lipgloss.Style {
	if n > 0 {
		return ErrorStyle
	}
	return ValueStyle
}

func lastFetched(unixNano int64) string {
	if unixNano == 0 {
		return "-"
	}
	return time.Unix(0, unixNano).Local().Format("2006-01-02 15:04")
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
