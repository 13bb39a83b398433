package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/config"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/journal"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View previous runs",
	Long: `View the journal of previous sync runs.

Every run records what it fetched, removed, renamed and pruned, along with
failures and consistency warnings.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a run",
	Long:  `Display the items recorded for one run. A unique ID prefix is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old journal entries",
	Long:  `Remove journal entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
	showAll      bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")
	historyShowCmd.Flags().BoolVarP(&showAll, "all", "a", false, "show every item instead of the first 50")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getJournal returns the journal at the configured directory, falling back
// to the default location when the configuration cannot be loaded.
func getJournal() (*journal.Journal, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		printVerbose("Using default journal location: %v", err)
		j, err := journal.New(filepath.Join(config.DataDir(), "journal"))
		return j, nil, err
	}
	j, err := journal.New(cfg.Journal.Path)
	return j, cfg, err
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	j, _, err := getJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	entries, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No runs recorded yet.")
		printInfo("Run 'kuvasync sync' to mirror the gallery.")
		return nil
	}

	fmt.Printf("\n%-8s  %-16s  %-8s  %7s  %7s  %6s  %-10s  %s\n",
		"ID", "STARTED", "ELAPSED", "FETCHED", "REMOVED", "FAILED", "SIZE", "RESULT")
	fmt.Println(strings.Repeat("-", 90))

	for _, entry := range entries {
		s := entry.Summary
		fmt.Printf("%-8s  %-16s  %-8s  %7d  %7d  %6d  %-10s  %s\n",
			shortID(entry.ID),
			s.Started.Local().Format("2006-01-02 15:04"),
			s.Elapsed().Round(time.Second),
			s.Fetched,
			s.Removed,
			s.Failed,
			types.FormatSize(s.BytesFetched),
			result(&entry),
		)
	}

	fmt.Println(strings.Repeat("-", 90))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Println("Use 'kuvasync history show <id>' for details on a specific run.")
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// result summarizes how a run ended.
func result(e *journal.Entry) string {
	switch {
	case e.Error != "":
		return "failed: " + truncateString(e.Error, 40)
	case e.Summary.Interrupted:
		return "interrupted"
	case e.Summary.FolderErrors() > 0:
		return fmt.Sprintf("%d folder errors", e.Summary.FolderErrors())
	default:
		return "ok"
	}
}

// runHistoryShow displays the details of one run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	j, _, err := getJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	entry, err := j.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}
	s := entry.Summary

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:         %s\n", entry.ID)
	fmt.Printf("Mirror:     %s\n", s.Root)
	fmt.Printf("Site:       %s\n", s.Site)
	fmt.Printf("Started:    %s\n", s.Started.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Elapsed:    %s\n", s.Elapsed().Round(time.Millisecond))
	fmt.Printf("Result:     %s\n", result(entry))
	fmt.Printf("Fetched:    %d (%s)\n", s.Fetched, types.FormatSize(s.BytesFetched))
	fmt.Printf("Unchanged:  %d\n", s.Unchanged)
	fmt.Printf("Removed:    %d\n", s.Removed)
	fmt.Printf("Renamed:    %d\n", s.Renamed)
	fmt.Printf("Pruned:     %d\n", s.Pruned)
	fmt.Printf("Failed:     %d\n", s.Failed)
	if s.Preserve {
		fmt.Printf("Preserved:  %d (preservation mode)\n", s.Preserved)
	}

	if len(entry.Items) == 0 {
		return nil
	}

	fmt.Println("\nItems:")
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%-14s  %s\n", "KIND", "PATH")
	fmt.Println(strings.Repeat("-", 60))

	limit := len(entry.Items)
	if !showAll && limit > 50 {
		limit = 50
	}
	for _, item := range entry.Items[:limit] {
		line := fmt.Sprintf("%-14s  %s", item.Kind, item.Path)
		switch {
		case item.From != "":
			line += "  (from " + item.From + ")"
		case item.Message != "":
			line += "  " + item.Message
		case item.Size > 0:
			line += "  " + types.FormatSize(item.Size)
		}
		fmt.Println(line)
	}
	if len(entry.Items) > limit {
		fmt.Printf("\n... and %d more items (use --all)\n", len(entry.Items)-limit)
	}
	return nil
}

// runHistoryClean removes old journal entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	j, cfg, err := getJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	retentionDays := config.DefaultRetentionDays
	if cfg != nil && cfg.Journal.RetentionDays > 0 {
		retentionDays = cfg.Journal.RetentionDays
	}

	printInfo("Removing journal entries older than %d days...", retentionDays)
	n, err := j.Cleanup(retentionDays, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	printInfo("Removed %d entries.", n)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
