package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/index"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/output"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show what the mirror index knows",
	Long: `Show per-folder picture counts, sizes and last fetch times from the
mirror index, without walking the mirror or contacting the gallery.

The index is updated by every sync that runs with the index enabled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "output format: pretty, plain, json, yaml")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter, err := output.Get(outputFormat(cmd))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	root, err := mirrorRoot(cfg, args)
	if err != nil {
		return err
	}

	store, err := index.Open(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("failed to open index at %s: %w", cfg.Index.Path, err)
	}
	defer store.Close()

	stats, err := store.Stats(root)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, &output.Result{Status: &output.Status{Root: root, Folders: stats}}); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}
