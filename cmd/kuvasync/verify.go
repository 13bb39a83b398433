package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/audit"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/output"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Check the mirror for incomplete pictures",
	Long: `Walk the mirror and pair every picture with its fingerprint sidecar.

Reported problems:
  partial   a sidecar whose picture is missing (the next sync refetches it)
  orphan    a picture without a sidecar (the next sync removes it)
  corrupt   a sidecar that cannot be parsed
  leftover  an interrupted download or temporary file

The gallery is not contacted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

var verifyStrict bool

func init() {
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "exit with an error when problems are found")
	verifyCmd.Flags().StringP("output", "o", "", "output format: pretty, plain, json, yaml")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printVerbose("Auditing %s", root)
	rep, err := audit.Run(ctx, root)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, &output.Result{Audit: rep}); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())

	if verifyStrict && !rep.Clean() {
		return fmt.Errorf("%d problems found in %s", len(rep.Findings), root)
	}
	return nil
}
