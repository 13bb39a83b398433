package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/config"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/logging"
)

var (
	cfgFile string

	// errOut receives warnings and errors.
	errOut io.Writer = os.Stderr

	// v holds the configuration for the invoked command. It is nil when
	// the config file could not be read; loadConfig reports that error.
	v      *viper.Viper
	cfgErr error

	rootCmd = &cobra.Command{
		Use:   "kuvasync [path]",
		Short: "Mirror a kuvat.fi photo gallery into a local directory",
		Long: `kuvasync keeps a local directory in step with a kuvat.fi gallery.

Each run fetches the gallery's folder tree, follows folder renames,
downloads new and changed pictures and removes what the gallery no longer
has. Pictures are compared by fingerprint, so unchanged pictures cost no
download. Running without a subcommand performs a sync.

Examples:
  kuvasync                           # Sync into the configured path
  kuvasync ~/Pictures/kuvat          # Sync into a specific directory
  kuvasync --preserve                # Report deletions without performing them
  kuvasync --site https://x.kuvat.fi # Mirror another gallery
  kuvasync status                    # Show what the index knows
  kuvasync verify                    # Check the mirror for broken pictures
  kuvasync history                   # List previous runs`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runSync,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/kuvasync/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")

	addSyncFlags(rootCmd)
}

// initConfig reads the config file and environment variables.
func initConfig() {
	v, cfgErr = config.New(cfgFile)
	if v == nil {
		v = viper.New()
		config.SetDefaults(v)
	}
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

// loadConfig decodes and validates the configuration. Flags bound to v
// before the call take precedence over file and environment values.
func loadConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging starts file logging and mirrors records at or above the
// console level to stderr.
func setupLogging(cfg *config.Config) error {
	lc := cfg.LoggingConfig()
	switch {
	case getQuiet():
		lc.ConsoleLevel = "warn"
	case getVerbose():
		lc.ConsoleLevel = "debug"
		lc.Level = "debug"
	default:
		lc.ConsoleLevel = "info"
	}
	return logging.Init(lc)
}

// mirrorRoot returns the absolute mirror root from the optional path
// argument or the configuration.
func mirrorRoot(cfg *config.Config, args []string) (string, error) {
	root := cfg.Path
	if len(args) > 0 {
		expanded, err := config.ExpandPath(args[0])
		if err != nil {
			return "", err
		}
		root = expanded
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve mirror root: %w", err)
	}
	return abs, nil
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return v != nil && v.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return v != nil && v.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(errOut, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printWarning prints a warning to stderr unless quiet mode is enabled.
func printWarning(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(errOut, "Warning: "+format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(errOut, "Error: "+format+"\n", args...)
}
