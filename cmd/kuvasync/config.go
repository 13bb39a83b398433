package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage kuvasync configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/kuvasync/config.yaml (if set)
  2. ~/.config/kuvasync/config.yaml

Environment variables override config file settings using the KUVASYNC_ prefix:
  KUVASYNC_PATH=/srv/mirror
  KUVASYNC_RATE=0.5
  KUVASYNC_RATES_PICTURE=2
  KUVASYNC_JOURNAL_ENABLED=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration from all sources.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the effective configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configFile := v.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("path:                   %s\n", cfg.Path)
	fmt.Printf("site:                   %s\n", cfg.Site)
	fmt.Printf("rate:                   %g/s\n", cfg.Rate)
	fmt.Printf("rates.listing:          %g/s\n", cfg.RateFor(cfg.Rates.Listing))
	fmt.Printf("rates.picture:          %g/s\n", cfg.RateFor(cfg.Rates.Picture))
	fmt.Printf("rates.auth:             %g/s\n", cfg.RateFor(cfg.Rates.Auth))
	fmt.Printf("rate_shared:            %t\n", cfg.RateShared)
	fmt.Printf("preserve:               %t\n", cfg.Preserve)
	fmt.Printf("concurrency:            %d\n", cfg.Concurrency)
	fmt.Printf("exclude:                %v\n", cfg.Exclude)
	fmt.Printf("password_env:           %s\n", cfg.PasswordEnv)
	fmt.Printf("keyring.enabled:        %t\n", cfg.Keyring.Enabled)
	fmt.Printf("keyring.service:        %s\n", cfg.Keyring.Service)
	fmt.Printf("remote.variants:        %v\n", cfg.Remote.Variants)
	fmt.Printf("http.timeout:           %s\n", cfg.HTTP.Timeout)
	fmt.Printf("min_free:               %s\n", orNone(cfg.MinFree))
	fmt.Printf("metrics_file:           %s\n", orNone(cfg.MetricsFile))
	fmt.Printf("journal.enabled:        %t\n", cfg.Journal.Enabled)
	fmt.Printf("journal.path:           %s\n", cfg.Journal.Path)
	fmt.Printf("journal.retention:      %d days\n", cfg.Journal.RetentionDays)
	fmt.Printf("index.enabled:          %t\n", cfg.Index.Enabled)
	fmt.Printf("index.path:             %s\n", cfg.Index.Path)
	fmt.Printf("logging.level:          %s\n", cfg.Logging.Level)
	fmt.Printf("logging.path:           %s\n", orNone(cfg.Logging.Path))

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	overrides := envOverrides(os.Environ())
	if len(overrides) == 0 {
		fmt.Println("(none)")
	}
	for _, kv := range overrides {
		fmt.Println(kv)
	}
	return nil
}

// envOverrides returns the KUVASYNC_ variables in env, sorted.
func envOverrides(env []string) []string {
	prefix := config.EnvPrefix + "_"
	var out []string
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	sort.Strings(out)
	return out
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	path, written, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if !written {
		printInfo("Config file already exists: %s", path)
		return nil
	}
	printInfo("Created default config file: %s", path)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := config.ConfigFile()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	fmt.Println(path)

	if _, err := os.Stat(path); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}
