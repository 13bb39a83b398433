package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/config"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/credentials"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage folder passwords",
	Long: `Manage passwords for protected gallery folders.

Passwords are looked up in this order:
  1. the environment variable named by password_env (KUVATFI_PASSWORD)
  2. the keyring entry of the folder (auth set --folder <id>)
  3. the default keyring entry (auth set)`,
}

var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a folder password in the keyring",
	Long: `Store a password in the keyring. The password is read from the
terminal without echo, or from standard input when it is not a terminal.`,
	Args: cobra.NoArgs,
	RunE: runAuthSet,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a folder password from the keyring",
	Args:  cobra.NoArgs,
	RunE:  runAuthDelete,
}

var authCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Show which password sources are configured",
	Args:  cobra.NoArgs,
	RunE:  runAuthCheck,
}

var authFolder string

func init() {
	for _, cmd := range []*cobra.Command{authSetCmd, authDeleteCmd} {
		cmd.Flags().StringVar(&authFolder, "folder", "", "folder id (default: the entry shared by all folders)")
	}

	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authDeleteCmd)
	authCmd.AddCommand(authCheckCmd)
	rootCmd.AddCommand(authCmd)
}

// authKey returns the keyring key selected by --folder.
func authKey() string {
	if authFolder == "" {
		return credentials.DefaultKey
	}
	return credentials.FolderKey(gallery.FolderID(authFolder))
}

func openStore() (*credentials.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, err := credentials.Open(cfg.Keyring.Service)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// readPassword reads a password without echo from a terminal, or one line
// from r otherwise.
func readPassword(r io.Reader, fd int, isTerminal bool) (string, error) {
	if isTerminal {
		fmt.Fprint(os.Stderr, "Password: ")
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(data), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}

	fd := int(os.Stdin.Fd())
	password, err := readPassword(os.Stdin, fd, term.IsTerminal(fd))
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}

	if err := store.Set(authKey(), password); err != nil {
		return err
	}
	printInfo("Stored password for %s.", authKey())
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}

	if err := store.Delete(authKey()); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			printInfo("No password stored for %s.", authKey())
			return nil
		}
		return err
	}
	printInfo("Removed password for %s.", authKey())
	return nil
}

func runAuthCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.PasswordEnv != "" && os.Getenv(cfg.PasswordEnv) != "" {
		fmt.Printf("Environment: %s is set\n", cfg.PasswordEnv)
	} else {
		fmt.Printf("Environment: %s is not set\n", cfg.PasswordEnv)
	}

	if !cfg.Keyring.Enabled {
		fmt.Println("Keyring:     disabled")
		return nil
	}

	store, err := credentials.Open(cfg.Keyring.Service)
	if err != nil {
		fmt.Printf("Keyring:     unavailable (%v)\n", err)
		return nil
	}
	keys, err := store.Keys()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("Keyring:     no passwords stored")
		return nil
	}
	fmt.Printf("Keyring:     %d passwords stored\n", len(keys))
	for _, k := range keys {
		fmt.Printf("  %s\n", k)
	}
	return nil
}
