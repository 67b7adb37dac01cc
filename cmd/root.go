// Package cmd implements the comterm command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"comterm/pkg/config"
	"comterm/pkg/logging"
)

var (
	// Root command flags
	verbose   bool
	configDir string

	// Root command
	rootCmd = &cobra.Command{
		Use:   "comterm",
		Short: "A serial port terminal with capture and macros",
		Long: `comterm talks to a serial port: received bytes are shown on a fixed
character grid or captured verbatim to a file, and typed text or one of ten
function key macros is sent back.`,
		Version:           "1.0.0",
		RunE:              runRoot,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write a debug log to "+logging.DebugFile)
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory for profiles and macros (default: user config dir)")

	// Add subcommands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(macroCmd)
}

// runRoot shows help when no subcommand is given
func runRoot(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

// configManager returns the profile store for --config-dir.
func configManager() (*config.FileConfigManager, error) {
	dir := configDir
	if dir == "" {
		var err error
		if dir, err = config.DefaultConfigDir(); err != nil {
			return nil, err
		}
	}
	return config.NewFileConfigManager(dir), nil
}

// newLogger returns the debug logger for --verbose.
func newLogger() (zerolog.Logger, io.Closer, error) {
	return logging.New(verbose, "")
}
