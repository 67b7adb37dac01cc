package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"comterm/pkg/app"
	"comterm/pkg/capture"
	"comterm/pkg/logging"
	"comterm/pkg/serial"
)

var (
	captureFlags   lineFlags
	captureOutput  string
	captureRetries int

	// isTerminal is replaced in tests.
	isTerminal = func(fd uintptr) bool {
		return term.IsTerminal(int(fd))
	}
)

// captureCmd records a port to a file without the interactive screen.
var captureCmd = &cobra.Command{
	Use:   "capture <port|profile>",
	Short: "Capture received bytes to a file",
	Long: `Open a port and write every byte it receives to a file, unchanged,
until interrupted with Ctrl+C.

Examples:
  comterm capture COM3 -b 115200 -o dump.bin
  comterm capture mydevice -o dump.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	captureFlags.register(captureCmd.Flags())
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", "", "capture `FILE`")
	captureCmd.Flags().IntVar(&captureRetries, "retries", serial.DefaultRetryConfig().MaxRetries, "attempts to open a busy port")
	captureCmd.MarkFlagRequired("output")
}

func runCapture(cmd *cobra.Command, args []string) error {
	mgr, err := configManager()
	if err != nil {
		return err
	}
	profile, _, err := resolveTarget(cmd, args[0], mgr)
	if err != nil {
		return err
	}
	if err := captureFlags.apply(cmd.Flags(), &profile); err != nil {
		return err
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// No screen owns stderr here, so warnings go straight to it.
	logger := logging.Console(cmd.ErrOrStderr(), verbose)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	retry := serial.DefaultRetryConfig()
	retry.MaxRetries = captureRetries
	device := serial.NewDevice(logger)
	if err := device.OpenWithRetry(ctx, profile.Port, profile.Line, retry); err != nil {
		printOpenHints(cmd.ErrOrStderr(), err)
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	defer device.Close()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Capturing %s (%s) to %s, press Ctrl+C to stop\n", profile.Port, settingsSummary(profile.Line), captureOutput)

	opts := app.CaptureOptions{
		Profile: profile,
		Path:    captureOutput,
		OnError: func(err error) {
			fmt.Fprintf(errOut, "warning: %v\n", err)
		},
		Logger: logger,
	}
	tty := isTerminal(os.Stderr.Fd())
	if tty {
		opts.OnProgress = func(steps int) {
			fmt.Fprintf(errOut, "\r%d blocks received", steps)
		}
	}

	stats, err := app.RunCapture(ctx, device, opts)
	if tty {
		fmt.Fprintln(errOut)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Captured %s in %d writes to %s (%v)\n",
		capture.FormatBytes(stats.Bytes), stats.Writes, stats.Path, stats.Duration.Round(time.Millisecond))
	return nil
}
