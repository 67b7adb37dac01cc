package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"comterm/pkg/app"
	"comterm/pkg/config"
	portserial "comterm/pkg/serial"
)

var (
	connectFlags   lineFlags
	connectCapture string
	connectRetries int

	// availablePorts and portAvailable are replaced in tests.
	availablePorts = portserial.ListPorts
	portAvailable  = portserial.IsPortAvailable
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <port|profile>",
	Short: "Connect to a serial port",
	Long: `Connect to a serial port directly or using a saved profile.

You can specify either:
  - A port name (e.g., COM3, /dev/ttyUSB0) with optional parameters
  - A saved profile name, whose settings the flags override

Examples:
  # Connect to COM3 with default settings (9600 8-N-1)
  comterm connect COM3

  # Connect to /dev/ttyUSB0 at 115200 with hardware flow control
  comterm connect /dev/ttyUSB0 -b 115200 --flow rtscts

  # Connect using a saved profile and capture everything received
  comterm connect mydevice --capture dump.bin`,
	Args:    cobra.ExactArgs(1),
	Aliases: []string{"open"},
	RunE:    runConnect,
}

func init() {
	connectFlags.register(connectCmd.Flags())
	connectCmd.Flags().StringVar(&connectCapture, "capture", "", "capture received bytes to `FILE` from the start")
	connectCmd.Flags().IntVar(&connectRetries, "retries", portserial.DefaultRetryConfig().MaxRetries, "attempts to open a busy port")
}

func runConnect(cmd *cobra.Command, args []string) error {
	mgr, err := configManager()
	if err != nil {
		return err
	}

	profile, name, err := resolveTarget(cmd, args[0], mgr)
	if err != nil {
		return err
	}
	if err := connectFlags.apply(cmd.Flags(), &profile); err != nil {
		return err
	}
	return startSession(cmd, profile, name, mgr, connectCapture, connectRetries)
}

// startSession runs the interactive terminal on profile. name is the saved
// profile SIGHUP reloads, empty for a bare port.
func startSession(cmd *cobra.Command, profile config.Profile, name string, mgr *config.FileConfigManager, capturePath string, retries int) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := newLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	retry := portserial.DefaultRetryConfig()
	retry.MaxRetries = retries

	runner, err := app.NewRunner(app.RunnerOptions{
		Profile:     profile,
		ProfileName: name,
		Manager:     mgr,
		CapturePath: capturePath,
		Retry:       retry,
		Logger:      logger,
		Out:         cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	if err := runner.Run(cmd.Context()); err != nil {
		printOpenHints(cmd.ErrOrStderr(), err)
		return err
	}
	return nil
}

// resolveTarget treats target as a port when it looks like one and as a
// saved profile otherwise. A port the system does not list only draws a
// warning, since the open retries may outlast a device being plugged in.
func resolveTarget(cmd *cobra.Command, target string, mgr *config.FileConfigManager) (config.Profile, string, error) {
	if isSerialPort(target) {
		profile := config.DefaultProfile()
		profile.Port = target
		warnMissingPort(cmd.ErrOrStderr(), target)
		return profile, "", nil
	}

	profile, err := mgr.LoadConfig(target)
	if err == nil {
		warnMissingPort(cmd.ErrOrStderr(), profile.Port)
		return profile, target, nil
	}

	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "'%s' is neither a valid port nor a saved profile.\n", target)
	fmt.Fprintf(w, "\nAvailable ports:\n")
	ports, _ := availablePorts()
	if len(ports) == 0 {
		fmt.Fprintf(w, "  No serial ports found.\n")
	}
	for _, p := range ports {
		fmt.Fprintf(w, "  - %s\n", p)
	}

	configs, _ := mgr.ListConfigs()
	if len(configs) > 0 {
		fmt.Fprintf(w, "\nAvailable profiles:\n")
		for _, c := range configs {
			fmt.Fprintf(w, "  - %s (port: %s)\n", c.Name, c.Profile.Port)
		}
	}
	return config.Profile{}, "", fmt.Errorf("unknown port or profile: %s", target)
}

func warnMissingPort(w io.Writer, port string) {
	if !portAvailable(port) {
		fmt.Fprintf(w, "Warning: %s is not among the available ports, use 'comterm list' to see them.\n", port)
	}
}

func isSerialPort(name string) bool {
	lower := strings.ToLower(name)

	// Windows COM ports
	if strings.HasPrefix(lower, "com") || strings.HasPrefix(name, `\\.\`) {
		return true
	}

	// Unix-like serial devices
	if strings.HasPrefix(name, "/dev/") {
		return true
	}

	ports, err := availablePorts()
	if err == nil {
		for _, port := range ports {
			if strings.EqualFold(port, name) {
				return true
			}
		}
	}

	return false
}

// printOpenHints suggests fixes for a port that failed to open.
func printOpenHints(w io.Writer, err error) {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return
	}

	fmt.Fprintf(w, "\nPossible solutions:\n")
	switch portErr.Code() {
	case serial.PermissionDenied:
		fmt.Fprintf(w, "  - Check if you have permission to access the port\n")
		fmt.Fprintf(w, "  - On Linux: Add your user to the 'dialout' group: sudo usermod -a -G dialout $USER\n")
		fmt.Fprintf(w, "  - On macOS: Check System Preferences > Security & Privacy\n")
	case serial.PortBusy:
		fmt.Fprintf(w, "  - The port may be in use by another application\n")
		fmt.Fprintf(w, "  - Close other terminal programs or serial monitors\n")
	case serial.PortNotFound:
		fmt.Fprintf(w, "  - The specified port does not exist\n")
		fmt.Fprintf(w, "  - Use 'comterm list' to see available ports\n")
	case serial.InvalidSerialPort:
		fmt.Fprintf(w, "  - The device is not a serial port\n")
	default:
		fmt.Fprintf(w, "  - Check the cable and that the device is powered\n")
	}
}
