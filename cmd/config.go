package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"comterm/pkg/config"
	"comterm/pkg/serial"
)

var (
	// Config command flags
	saveFlags       lineFlags
	savePort        string
	saveDescription string
	loadCapture     string
	loadRetries     int
	listSearch      string
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage saved profiles",
	Long: `Manage saved profiles.

A profile holds a port name with its line settings and display options, so a
device can be reopened with 'comterm connect <profile>'.`,
}

// saveCmd saves a profile
var saveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a profile",
	Long: `Save a port and its settings under a name. Saving over an existing
profile keeps its creation time and description.

Example:
  comterm config save mydevice -p COM3 -b 115200 --flow xonxoff`,
	Args: cobra.ExactArgs(1),
	RunE: runSaveConfig,
}

// loadCmd loads a profile
var loadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Load and connect using a saved profile",
	Long: `Load a saved profile and immediately connect to its port.

Example:
  comterm config load mydevice`,
	Args: cobra.ExactArgs(1),
	RunE: runLoadConfig,
}

// listConfigCmd lists all profiles
var listConfigCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved profiles",
	Long:  `Display a list of all saved profiles.`,
	Args:  cobra.NoArgs,
	RunE:  runListConfigs,
}

// deleteCmd deletes a profile
var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved profile",
	Long: `Delete a saved profile.

Example:
  comterm config delete mydevice`,
	Aliases: []string{"rm", "remove"},
	Args:    cobra.ExactArgs(1),
	RunE:    runDeleteConfig,
}

// showCmd shows details of a profile
var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show details of a saved profile",
	Long: `Display every setting of a saved profile.

Example:
  comterm config show mydevice`,
	Args: cobra.ExactArgs(1),
	RunE: runShowConfig,
}

var exportCmd = &cobra.Command{
	Use:   "export <name> <file>",
	Short: "Export a profile to a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE:  runExportConfig,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a profile from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportConfig,
}

func init() {
	configCmd.AddCommand(saveCmd)
	configCmd.AddCommand(loadCmd)
	configCmd.AddCommand(listConfigCmd)
	configCmd.AddCommand(deleteCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(exportCmd)
	configCmd.AddCommand(importCmd)

	saveFlags.register(saveCmd.Flags())
	saveCmd.Flags().StringVarP(&savePort, "port", "p", "", "serial port")
	saveCmd.Flags().StringVar(&saveDescription, "description", "", "free text shown by 'config list'")
	saveCmd.MarkFlagRequired("port")

	loadCmd.Flags().StringVar(&loadCapture, "capture", "", "capture received bytes to `FILE` from the start")
	loadCmd.Flags().IntVar(&loadRetries, "retries", serial.DefaultRetryConfig().MaxRetries, "attempts to open a busy port")

	listConfigCmd.Flags().StringVar(&listSearch, "search", "", "only show profiles whose name or description contains this text")
}

func runSaveConfig(cmd *cobra.Command, args []string) error {
	name := args[0]

	profile := config.DefaultProfile()
	profile.Port = savePort
	if err := saveFlags.apply(cmd.Flags(), &profile); err != nil {
		return err
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	mgr, err := configManager()
	if err != nil {
		return err
	}
	if err := mgr.SaveConfig(name, profile); err != nil {
		return fmt.Errorf("error saving profile: %w", err)
	}
	if cmd.Flags().Changed("description") {
		if err := mgr.SetConfigDescription(name, saveDescription); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile '%s' saved successfully.\n", name)
	fmt.Fprintf(out, "  Port:     %s\n", profile.Port)
	fmt.Fprintf(out, "  Settings: %s\n", settingsSummary(profile.Line))
	fmt.Fprintf(out, "  Flow:     %s\n", flowSummary(profile.Line))
	return nil
}

func runLoadConfig(cmd *cobra.Command, args []string) error {
	name := args[0]

	mgr, err := configManager()
	if err != nil {
		return err
	}
	profile, err := mgr.LoadConfig(name)
	if err != nil {
		return fmt.Errorf("error loading profile '%s': %w", name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loading profile '%s'...\n", name)
	fmt.Fprintf(cmd.OutOrStdout(), "Connecting to %s at %d baud...\n", profile.Port, profile.Line.BaudRate)
	return startSession(cmd, profile, name, mgr, loadCapture, loadRetries)
}

func runListConfigs(cmd *cobra.Command, args []string) error {
	mgr, err := configManager()
	if err != nil {
		return err
	}
	configs, err := mgr.SearchConfigs(listSearch)
	if err != nil {
		return fmt.Errorf("error listing profiles: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(configs) == 0 {
		fmt.Fprintln(out, "No saved profiles found.")
		fmt.Fprintln(out, "\nUse 'comterm config save <name>' to save a profile.")
		return nil
	}

	fmt.Fprintf(out, "Found %d saved profile(s):\n\n", len(configs))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPORT\tSETTINGS\tFLOW\tLAST USED\tDESCRIPTION")
	fmt.Fprintln(w, "----\t----\t--------\t----\t---------\t-----------")
	for _, info := range configs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Name,
			info.Profile.Port,
			settingsSummary(info.Profile.Line),
			flowSummary(info.Profile.Line),
			formatLastUsed(info.LastUsedAt, "2006-01-02 15:04"),
			info.Description)
	}
	w.Flush()

	fmt.Fprintln(out, "\nUse 'comterm config load <name>' to connect using a profile.")
	fmt.Fprintln(out, "Use 'comterm config show <name>' to see full details.")
	return nil
}

func runDeleteConfig(cmd *cobra.Command, args []string) error {
	name := args[0]

	mgr, err := configManager()
	if err != nil {
		return err
	}
	if err := mgr.DeleteConfig(name); err != nil {
		return fmt.Errorf("error deleting profile '%s': %w", name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted successfully.\n", name)
	return nil
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	name := args[0]

	mgr, err := configManager()
	if err != nil {
		return err
	}
	info, err := mgr.GetConfig(name)
	if err != nil {
		return err
	}

	printProfile(cmd.OutOrStdout(), info)
	fmt.Fprintf(cmd.OutOrStdout(), "\nUse 'comterm config load %s' to connect using this profile.\n", name)
	return nil
}

func printProfile(w io.Writer, info config.ConfigInfo) {
	p := info.Profile
	c := p.Line
	d := p.Display

	fmt.Fprintf(w, "Profile: %s\n", info.Name)
	fmt.Fprintln(w, strings.Repeat("=", len(info.Name)+9))
	if info.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", info.Description)
	}
	fmt.Fprintf(w, "Port:        %s\n", p.Port)
	fmt.Fprintf(w, "Baud Rate:   %d\n", c.BaudRate)
	fmt.Fprintf(w, "Data Bits:   %d\n", c.ByteSize)
	fmt.Fprintf(w, "Parity:      %s\n", serial.ParityTable.Describe(c.Parity))
	fmt.Fprintf(w, "Stop Bits:   %s\n", serial.StopBitsTable.Describe(c.StopBits))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Flow:        %s\n", flowSummary(c))
	fmt.Fprintf(w, "DTR:         %s\n", serial.DTRControlTable.Describe(c.DTRControl))
	fmt.Fprintf(w, "RTS:         %s\n", serial.RTSControlTable.Describe(c.RTSControl))
	fmt.Fprintf(w, "CTS Out:     %t\n", c.CTSOutFlow)
	fmt.Fprintf(w, "DSR Out:     %t\n", c.DSROutFlow)
	fmt.Fprintf(w, "DSR Sense:   %t\n", c.DSRSensitivity)
	fmt.Fprintf(w, "XON/XOFF:    out=%t in=%t continue=%t\n", c.XonOutFlow, c.XonInFlow, c.TxContinueOnXoff)
	fmt.Fprintf(w, "XON Char:    %s\n", serial.FormatHexByte(c.XonChar))
	fmt.Fprintf(w, "XOFF Char:   %s\n", serial.FormatHexByte(c.XoffChar))
	fmt.Fprintf(w, "Limits:      xon=%d xoff=%d\n", c.XonLimit, c.XoffLimit)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Events:      %s\n", c.EventMask)
	fmt.Fprintf(w, "Flag Char:   %s\n", serial.FormatHexByte(c.EventFlagChar))
	fmt.Fprintf(w, "Timeouts:    read interval=%d multiplier=%d constant=%d, write multiplier=%d constant=%d\n",
		c.Timeouts.ReadInterval, c.Timeouts.ReadTotalMultiplier, c.Timeouts.ReadTotalConstant,
		c.Timeouts.WriteTotalMultiplier, c.Timeouts.WriteTotalConstant)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Grid:        %dx%d\n", d.Columns, d.Rows)
	fmt.Fprintf(w, "Auto Wrap:   %t\n", d.AutoWrap)
	fmt.Fprintf(w, "Newline:     %t\n", d.NewlineMode)
	fmt.Fprintf(w, "Local Echo:  %t\n", d.LocalEcho)
	fmt.Fprintf(w, "Hex Display: all=%t non-printable=%t\n", d.DisplayAllHex, d.DisplayNonPrintableHex)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Created:     %s\n", info.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Last Used:   %s\n", formatLastUsed(info.LastUsedAt, time.RFC3339))
}

func formatLastUsed(t time.Time, layout string) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format(layout)
}

func runExportConfig(cmd *cobra.Command, args []string) error {
	mgr, err := configManager()
	if err != nil {
		return err
	}
	if err := mgr.ExportConfig(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' exported to %s.\n", args[0], args[1])
	return nil
}

func runImportConfig(cmd *cobra.Command, args []string) error {
	mgr, err := configManager()
	if err != nil {
		return err
	}
	name, err := mgr.ImportConfig(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' imported from %s.\n", name, args[0])
	return nil
}
