package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"comterm/pkg/macro"
)

var macroHex bool

// macroCmd manages the function key macros.
var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Manage the F3-F12 macros",
	Long: `Manage the ten macros sent by F3 to F12 in a session.

Slot 0 is sent by F3, slot 1 by F4 and so on up to slot 9 on F12. Run
'comterm macro syntax' for the escape and hex rules.`,
}

var macroListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the macros",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE:    runMacroList,
}

var macroSetCmd = &cobra.Command{
	Use:   "set <slot> <text>",
	Short: "Set a macro",
	Long: `Set the text of a macro slot.

Examples:
  comterm macro set 0 'AT\r'
  comterm macro set 1 --hex '7e 01 02 7e'`,
	Args: cobra.ExactArgs(2),
	RunE: runMacroSet,
}

var macroClearCmd = &cobra.Command{
	Use:   "clear <slot>",
	Short: "Clear a macro",
	Args:  cobra.ExactArgs(1),
	RunE:  runMacroClear,
}

var macroShowCmd = &cobra.Command{
	Use:   "show <slot>",
	Short: "Show a macro and the bytes it sends",
	Args:  cobra.ExactArgs(1),
	RunE:  runMacroShow,
}

var macroSyntaxCmd = &cobra.Command{
	Use:   "syntax",
	Short: "Explain the macro syntax",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), macro.HelpText)
	},
}

func init() {
	macroCmd.AddCommand(macroListCmd)
	macroCmd.AddCommand(macroSetCmd)
	macroCmd.AddCommand(macroClearCmd)
	macroCmd.AddCommand(macroShowCmd)
	macroCmd.AddCommand(macroSyntaxCmd)

	macroSetCmd.Flags().BoolVar(&macroHex, "hex", false, "interpret the text as hex digits")
}

// openMacros loads the macro file next to the profiles.
func openMacros() (*macro.Bank, *macro.FileStore, error) {
	mgr, err := configManager()
	if err != nil {
		return nil, nil, err
	}
	store := macro.NewFileStore(mgr.MacroPath(), zerolog.Nop())
	bank := macro.NewBank()
	if err := store.Load(bank); err != nil {
		return nil, nil, err
	}
	return bank, store, nil
}

func parseSlot(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i >= macro.Slots {
		return 0, fmt.Errorf("invalid slot: %q (valid: 0-%d)", s, macro.Slots-1)
	}
	return i, nil
}

func runMacroList(cmd *cobra.Command, args []string) error {
	bank, _, err := openMacros()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tKEY\tMODE\tBYTES\tTEXT")
	for i := range macro.Slots {
		slot, _ := bank.Slot(i)
		fmt.Fprintf(w, "%d\tF%d\t%s\t%d\t%s\n", i, i+3, slot.Mode(), slot.Len(), slot.Text())
	}
	return w.Flush()
}

func runMacroSet(cmd *cobra.Command, args []string) error {
	i, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	return editMacro(cmd, i, args[1], macroHex)
}

func runMacroClear(cmd *cobra.Command, args []string) error {
	i, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	return editMacro(cmd, i, "", false)
}

func editMacro(cmd *cobra.Command, i int, text string, hex bool) error {
	bank, store, err := openMacros()
	if err != nil {
		return err
	}

	editor := bank.Editor()
	if err := editor.Set(i, text, hex); err != nil {
		return err
	}
	if err := editor.Commit(store); err != nil {
		return err
	}

	slot, _ := bank.Slot(i)
	fmt.Fprintf(cmd.OutOrStdout(), "Macro %d (F%d) set: %s, %d bytes.\n", i, i+3, slot.Mode(), slot.Len())
	return nil
}

func runMacroShow(cmd *cobra.Command, args []string) error {
	i, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	bank, _, err := openMacros()
	if err != nil {
		return err
	}
	slot, _ := bank.Slot(i)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Slot:  %d (F%d)\n", i, i+3)
	fmt.Fprintf(out, "Mode:  %s\n", slot.Mode())
	fmt.Fprintf(out, "Text:  %s\n", slot.Text())
	fmt.Fprintf(out, "Bytes: %d\n", slot.Len())
	if slot.Len() > 0 {
		fmt.Fprintf(out, "Hex:   %s\n", hexDump(slot.Payload()))
	}
	return nil
}

// hexDump renders data as space separated byte pairs.
func hexDump(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = string(macro.AppendHex(nil, b))
	}
	return strings.Join(parts, " ")
}
