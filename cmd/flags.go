package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"comterm/pkg/config"
	"comterm/pkg/serial"
)

// lineFlags holds the line and display flags shared by connect, capture and
// config save. Only flags given on the command line override a profile.
type lineFlags struct {
	baud     uint32
	dataBits uint8
	parity   string
	stopBits string
	flow     string
	dtr      string
	rts      string
	xon      string
	xoff     string
	events   string
	flagChar string

	readInterval    uint32
	readMultiplier  uint32
	readConstant    uint32
	writeMultiplier uint32
	writeConstant   uint32

	columns int
	rows    int
	noWrap  bool
	newline bool
	echo    bool
	hexAll  bool
	hexCtl  bool
}

func (f *lineFlags) register(fs *pflag.FlagSet) {
	def := serial.DefaultLineConfig()
	disp := config.DefaultDisplaySettings()

	fs.Uint32VarP(&f.baud, "baud", "b", def.BaudRate, "baud rate")
	fs.Uint8VarP(&f.dataBits, "data", "d", def.ByteSize, "data bits (5, 6, 7, or 8)")
	fs.StringVar(&f.parity, "parity", def.Parity.String(), "parity ("+labels(serial.ParityTable.Labels())+")")
	fs.StringVarP(&f.stopBits, "stop", "s", def.StopBits.String(), "stop bits ("+labels(serial.StopBitsTable.Labels())+")")
	fs.StringVar(&f.flow, "flow", serial.FlowNone.String(), "flow control preset ("+labels(serial.FlowPresetTable.Labels())+")")
	fs.StringVar(&f.dtr, "dtr", def.DTRControl.String(), "DTR control ("+labels(serial.DTRControlTable.Labels())+")")
	fs.StringVar(&f.rts, "rts", def.RTSControl.String(), "RTS control ("+labels(serial.RTSControlTable.Labels())+")")
	fs.StringVar(&f.xon, "xon", serial.FormatHexByte(def.XonChar), "XON character in hex")
	fs.StringVar(&f.xoff, "xoff", serial.FormatHexByte(def.XoffChar), "XOFF character in hex")
	fs.StringVar(&f.events, "events", def.EventMask.String(), "comma separated event mask ("+labels(serial.EventTable.Labels())+")")
	fs.StringVar(&f.flagChar, "flag-char", serial.FormatHexByte(def.EventFlagChar), "RxFlag event character in hex")

	fs.Uint32Var(&f.readInterval, "read-interval", def.Timeouts.ReadInterval, "read interval timeout in ms")
	fs.Uint32Var(&f.readMultiplier, "read-multiplier", 0, "read total timeout per byte in ms")
	fs.Uint32Var(&f.readConstant, "read-constant", 0, "read total timeout constant in ms")
	fs.Uint32Var(&f.writeMultiplier, "write-multiplier", 0, "write total timeout per byte in ms")
	fs.Uint32Var(&f.writeConstant, "write-constant", 0, "write total timeout constant in ms")

	fs.IntVar(&f.columns, "columns", disp.Columns, "terminal columns")
	fs.IntVar(&f.rows, "rows", disp.Rows, "terminal rows")
	fs.BoolVar(&f.noWrap, "no-wrap", false, "do not wrap at the last column")
	fs.BoolVar(&f.newline, "newline", false, "treat CR as CR+LF")
	fs.BoolVar(&f.echo, "echo", false, "echo sent bytes locally")
	fs.BoolVar(&f.hexAll, "hex", false, "show every received byte as hex")
	fs.BoolVar(&f.hexCtl, "hex-ctl", false, "show non-printable received bytes as hex")
}

func labels(l []string) string {
	return strings.Join(l, ", ")
}

// apply overrides p with every flag that was set on fs.
func (f *lineFlags) apply(fs *pflag.FlagSet, p *config.Profile) error {
	c := &p.Line
	var ok bool

	if fs.Changed("baud") {
		c.BaudRate = f.baud
	}
	if fs.Changed("data") {
		c.ByteSize = f.dataBits
	}
	if fs.Changed("parity") {
		if c.Parity, ok = serial.ParityTable.Find(f.parity); !ok {
			return fmt.Errorf("invalid parity: %q (valid: %s)", f.parity, labels(serial.ParityTable.Labels()))
		}
	}
	if fs.Changed("stop") {
		if c.StopBits, ok = serial.StopBitsTable.Find(f.stopBits); !ok {
			return fmt.Errorf("invalid stop bits: %q (valid: %s)", f.stopBits, labels(serial.StopBitsTable.Labels()))
		}
	}
	// The preset goes first so --dtr and --rts can refine it.
	if fs.Changed("flow") {
		preset, err := serial.ParseFlowPreset(f.flow)
		if err != nil {
			return err
		}
		c.ApplyFlowPreset(preset)
	}
	if fs.Changed("dtr") {
		if c.DTRControl, ok = serial.DTRControlTable.Find(f.dtr); !ok {
			return fmt.Errorf("invalid DTR control: %q (valid: %s)", f.dtr, labels(serial.DTRControlTable.Labels()))
		}
	}
	if fs.Changed("rts") {
		if c.RTSControl, ok = serial.RTSControlTable.Find(f.rts); !ok {
			return fmt.Errorf("invalid RTS control: %q (valid: %s)", f.rts, labels(serial.RTSControlTable.Labels()))
		}
	}
	if fs.Changed("xon") {
		c.XonChar = serial.ParseHexByte(f.xon)
	}
	if fs.Changed("xoff") {
		c.XoffChar = serial.ParseHexByte(f.xoff)
	}
	if fs.Changed("events") {
		mask, err := serial.ParseEventMask(f.events)
		if err != nil {
			return err
		}
		c.EventMask = mask
	}
	if fs.Changed("flag-char") {
		c.EventFlagChar = serial.ParseHexByte(f.flagChar)
	}

	if fs.Changed("read-interval") {
		c.Timeouts.ReadInterval = f.readInterval
	}
	if fs.Changed("read-multiplier") {
		c.Timeouts.ReadTotalMultiplier = f.readMultiplier
	}
	if fs.Changed("read-constant") {
		c.Timeouts.ReadTotalConstant = f.readConstant
	}
	if fs.Changed("write-multiplier") {
		c.Timeouts.WriteTotalMultiplier = f.writeMultiplier
	}
	if fs.Changed("write-constant") {
		c.Timeouts.WriteTotalConstant = f.writeConstant
	}

	d := &p.Display
	if fs.Changed("columns") {
		d.Columns = f.columns
	}
	if fs.Changed("rows") {
		d.Rows = f.rows
	}
	if fs.Changed("no-wrap") {
		d.AutoWrap = !f.noWrap
	}
	if fs.Changed("newline") {
		d.NewlineMode = f.newline
	}
	if fs.Changed("echo") {
		d.LocalEcho = f.echo
	}
	if fs.Changed("hex") {
		d.DisplayAllHex = f.hexAll
	}
	if fs.Changed("hex-ctl") {
		d.DisplayNonPrintableHex = f.hexCtl
	}
	return nil
}

// settingsSummary renders the framing the way the status line does.
func settingsSummary(c serial.LineConfig) string {
	return fmt.Sprintf("%d %d-%c-%s", c.BaudRate, c.ByteSize, c.Parity, c.StopBits)
}

// flowSummary names the flow preset, or "custom" when the fields match none.
func flowSummary(c serial.LineConfig) string {
	if p, ok := c.MatchFlowPreset(); ok {
		return p.String()
	}
	return "custom"
}
