package app

import (
	"fmt"
	"time"

	"comterm/pkg/capture"
	"comterm/pkg/config"
	"comterm/pkg/menu"
	"comterm/pkg/serial"
)

// buildMenu creates the F2 menu. Its actions run on the loop goroutine
// because key events are delivered as commands.
func (a *Application) buildMenu() *menu.Menu {
	root := menu.NewMenu("comterm", a.screen)
	root.SetOnError(a.menuError)
	root.SetOnClose(a.renderer.Redraw)

	display := menu.NewMenu("Display", a.screen)
	a.addDisplayToggle(display, "Auto wrap", "w",
		func(d config.DisplaySettings) bool { return d.AutoWrap },
		func(d *config.DisplaySettings) { d.AutoWrap = !d.AutoWrap })
	a.addDisplayToggle(display, "Newline mode", "n",
		func(d config.DisplaySettings) bool { return d.NewlineMode },
		func(d *config.DisplaySettings) { d.NewlineMode = !d.NewlineMode })
	a.addDisplayToggle(display, "Local echo", "e",
		func(d config.DisplaySettings) bool { return d.LocalEcho },
		func(d *config.DisplaySettings) { d.LocalEcho = !d.LocalEcho })
	a.addDisplayToggle(display, "Hex, all bytes", "h",
		func(d config.DisplaySettings) bool { return d.DisplayAllHex },
		func(d *config.DisplaySettings) { d.DisplayAllHex = !d.DisplayAllHex })
	a.addDisplayToggle(display, "Hex, non-printable", "x",
		func(d config.DisplaySettings) bool { return d.DisplayNonPrintableHex },
		func(d *config.DisplaySettings) { d.DisplayNonPrintableHex = !d.DisplayNonPrintableHex })
	root.AddSubmenu("Display", display)

	baud := menu.NewMenu("Baud rate", a.screen)
	for _, e := range serial.BaudTable {
		rate := e.Value
		baud.AddToggle(e.Label, "",
			func() bool { return a.session.Line().BaudRate == rate },
			a.editLine(func(c *serial.LineConfig) { c.BaudRate = rate }))
	}
	root.AddSubmenu("Baud rate", baud)

	parity := menu.NewMenu("Parity", a.screen)
	for _, e := range serial.ParityTable {
		p := e.Value
		parity.AddToggle(e.Label, "",
			func() bool { return a.session.Line().Parity == p },
			a.editLine(func(c *serial.LineConfig) { c.Parity = p }))
	}
	root.AddSubmenu("Parity", parity)

	stop := menu.NewMenu("Stop bits", a.screen)
	for _, e := range serial.StopBitsTable {
		sb := e.Value
		stop.AddToggle(e.Label, "",
			func() bool { return a.session.Line().StopBits == sb },
			a.editLine(func(c *serial.LineConfig) { c.StopBits = sb }))
	}
	root.AddSubmenu("Stop bits", stop)

	flow := menu.NewMenu("Flow control", a.screen)
	for _, e := range serial.FlowPresetTable {
		preset := e.Value
		flow.AddToggle(e.Label, "",
			func() bool {
				p, ok := a.session.Line().MatchFlowPreset()
				return ok && p == preset
			},
			a.editLine(func(c *serial.LineConfig) { c.ApplyFlowPreset(preset) }))
	}
	root.AddSubmenu("Flow control", flow)

	root.AddSeparator()
	root.AddToggle("Capture", "s", a.session.Capturing, a.toggleCapture)
	root.AddItem("Clear screen", "c", func() error {
		a.session.Clear()
		return nil
	})
	root.AddItem("Purge port", "p", a.session.Purge)
	root.AddSeparator()
	root.AddItem("Quit", "q", func() error {
		a.cancel()
		return nil
	})
	return root
}

func (a *Application) addDisplayToggle(m *menu.Menu, label, shortcut string,
	get func(config.DisplaySettings) bool, flip func(*config.DisplaySettings)) {
	m.AddToggle(label, shortcut,
		func() bool { return get(a.session.Display()) },
		func() error {
			d := a.session.Display()
			flip(&d)
			a.session.SetDisplay(d)
			a.renderer.Redraw()
			return nil
		})
}

// editLine returns a menu action that applies edit to a copy of the line
// settings and pushes the result to the port.
func (a *Application) editLine(edit func(*serial.LineConfig)) func() error {
	return func() error {
		cfg := a.session.Line()
		edit(&cfg)
		changed, err := a.session.ApplyLine(cfg)
		if err != nil {
			return err
		}
		if changed {
			a.message = fmt.Sprintf("line set to %d %d-%c-%s", cfg.BaudRate, cfg.ByteSize, cfg.Parity, cfg.StopBits)
		}
		return nil
	}
}

func (a *Application) toggleCapture() error {
	if a.session.Capturing() {
		stats, err := a.session.StopCapture()
		a.message = fmt.Sprintf("captured %s to %s", capture.FormatBytes(stats.Bytes), stats.Path)
		return err
	}
	path := a.opts.CapturePath
	if path == "" {
		path = DefaultCaptureName(time.Now())
	}
	if err := a.session.StartCapture(path); err != nil {
		return err
	}
	a.message = "capturing to " + path
	return nil
}

// DefaultCaptureName names a capture file after its start time.
func DefaultCaptureName(t time.Time) string {
	return "capture-" + t.Format("20060102-150405") + ".bin"
}
