package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"

	"comterm/pkg/capture"
	"comterm/pkg/config"
	"comterm/pkg/macro"
	"comterm/pkg/menu"
	"comterm/pkg/serial"
	"comterm/pkg/terminal"
)

// DefaultModemPoll is how often the modem lines are sampled.
const DefaultModemPoll = 250 * time.Millisecond

// Device is an open port the application reads from and samples.
type Device interface {
	Port
	io.Reader
	ModemStatus() (serial.ModemStatus, error)
}

// Options configures an Application.
type Options struct {
	Profile     config.Profile
	ProfileName string
	Macros      *macro.Bank
	CapturePath string
	ModemPoll   time.Duration
	Logger      zerolog.Logger
}

// Application is the interactive front end: it draws the session on a tcell
// screen and turns key presses into commands.
type Application struct {
	screen   tcell.Screen
	device   Device
	session  *Session
	loop     *Loop
	renderer *terminal.Renderer
	menu     *menu.Menu
	overlay  *menu.OverlayManager

	opts    Options
	message string
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

// NewApplication builds an application on an initialised screen. A nil
// device starts the session disconnected.
func NewApplication(screen tcell.Screen, device Device, opts Options) *Application {
	if opts.ModemPoll <= 0 {
		opts.ModemPoll = DefaultModemPoll
	}

	var port Port
	if device != nil {
		port = device
	}
	session := NewSession(opts.Profile, port, opts.Macros, opts.Logger)

	app := &Application{
		screen:  screen,
		device:  device,
		session: session,
		loop:    NewLoop(session, opts.Logger),
		overlay: menu.NewOverlayManager(screen),
		opts:    opts,
		cancel:  func() {},
		logger:  opts.Logger.With().Str("component", "app").Logger(),
	}
	app.renderer = terminal.NewRenderer(screen, session.Grid(), 0, 0)
	session.Grid().SetBellHook(app.renderer.Bell)
	app.menu = app.buildMenu()

	app.loop.SetReporter(app.setError)
	app.loop.SetAfter(app.draw)
	return app
}

// Session returns the session. It is only safe to use once Run has
// returned.
func (a *Application) Session() *Session {
	return a.session
}

// Loop returns the event loop so callers can push settings changes.
func (a *Application) Loop() *Loop {
	return a.loop
}

// Run drives the session until ctx is done or the user quits.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.cancel = cancel

	if a.opts.CapturePath != "" {
		if err := a.session.StartCapture(a.opts.CapturePath); err != nil {
			return err
		}
		a.message = "capturing to " + a.opts.CapturePath
	}

	a.screen.Clear()
	a.renderer.Redraw()
	a.draw()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.pollEvents(ctx)
	}()

	if a.device != nil {
		// Pump returns once the device is closed, which happens after Run.
		go func() {
			if err := a.loop.Pump(ctx, a.device, serial.ReadBufferSize); err != nil {
				_ = a.loop.Submit(ctx, Disconnect(err))
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.pollModem(ctx)
		}()
	}

	err := a.loop.Run(ctx)
	cancel()
	_ = a.screen.PostEvent(tcell.NewEventInterrupt(nil))
	wg.Wait()

	a.session.End()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (a *Application) pollEvents(ctx context.Context) {
	for {
		ev := a.screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return
		}
		if err := a.loop.Submit(ctx, func(*Session) error { return a.handleEvent(ev) }); err != nil {
			return
		}
	}
}

func (a *Application) pollModem(ctx context.Context) {
	ticker := time.NewTicker(a.opts.ModemPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.loop.Submit(ctx, a.sampleModem); err != nil {
				return
			}
		}
	}
}

func (a *Application) sampleModem(s *Session) error {
	if !s.Connected() {
		return nil
	}
	status, err := a.device.ModemStatus()
	if err != nil {
		a.logger.Debug().Err(err).Msg("modem status unavailable")
		return nil
	}
	if ev := s.UpdateModem(status); ev != 0 {
		a.message = "modem: " + ev.String()
	}
	return nil
}

func (a *Application) handleEvent(ev tcell.Event) error {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
		a.renderer.Redraw()
	case *tcell.EventKey:
		return a.handleKey(ev)
	}
	return nil
}

// handleKey maps a key press to an action. Keys below 128 are sent as the
// byte they encode, so Enter sends CR and Ctrl+letter sends the control
// code.
func (a *Application) handleKey(ev *tcell.EventKey) error {
	if a.overlay.IsVisible() {
		a.overlay.RestoreScreen()
		return nil
	}
	if a.menu.IsVisible() {
		a.menu.HandleKey(ev)
		return nil
	}

	a.logger.Debug().Int("key", int(ev.Key())).Int("rune", int(ev.Rune())).Msg("key")

	switch key := ev.Key(); {
	case key == tcell.KeyCtrlQ:
		a.cancel()
		return nil
	case key == tcell.KeyF1:
		a.showHelp()
		return nil
	case key == tcell.KeyF2:
		a.menu.Show()
		return nil
	case key >= tcell.KeyF3 && key <= tcell.KeyF12:
		return a.session.SendMacro(int(key - tcell.KeyF3))
	case key == tcell.KeyRune:
		b, ok := charmap.Windows1252.EncodeRune(ev.Rune())
		if !ok {
			a.message = fmt.Sprintf("cannot send %q", ev.Rune())
			return nil
		}
		return a.session.SendText([]byte{b})
	case key < 128:
		return a.session.SendText([]byte{byte(key)})
	}
	return nil
}

func (a *Application) showHelp() {
	lines := []string{
		"F1        this help",
		"F2        menu",
		"F3-F12    send macro 0-9",
		"Ctrl+Q    quit",
		"",
	}
	lines = append(lines, strings.Split(macro.HelpText, "\n")...)
	lines = append(lines, "", "Press any key to close")
	a.overlay.ShowText("comterm", lines)
}

// draw runs on the loop goroutine after every event.
func (a *Application) draw() {
	if a.overlay.IsVisible() {
		return
	}
	if a.menu.IsVisible() {
		a.renderer.Redraw()
	} else {
		a.renderer.Flush()
	}
	a.drawStatus()
	a.menu.Draw()
	a.screen.Show()
}

func (a *Application) drawStatus() {
	_, rows := a.session.Grid().Size()
	width, height := a.screen.Size()
	if rows >= height {
		return
	}

	style := tcell.StyleDefault.Reverse(true)
	text := []rune(StatusLine(a.session, a.message))
	for x := 0; x < width; x++ {
		c := ' '
		if x < len(text) {
			c = text[x]
		}
		a.screen.SetContent(x, rows, c, nil, style)
	}
}

// StatusLine summarises the connection for the line under the grid.
func StatusLine(s *Session, message string) string {
	line := s.Line()
	state := "offline"
	if s.Connected() {
		state = "online"
	}

	var b strings.Builder
	fmt.Fprintf(&b, " %s %d %d-%c-%s %s", s.PortName, line.BaudRate, line.ByteSize, line.Parity, line.StopBits, state)
	if preset, ok := line.MatchFlowPreset(); ok && preset != serial.FlowNone {
		fmt.Fprintf(&b, " flow:%s", preset)
	}

	d := s.Display()
	var flags []string
	if d.LocalEcho {
		flags = append(flags, "echo")
	}
	if d.NewlineMode {
		flags = append(flags, "nl")
	}
	if !d.AutoWrap {
		flags = append(flags, "nowrap")
	}
	if d.DisplayAllHex {
		flags = append(flags, "hex")
	} else if d.DisplayNonPrintableHex {
		flags = append(flags, "hexctl")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(flags, ","))
	}

	if st := s.Stats().Capture; st != nil {
		fmt.Fprintf(&b, " | capture %s %s", st.Path, capture.FormatBytes(st.Bytes))
	}
	if message != "" {
		fmt.Fprintf(&b, " | %s", message)
	}
	return b.String()
}

func (a *Application) setError(err error) {
	a.message = err.Error()
}

func (a *Application) menuError(err error) {
	a.logger.Error().Err(err).Stringer("kind", Classify(err)).Msg("menu action failed")
	a.setError(err)
}
