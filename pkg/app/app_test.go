package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"comterm/pkg/macro"
	"comterm/pkg/serial"
)

func newTestApp(t *testing.T, dev *fakeDevice, opts Options) (*Application, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen.Init() error = %v", err)
	}
	screen.SetSize(80, 26)
	t.Cleanup(screen.Fini)

	if opts.Profile.Port == "" {
		opts.Profile = testProfile()
	}
	opts.Logger = zerolog.Nop()

	var device Device
	if dev != nil {
		device = dev
	}
	return NewApplication(screen, device, opts), screen
}

func key(k tcell.Key, r rune) *tcell.EventKey {
	return tcell.NewEventKey(k, r, tcell.ModNone)
}

func pressKeys(t *testing.T, a *Application, keys ...*tcell.EventKey) {
	t.Helper()
	for _, k := range keys {
		if err := a.handleKey(k); err != nil {
			t.Fatalf("handleKey(%v) error = %v", k.Name(), err)
		}
	}
}

func screenRow(s tcell.SimulationScreen, y int) string {
	cells, w, _ := s.GetContents()
	var b strings.Builder
	for x := 0; x < w; x++ {
		c := cells[y*w+x]
		if len(c.Runes) == 0 {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return b.String()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleKeySendsBytes(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		want string
	}{
		{"letter", key(tcell.KeyRune, 'A'), "A"},
		{"enter", key(tcell.KeyEnter, 0), "\r"},
		{"tab", key(tcell.KeyTab, 0), "\t"},
		{"backspace", key(tcell.KeyBackspace, 0), "\x08"},
		{"delete", key(tcell.KeyBackspace2, 0), "\x7f"},
		{"escape", key(tcell.KeyEscape, 0), "\x1b"},
		{"ctrl-c", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), "\x03"},
		{"latin-1", key(tcell.KeyRune, 'é'), "\xe9"},
		{"euro", key(tcell.KeyRune, '€'), "\x80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			a, _ := newTestApp(t, dev, Options{})
			pressKeys(t, a, tt.ev)
			if dev.Written() != tt.want {
				t.Errorf("written = %q, want %q", dev.Written(), tt.want)
			}
		})
	}
}

func TestHandleKeyUnencodableRune(t *testing.T) {
	dev := newFakeDevice()
	a, _ := newTestApp(t, dev, Options{})

	pressKeys(t, a, key(tcell.KeyRune, '中'))
	if dev.Written() != "" {
		t.Errorf("written = %q, want nothing", dev.Written())
	}
	if !strings.Contains(a.message, "cannot send") {
		t.Errorf("message = %q", a.message)
	}
}

func TestHandleKeyDisconnected(t *testing.T) {
	a, _ := newTestApp(t, nil, Options{})

	err := a.handleKey(key(tcell.KeyRune, 'a'))
	if Classify(err) != ErrorAnomaly {
		t.Errorf("handleKey() = %v, want an anomaly", err)
	}
}

func TestFunctionKeysSendMacros(t *testing.T) {
	dev := newFakeDevice()
	bank := macro.NewBank()
	if err := bank.Set(0, "first", false); err != nil {
		t.Fatal(err)
	}
	if err := bank.Set(9, "0D0A", true); err != nil {
		t.Fatal(err)
	}
	a, _ := newTestApp(t, dev, Options{Macros: bank})

	pressKeys(t, a, key(tcell.KeyF3, 0), key(tcell.KeyF4, 0), key(tcell.KeyF12, 0))
	if dev.Written() != "first\r\n" {
		t.Errorf("written = %q, want first\\r\\n", dev.Written())
	}
}

func TestCtrlQQuits(t *testing.T) {
	dev := newFakeDevice()
	a, _ := newTestApp(t, dev, Options{})
	quit := false
	a.cancel = func() { quit = true }

	pressKeys(t, a, tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl))
	if !quit {
		t.Error("Ctrl+Q did not quit")
	}
	if dev.Written() != "" {
		t.Errorf("Ctrl+Q sent %q", dev.Written())
	}
}

func TestHelpOverlay(t *testing.T) {
	dev := newFakeDevice()
	a, screen := newTestApp(t, dev, Options{})

	pressKeys(t, a, key(tcell.KeyF1, 0))
	found := false
	for y := 0; y < 26; y++ {
		if strings.Contains(screenRow(screen, y), "send macro 0-9") {
			found = true
		}
	}
	if !found {
		t.Error("help text not on screen")
	}

	pressKeys(t, a, key(tcell.KeyRune, 'z'))
	if a.overlay.IsVisible() {
		t.Error("any key should close the help")
	}
	if dev.Written() != "" {
		t.Errorf("key that closed the help was sent: %q", dev.Written())
	}
}

func TestDrawShowsGridAndStatus(t *testing.T) {
	a, screen := newTestApp(t, newFakeDevice(), Options{})

	if err := a.session.Receive([]byte("hello\r\nworld")); err != nil {
		t.Fatal(err)
	}
	a.draw()

	if got := screenRow(screen, 0); !strings.HasPrefix(got, "hello ") {
		t.Errorf("row 0 = %q", got)
	}
	if got := screenRow(screen, 1); !strings.HasPrefix(got, "world ") {
		t.Errorf("row 1 = %q", got)
	}
	if got := screenRow(screen, 25); !strings.HasPrefix(got, " COM9 9600 8-N-1 online") {
		t.Errorf("status = %q", got)
	}
}

func TestMenuClearScreen(t *testing.T) {
	dev := newFakeDevice()
	a, _ := newTestApp(t, dev, Options{})
	if err := a.session.Receive([]byte("junk")); err != nil {
		t.Fatal(err)
	}

	pressKeys(t, a, key(tcell.KeyF2, 0))
	if !a.menu.IsVisible() {
		t.Fatal("F2 should open the menu")
	}
	pressKeys(t, a, key(tcell.KeyRune, 'c'))

	if a.menu.IsVisible() {
		t.Error("menu should close after an action")
	}
	if strings.TrimSpace(a.session.Grid().String()) != "" {
		t.Error("grid not cleared")
	}
	if dev.Written() != "" {
		t.Errorf("menu keys were sent: %q", dev.Written())
	}
}

func TestMenuDisplayToggle(t *testing.T) {
	a, _ := newTestApp(t, newFakeDevice(), Options{})

	pressKeys(t, a,
		key(tcell.KeyF2, 0),
		key(tcell.KeyEnter, 0),
		key(tcell.KeyRune, 'e'),
	)
	if !a.session.Display().LocalEcho {
		t.Error("local echo not toggled")
	}
	if !a.menu.IsVisible() {
		t.Error("toggles should leave the menu open")
	}

	pressKeys(t, a, key(tcell.KeyEscape, 0), key(tcell.KeyEscape, 0))
	if a.menu.IsVisible() {
		t.Error("two escapes should close the menu")
	}
	if !strings.Contains(StatusLine(a.session, ""), "[echo]") {
		t.Errorf("status = %q, want echo flag", StatusLine(a.session, ""))
	}
}

func TestMenuBaudRate(t *testing.T) {
	dev := newFakeDevice()
	a, _ := newTestApp(t, dev, Options{})

	pressKeys(t, a,
		key(tcell.KeyF2, 0),
		key(tcell.KeyDown, 0),
		key(tcell.KeyEnter, 0),
		key(tcell.KeyEnter, 0),
	)
	if got := a.session.Line().BaudRate; got != serial.BaudTable[0].Value {
		t.Errorf("BaudRate = %d, want %d", got, serial.BaudTable[0].Value)
	}
	if dev.wire == nil || dev.wire.BaudRate != serial.BaudTable[0].Value {
		t.Errorf("wire = %+v", dev.wire)
	}
	if !strings.HasPrefix(a.message, "line set to") {
		t.Errorf("message = %q", a.message)
	}
}

func TestMenuCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.bin")
	a, _ := newTestApp(t, newFakeDevice(), Options{})
	a.opts.CapturePath = path

	pressKeys(t, a, key(tcell.KeyF2, 0), key(tcell.KeyRune, 's'))
	if !a.session.Capturing() {
		t.Fatal("capture not started")
	}
	if !strings.Contains(StatusLine(a.session, ""), "capture "+path) {
		t.Errorf("status = %q", StatusLine(a.session, ""))
	}

	pressKeys(t, a, key(tcell.KeyRune, 's'))
	if a.session.Capturing() {
		t.Error("capture not stopped")
	}
	if !strings.HasPrefix(a.message, "captured 0 B") {
		t.Errorf("message = %q", a.message)
	}
}

func TestStatusLine(t *testing.T) {
	s := newTestSession(t, nil)
	if got := StatusLine(s, "hi"); got != " COM9 9600 8-N-1 offline | hi" {
		t.Errorf("StatusLine() = %q", got)
	}

	cfg := s.Line()
	cfg.ApplyFlowPreset(serial.FlowRTSCTS)
	cfg.Parity = serial.ParityEven
	cfg.StopBits = serial.StopBits2
	if _, err := s.ApplyLine(cfg); err != nil {
		t.Fatal(err)
	}
	d := s.Display()
	d.DisplayAllHex = true
	d.AutoWrap = false
	s.SetDisplay(d)

	want := " COM9 9600 8-E-2 offline flow:rtscts [nowrap,hex]"
	if got := StatusLine(s, ""); got != want {
		t.Errorf("StatusLine() = %q, want %q", got, want)
	}
}

func TestDefaultCaptureName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	if got := DefaultCaptureName(ts); got != "capture-20240309-140506.bin" {
		t.Errorf("DefaultCaptureName() = %q", got)
	}
}

func TestApplicationRun(t *testing.T) {
	dev := newFakeDevice()
	dev.modem = serial.ModemStatus{CTS: true}
	a, screen := newTestApp(t, dev, Options{ModemPoll: 10 * time.Millisecond})
	dev.incoming <- []byte("hello")
	defer close(dev.incoming)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	lineStarts := func(prefix string) func() bool {
		return func() bool {
			var line string
			query(t, ctx, a.Loop(), func(s *Session) { line = string(s.Grid().Line(0)) })
			return strings.HasPrefix(line, prefix)
		}
	}
	waitFor(t, "received data", lineStarts("hello"))
	waitFor(t, "modem event", func() bool {
		var msg string
		query(t, ctx, a.Loop(), func(*Session) { msg = a.message })
		return msg == "modem: CTS"
	})

	screen.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	waitFor(t, "key sent", func() bool { return dev.Written() == "x" })

	screen.InjectKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Ctrl+Q")
	}
	if a.Session().EndTime == nil {
		t.Error("session not ended")
	}
}
