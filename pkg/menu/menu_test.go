package menu

import (
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("")
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	s.SetSize(80, 25)
	t.Cleanup(s.Fini)
	return s
}

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func row(s tcell.SimulationScreen, y int) string {
	cells, width, _ := s.GetContents()
	var b strings.Builder
	for x := 0; x < width; x++ {
		if r := cells[y*width+x].Runes; len(r) > 0 {
			b.WriteRune(r[0])
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func screenText(s tcell.SimulationScreen) string {
	_, _, height := s.GetContents()
	var b strings.Builder
	for y := 0; y < height; y++ {
		b.WriteString(row(s, y))
		b.WriteByte('\n')
	}
	return b.String()
}

func TestMenuNavigation(t *testing.T) {
	s := newScreen(t)
	var ran []string
	m := NewMenu("main", s)
	m.AddItem("First", "f", func() error {
		ran = append(ran, "first")
		return nil
	})
	m.AddSeparator()
	m.AddItem("Second", "s", func() error {
		ran = append(ran, "second")
		return nil
	})

	m.Show()
	if !m.IsVisible() || m.Selected() != 0 {
		t.Fatalf("after Show visible=%v selected=%d", m.IsVisible(), m.Selected())
	}

	m.HandleKey(key(tcell.KeyDown))
	if m.Selected() != 2 {
		t.Errorf("Down skipped to %d, want 2 past the separator", m.Selected())
	}
	m.HandleKey(key(tcell.KeyDown))
	if m.Selected() != 0 {
		t.Errorf("Down wrapped to %d, want 0", m.Selected())
	}
	m.HandleKey(key(tcell.KeyUp))
	if m.Selected() != 2 {
		t.Errorf("Up wrapped to %d, want 2", m.Selected())
	}

	m.HandleKey(key(tcell.KeyEnter))
	if len(ran) != 1 || ran[0] != "second" {
		t.Errorf("ran = %v, want [second]", ran)
	}
	if m.IsVisible() {
		t.Error("menu still visible after running an action")
	}
}

func TestMenuShortcutAndDisabled(t *testing.T) {
	s := newScreen(t)
	count := 0
	m := NewMenu("", s)
	m.AddItem("Go", "g", func() error {
		count++
		return nil
	})
	m.EnableItem(0, false)
	m.Show()

	if m.HandleKey(runeKey('q')) {
		t.Error("unknown shortcut reported as consumed")
	}
	m.HandleKey(runeKey('g'))
	if count != 0 {
		t.Error("disabled item ran")
	}

	m.EnableItem(0, true)
	m.HandleKey(runeKey('g'))
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestMenuToggleStaysOpen(t *testing.T) {
	s := newScreen(t)
	on := false
	m := NewMenu("opts", s)
	m.AddToggle("Echo", "e", func() bool { return on }, func() error {
		on = !on
		return nil
	})

	m.Show()
	s.Show()
	if !strings.Contains(screenText(s), "[ ] Echo") {
		t.Errorf("unchecked box not drawn:\n%s", screenText(s))
	}

	m.HandleKey(runeKey('e'))
	if !on || !m.IsVisible() {
		t.Fatalf("on=%v visible=%v after toggle", on, m.IsVisible())
	}
	m.Draw()
	s.Show()
	if !strings.Contains(screenText(s), "[x] Echo") {
		t.Errorf("checked box not drawn:\n%s", screenText(s))
	}
}

func TestMenuSubmenu(t *testing.T) {
	s := newScreen(t)
	closed := 0
	picked := ""

	root := NewMenu("root", s)
	sub := NewMenu("baud", s)
	sub.AddItem("9600", "", func() error {
		picked = "9600"
		return nil
	})
	root.AddSubmenu("Baud", sub)
	root.SetOnClose(func() { closed++ })

	root.Show()
	root.HandleKey(key(tcell.KeyRight))
	if !sub.IsVisible() {
		t.Fatal("Right did not open the submenu")
	}

	root.HandleKey(key(tcell.KeyLeft))
	if sub.IsVisible() || !root.IsVisible() {
		t.Fatalf("Left: sub visible=%v root visible=%v", sub.IsVisible(), root.IsVisible())
	}

	root.HandleKey(key(tcell.KeyEnter))
	root.HandleKey(key(tcell.KeyEnter))
	if picked != "9600" {
		t.Errorf("picked = %q", picked)
	}
	if root.IsVisible() || sub.IsVisible() {
		t.Error("menu chain still open after action")
	}
	if closed != 1 {
		t.Errorf("onClose called %d times, want 1", closed)
	}
}

func TestMenuEscapeAndErrors(t *testing.T) {
	s := newScreen(t)
	var got error
	m := NewMenu("m", s)
	m.SetOnError(func(err error) { got = err })
	m.AddItem("Fail", "x", func() error { return errors.New("no port") })

	m.Show()
	m.HandleKey(runeKey('x'))
	if got == nil || got.Error() != "no port" {
		t.Errorf("onError got %v", got)
	}

	m.Show()
	m.HandleKey(key(tcell.KeyEscape))
	if m.IsVisible() {
		t.Error("Escape did not hide the menu")
	}
	if m.HandleKey(key(tcell.KeyEnter)) {
		t.Error("hidden menu consumed a key")
	}
}

func TestOverlayRestores(t *testing.T) {
	s := newScreen(t)
	for i, r := range "hello" {
		s.SetContent(i, 12, r, nil, tcell.StyleDefault)
	}
	s.Show()

	om := NewOverlayManager(s)
	om.ShowText("help", []string{"F1 help", "F2 menu"})
	if !om.IsVisible() {
		t.Fatal("overlay not visible")
	}
	text := screenText(s)
	if !strings.Contains(text, "F1 help") || !strings.Contains(text, "help") {
		t.Errorf("overlay not drawn:\n%s", text)
	}

	om.RestoreScreen()
	if om.IsVisible() {
		t.Error("overlay still visible")
	}
	if got := row(s, 12); !strings.HasPrefix(got, "hello ") {
		t.Errorf("row 12 = %q, want the saved text", got)
	}
}
