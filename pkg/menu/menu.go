// Package menu draws keyboard driven pop-up menus over a tcell screen.
package menu

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

var (
	menuStyle     = tcell.StyleDefault.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorWhite)
	selectedStyle = tcell.StyleDefault.Background(tcell.ColorWhite).Foreground(tcell.ColorBlack)
	disabledStyle = tcell.StyleDefault.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorGray)
)

// Menu represents a menu system
type Menu struct {
	items    []MenuItem
	selected int
	visible  bool
	screen   tcell.Screen
	x, y     int
	width    int
	height   int
	parent   *Menu
	child    *Menu
	title    string

	onClose func()
	onError func(error)
}

// MenuItem represents a single menu item
type MenuItem struct {
	Label     string
	Shortcut  string
	Action    func() error
	Checked   func() bool
	Submenu   *Menu
	Enabled   bool
	Separator bool
}

// NewMenu creates a new menu
func NewMenu(title string, screen tcell.Screen) *Menu {
	m := &Menu{
		title:  title,
		screen: screen,
	}
	m.updateDimensions()
	return m
}

// AddItem adds a menu item
func (m *Menu) AddItem(label, shortcut string, action func() error) {
	m.items = append(m.items, MenuItem{
		Label:    label,
		Shortcut: shortcut,
		Action:   action,
		Enabled:  true,
	})
	m.updateDimensions()
}

// AddToggle adds an item drawn with a check box showing checked().
func (m *Menu) AddToggle(label, shortcut string, checked func() bool, action func() error) {
	m.items = append(m.items, MenuItem{
		Label:    label,
		Shortcut: shortcut,
		Action:   action,
		Checked:  checked,
		Enabled:  true,
	})
	m.updateDimensions()
}

// AddSeparator adds a separator line
func (m *Menu) AddSeparator() {
	m.items = append(m.items, MenuItem{Separator: true})
	m.updateDimensions()
}

// AddSubmenu adds a submenu item
func (m *Menu) AddSubmenu(label string, submenu *Menu) {
	submenu.parent = m
	m.items = append(m.items, MenuItem{
		Label:   label,
		Submenu: submenu,
		Enabled: true,
	})
	m.updateDimensions()
}

// Show displays the menu centred on the screen, or beside its parent.
func (m *Menu) Show() {
	m.visible = true
	m.child = nil
	m.selectFirst()
	if m.parent != nil {
		m.x = m.parent.x + 4
		m.y = m.parent.y + 2
	} else {
		screenWidth, screenHeight := m.screen.Size()
		m.x = max((screenWidth-m.width)/2, 0)
		m.y = max((screenHeight-m.height)/2, 0)
	}
	m.Draw()
}

// Hide hides the menu and any open submenu.
func (m *Menu) Hide() {
	if m.child != nil {
		m.child.Hide()
		m.child = nil
	}
	m.visible = false
	if m.onClose != nil {
		m.onClose()
	}
}

// IsVisible returns whether the menu is visible
func (m *Menu) IsVisible() bool {
	return m.visible
}

// Draw renders the menu and its open submenu. It does not call Show on the
// screen.
func (m *Menu) Draw() {
	if !m.visible {
		return
	}

	m.drawBorder()

	itemY := m.y + 1
	if m.title != "" {
		titleX := m.x + (m.width-runewidth.StringWidth(m.title))/2
		m.drawText(titleX, itemY, m.title, menuStyle.Bold(true))
		itemY++
		m.drawRule(itemY)
		itemY++
	}

	for i, item := range m.items {
		if item.Separator {
			m.drawRule(itemY)
			itemY++
			continue
		}

		itemStyle := menuStyle
		if !item.Enabled {
			itemStyle = disabledStyle
		} else if i == m.selected {
			itemStyle = selectedStyle
		}
		for x := m.x + 1; x < m.x+m.width-1; x++ {
			m.screen.SetContent(x, itemY, ' ', nil, itemStyle)
		}

		m.drawText(m.x+2, itemY, itemLabel(item), itemStyle)
		if item.Shortcut != "" && item.Submenu == nil {
			shortcutX := m.x + m.width - runewidth.StringWidth(item.Shortcut) - 2
			m.drawText(shortcutX, itemY, item.Shortcut, itemStyle)
		}
		itemY++
	}

	if m.child != nil {
		m.child.Draw()
	}
}

// HandleKey processes keyboard input. It reports whether the key was
// consumed.
func (m *Menu) HandleKey(ev *tcell.EventKey) bool {
	if !m.visible {
		return false
	}
	if m.child != nil {
		if m.child.visible {
			m.child.HandleKey(ev)
			if m.child != nil && !m.child.visible {
				m.child = nil
			}
			return true
		}
		m.child = nil
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		m.Hide()
		return true
	case tcell.KeyUp:
		m.moveSelection(-1)
		return true
	case tcell.KeyDown:
		m.moveSelection(1)
		return true
	case tcell.KeyEnter:
		m.activate(m.selected)
		return true
	case tcell.KeyRight:
		if m.selected >= 0 && m.selected < len(m.items) && m.items[m.selected].Submenu != nil {
			m.activate(m.selected)
		}
		return true
	case tcell.KeyLeft:
		if m.parent != nil {
			m.Hide()
		}
		return true
	case tcell.KeyRune:
		for i, item := range m.items {
			if item.Shortcut != "" && !item.Separator && item.Enabled && string(ev.Rune()) == item.Shortcut {
				m.selected = i
				m.activate(i)
				return true
			}
		}
	}

	return false
}

// moveSelection moves the selection up or down
func (m *Menu) moveSelection(direction int) {
	itemCount := len(m.items)
	if itemCount == 0 {
		return
	}
	newSelected := m.selected
	for range itemCount {
		newSelected = (newSelected + direction + itemCount) % itemCount
		if !m.items[newSelected].Separator && m.items[newSelected].Enabled {
			m.selected = newSelected
			return
		}
	}
}

func (m *Menu) selectFirst() {
	for i, item := range m.items {
		if !item.Separator && item.Enabled {
			m.selected = i
			return
		}
	}
}

// activate opens a submenu or runs an action and closes the whole menu
// chain. Toggles leave the menu open so several can be flipped.
func (m *Menu) activate(index int) {
	if index < 0 || index >= len(m.items) {
		return
	}
	item := m.items[index]
	if !item.Enabled || item.Separator {
		return
	}

	if item.Submenu != nil {
		m.child = item.Submenu
		m.child.Show()
		return
	}
	if item.Action == nil {
		return
	}

	if err := item.Action(); err != nil {
		m.root().reportError(err)
	}
	if item.Checked == nil {
		m.root().Hide()
	}
}

func (m *Menu) root() *Menu {
	r := m
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (m *Menu) reportError(err error) {
	if m.onError != nil {
		m.onError(err)
	}
}

func itemLabel(item MenuItem) string {
	label := item.Label
	if item.Checked != nil {
		box := "[ ] "
		if item.Checked() {
			box = "[x] "
		}
		label = box + label
	}
	if item.Submenu != nil {
		label += " >"
	}
	return label
}

// drawBorder draws the menu border and fills the background
func (m *Menu) drawBorder() {
	right, bottom := m.x+m.width-1, m.y+m.height-1

	m.screen.SetContent(m.x, m.y, '┌', nil, menuStyle)
	m.screen.SetContent(right, m.y, '┐', nil, menuStyle)
	m.screen.SetContent(m.x, bottom, '└', nil, menuStyle)
	m.screen.SetContent(right, bottom, '┘', nil, menuStyle)
	for x := m.x + 1; x < right; x++ {
		m.screen.SetContent(x, m.y, '─', nil, menuStyle)
		m.screen.SetContent(x, bottom, '─', nil, menuStyle)
	}
	for y := m.y + 1; y < bottom; y++ {
		m.screen.SetContent(m.x, y, '│', nil, menuStyle)
		m.screen.SetContent(right, y, '│', nil, menuStyle)
		for x := m.x + 1; x < right; x++ {
			m.screen.SetContent(x, y, ' ', nil, menuStyle)
		}
	}
}

func (m *Menu) drawRule(y int) {
	for x := m.x + 1; x < m.x+m.width-1; x++ {
		m.screen.SetContent(x, y, '─', nil, menuStyle)
	}
}

// drawText draws text at the specified position
func (m *Menu) drawText(x, y int, text string, style tcell.Style) {
	drawText(m.screen, x, y, text, style)
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, ch := range text {
		screen.SetContent(x, y, ch, nil, style)
		x += runewidth.RuneWidth(ch)
	}
}

// updateDimensions updates menu dimensions based on items
func (m *Menu) updateDimensions() {
	maxWidth := runewidth.StringWidth(m.title) + 4
	for _, item := range m.items {
		if item.Separator {
			continue
		}
		width := runewidth.StringWidth(itemLabel(item)) + runewidth.StringWidth(item.Shortcut) + 6
		if width > maxWidth {
			maxWidth = width
		}
	}

	m.width = maxWidth
	m.height = len(m.items) + 2
	if m.title != "" {
		m.height += 2
	}
}

// SetOnClose sets the callback for when menu closes
func (m *Menu) SetOnClose(callback func()) {
	m.onClose = callback
}

// SetOnError sets the callback for failed actions
func (m *Menu) SetOnError(callback func(error)) {
	m.onError = callback
}

// EnableItem enables or disables a menu item
func (m *Menu) EnableItem(index int, enabled bool) {
	if index >= 0 && index < len(m.items) {
		m.items[index].Enabled = enabled
	}
}

// Selected returns the index of the highlighted item.
func (m *Menu) Selected() int {
	return m.selected
}
