package menu

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// OverlayManager saves the screen under a temporary overlay so it can be put
// back when the overlay closes.
type OverlayManager struct {
	screen       tcell.Screen
	savedContent [][]SavedCell
	visible      bool
}

// SavedCell represents a saved screen cell
type SavedCell struct {
	Char  rune
	Style tcell.Style
}

// NewOverlayManager creates a new overlay manager
func NewOverlayManager(screen tcell.Screen) *OverlayManager {
	return &OverlayManager{screen: screen}
}

// SaveScreen saves the current screen content
func (om *OverlayManager) SaveScreen() {
	width, height := om.screen.Size()
	om.savedContent = make([][]SavedCell, height)
	for y := 0; y < height; y++ {
		om.savedContent[y] = make([]SavedCell, width)
		for x := 0; x < width; x++ {
			mainc, _, style, _ := om.screen.GetContent(x, y)
			om.savedContent[y][x] = SavedCell{Char: mainc, Style: style}
		}
	}
}

// RestoreScreen restores the saved screen content
func (om *OverlayManager) RestoreScreen() {
	for y := range om.savedContent {
		for x, cell := range om.savedContent[y] {
			om.screen.SetContent(x, y, cell.Char, nil, cell.Style)
		}
	}
	om.savedContent = nil
	om.visible = false
	om.screen.Show()
}

// ShowText saves the screen and draws lines in a centred box.
func (om *OverlayManager) ShowText(title string, lines []string) {
	om.SaveScreen()
	om.visible = true

	width := runewidth.StringWidth(title)
	for _, line := range lines {
		width = max(width, runewidth.StringWidth(line))
	}
	width += 4
	height := len(lines) + 4

	screenWidth, screenHeight := om.screen.Size()
	x0 := max((screenWidth-width)/2, 0)
	y0 := max((screenHeight-height)/2, 0)

	box := NewMenu(title, om.screen)
	box.x, box.y, box.width, box.height = x0, y0, width, height
	box.visible = true
	box.Draw()
	for i, line := range lines {
		drawText(om.screen, x0+2, y0+3+i, line, menuStyle)
	}
	om.screen.Show()
}

// IsVisible reports whether ShowText is on screen.
func (om *OverlayManager) IsVisible() bool {
	return om.visible
}
