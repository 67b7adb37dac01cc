package terminal

import (
	"iter"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/encoding/charmap"
)

// Renderer draws a Grid onto part of a tcell screen.
type Renderer struct {
	screen tcell.Screen
	grid   *Grid
	x, y   int
	style  tcell.Style
}

// NewRenderer draws grid with its top-left corner at screen cell x, y.
func NewRenderer(screen tcell.Screen, grid *Grid, x, y int) *Renderer {
	return &Renderer{
		screen: screen,
		grid:   grid,
		x:      x,
		y:      y,
		style:  tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite),
	}
}

// Draw repaints the given regions and moves the cursor. It does not call
// Show.
func (r *Renderer) Draw(regions iter.Seq[Rect]) {
	cols, rows := r.grid.Size()
	for rect := range regions {
		if rect.IsWholeGrid() {
			rect = Rect{Width: cols, Height: rows}
		}
		for row := rect.Y; row < rect.Y+rect.Height && row < rows; row++ {
			for col := rect.X; col < rect.X+rect.Width && col < cols; col++ {
				r.screen.SetContent(r.x+col, r.y+row, Glyph(r.grid.Cell(col, row)), nil, r.style)
			}
		}
	}
	col, row := r.grid.Cursor()
	r.screen.ShowCursor(r.x+col, r.y+row)
}

// Flush draws whatever the grid has pending.
func (r *Renderer) Flush() {
	r.Draw(r.grid.Damage())
}

// Redraw repaints the whole grid.
func (r *Renderer) Redraw() {
	r.Draw(func(yield func(Rect) bool) { yield(WholeGrid) })
}

// Bell rings the terminal bell.
func (r *Renderer) Bell() {
	r.screen.Beep()
}

// Glyph returns the rune shown for a received byte. Bytes are read as
// Windows-1252; control codes, undefined code points and anything without
// a visible width are shown as '.'.
func Glyph(b byte) rune {
	if b < 0x20 || b == 0x7f {
		return '.'
	}
	c := charmap.Windows1252.DecodeByte(b)
	if c == utf8.RuneError || runewidth.RuneWidth(c) != 1 {
		return '.'
	}
	return c
}
