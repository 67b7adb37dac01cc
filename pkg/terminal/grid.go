// Package terminal holds the fixed character grid that received bytes are
// written to and the renderer that puts it on a tcell screen.
package terminal

import (
	"iter"
	"strings"
)

const (
	DefaultColumns = 80
	DefaultRows    = 25

	bell      = 0x07
	backspace = 0x08
	blank     = ' '
)

// Rect is a damaged region in cell coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// WholeGrid marks the entire grid as damaged.
var WholeGrid = Rect{Width: -1, Height: -1}

// IsWholeGrid reports whether r is the WholeGrid sentinel.
func (r Rect) IsWholeGrid() bool {
	return r == WholeGrid
}

// Grid is a scrolling character grid driven one byte at a time. Only BEL,
// BS, CR and LF are interpreted; every other byte is stored as is.
type Grid struct {
	cols, rows  int
	cells       []byte
	col, row    int
	autoWrap    bool
	newlineMode bool

	pending []Rect
	whole   bool

	onDamage func(Rect)
	onBell   func()
	onCursor func(col, row int)
}

// NewGrid creates a blank grid. Non-positive sizes fall back to 80x25.
func NewGrid(cols, rows int) *Grid {
	if cols <= 0 {
		cols = DefaultColumns
	}
	if rows <= 0 {
		rows = DefaultRows
	}
	g := &Grid{
		cols:     cols,
		rows:     rows,
		cells:    make([]byte, cols*rows),
		autoWrap: true,
	}
	g.blank(0, len(g.cells))
	return g
}

// PutChar writes one received byte.
func (g *Grid) PutChar(c byte) {
	switch c {
	case bell:
		if g.onBell != nil {
			g.onBell()
		}
	case backspace:
		if g.col > 0 {
			g.col--
		}
	case '\r':
		g.carriageReturn()
	case '\n':
		g.lineFeed()
	default:
		g.cells[g.row*g.cols+g.col] = c
		g.damage(Rect{X: g.col, Y: g.row, Width: 1, Height: 1})
		switch {
		case g.col < g.cols-1:
			g.col++
		case g.autoWrap:
			g.carriageReturn()
			if !g.newlineMode {
				g.lineFeed()
			}
		}
	}

	if g.onCursor != nil {
		g.onCursor(g.col, g.row)
	}
}

// Write feeds p through PutChar.
func (g *Grid) Write(p []byte) (int, error) {
	for _, c := range p {
		g.PutChar(c)
	}
	return len(p), nil
}

// Clear blanks the grid and homes the cursor.
func (g *Grid) Clear() {
	g.blank(0, len(g.cells))
	g.col, g.row = 0, 0
	g.damage(WholeGrid)
	if g.onCursor != nil {
		g.onCursor(g.col, g.row)
	}
}

// carriageReturn homes the column. In newline mode CR also starts a new row.
func (g *Grid) carriageReturn() {
	g.col = 0
	if g.newlineMode {
		g.lineFeed()
	}
}

func (g *Grid) lineFeed() {
	if g.row < g.rows-1 {
		g.row++
		return
	}
	copy(g.cells, g.cells[g.cols:])
	g.blank((g.rows-1)*g.cols, len(g.cells))
	g.damage(WholeGrid)
}

func (g *Grid) blank(from, to int) {
	for i := from; i < to; i++ {
		g.cells[i] = blank
	}
}

func (g *Grid) damage(r Rect) {
	if g.onDamage != nil {
		g.onDamage(r)
	}
	switch {
	case g.whole:
	case r.IsWholeGrid():
		g.whole = true
		g.pending = g.pending[:0]
	default:
		if n := len(g.pending); n > 0 {
			last := &g.pending[n-1]
			if last.Y == r.Y && last.Height == 1 && r.Height == 1 && last.X+last.Width == r.X {
				last.Width += r.Width
				return
			}
		}
		g.pending = append(g.pending, r)
	}
}

// Damage yields the regions damaged since the last call and forgets them.
// When the whole grid is damaged only WholeGrid is yielded. Regions not
// consumed before the caller stops iterating are dropped.
func (g *Grid) Damage() iter.Seq[Rect] {
	whole, pending := g.whole, g.pending
	g.whole, g.pending = false, nil
	return func(yield func(Rect) bool) {
		if whole {
			yield(WholeGrid)
			return
		}
		for _, r := range pending {
			if !yield(r) {
				return
			}
		}
	}
}

// Line returns the bytes of one row.
func (g *Grid) Line(row int) []byte {
	if row < 0 || row >= g.rows {
		return nil
	}
	line := make([]byte, g.cols)
	copy(line, g.cells[row*g.cols:])
	return line
}

// Cell returns the byte at col, row, or a blank when out of range.
func (g *Grid) Cell(col, row int) byte {
	if col < 0 || col >= g.cols || row < 0 || row >= g.rows {
		return blank
	}
	return g.cells[row*g.cols+col]
}

// String renders the grid with trailing blanks trimmed from every row.
func (g *Grid) String() string {
	var b strings.Builder
	for row := 0; row < g.rows; row++ {
		b.WriteString(strings.TrimRight(string(g.cells[row*g.cols:(row+1)*g.cols]), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// Cursor returns the cursor position.
func (g *Grid) Cursor() (col, row int) {
	return g.col, g.row
}

// Size returns the grid dimensions.
func (g *Grid) Size() (cols, rows int) {
	return g.cols, g.rows
}

// AutoWrap reports whether writing past the last column wraps.
func (g *Grid) AutoWrap() bool {
	return g.autoWrap
}

func (g *Grid) SetAutoWrap(on bool) {
	g.autoWrap = on
}

// NewlineMode reports whether CR also advances the line.
func (g *Grid) NewlineMode() bool {
	return g.newlineMode
}

func (g *Grid) SetNewlineMode(on bool) {
	g.newlineMode = on
}

// SetDamageHook registers fn to receive every damaged region.
func (g *Grid) SetDamageHook(fn func(Rect)) {
	g.onDamage = fn
}

// SetBellHook registers fn to run when BEL is received.
func (g *Grid) SetBellHook(fn func()) {
	g.onBell = fn
}

// SetCursorHook registers fn to receive the cursor position after every
// PutChar and Clear.
func (g *Grid) SetCursorHook(fn func(col, row int)) {
	g.onCursor = fn
}
