// Package lcd drives a parallel character display module from a periodic
// timer tick. Callers compose text into a back buffer; Swap publishes it and
// Tick, invoked once per timer interrupt, scans the published buffer out to
// the module one bus operation at a time. Like the twi event handler, Tick
// is bounded: it never emits more than one command or data byte per call and
// never waits on the module.
package lcd

import "twicode-go/x/mathx"

// Bus is the command/data write interface of the display module. The
// implementation owns signal timing (enable pulse, nibble splitting).
type Bus interface {
	WriteCommand(b byte)
	WriteData(b byte)
}

// HD44780-compatible command set.
const (
	cmdClear       = 0x01
	cmdEntryMode   = 0x06 // increment, no shift
	cmdDisplayOn   = 0x0C // display on, cursor off
	cmdFunctionSet = 0x38 // 8-bit, two lines, 5x8 font
	cmdSetAddr     = 0x80 // or'd with the DDRAM address

	row1Base = 0x40
)

// Config for Configure. Zero values mean a 16x2 module.
type Config struct {
	Cols int
	Rows int // 1 or 2
}

// Display maintains the double row buffer for one module.
type Display struct {
	bus  Bus
	cols int
	rows int

	front []byte // what the module currently shows (being scanned out)
	back  []byte // what the caller is composing
	dirty []bool // front cells not yet written to the module

	scan   int // next cell to examine
	cursor int // module's address counter, -1 when unknown
}

// New returns a display over the given bus. Call Configure before use.
func New(bus Bus) *Display {
	return &Display{bus: bus, cursor: -1}
}

// Configure sizes the buffers and initialises the module. The buffers start
// blank and clean; nothing is scanned out until the first Swap.
func (d *Display) Configure(cfg Config) error {
	d.cols = mathx.Clamp(cfg.Cols, 1, 40)
	if cfg.Cols == 0 {
		d.cols = 16
	}
	d.rows = mathx.Clamp(cfg.Rows, 1, 2)
	if cfg.Rows == 0 {
		d.rows = 2
	}
	n := d.cols * d.rows
	d.front = make([]byte, n)
	d.back = make([]byte, n)
	d.dirty = make([]bool, n)
	for i := 0; i < n; i++ {
		d.front[i] = ' '
		d.back[i] = ' '
	}
	d.scan = 0
	d.cursor = -1

	d.bus.WriteCommand(cmdFunctionSet)
	d.bus.WriteCommand(cmdDisplayOn)
	d.bus.WriteCommand(cmdEntryMode)
	d.bus.WriteCommand(cmdClear)
	return nil
}

// WriteString places s into the back buffer at row/col, clipping at the row
// edge. Nothing reaches the module until Swap.
func (d *Display) WriteString(row, col int, s string) {
	if row < 0 || row >= d.rows {
		return
	}
	col = mathx.Clamp(col, 0, d.cols)
	for i := 0; i < len(s) && col+i < d.cols; i++ {
		d.back[row*d.cols+col+i] = s[i]
	}
}

// Clear blanks the back buffer.
func (d *Display) Clear() {
	for i := range d.back {
		d.back[i] = ' '
	}
}

// Swap publishes the back buffer, marking only the cells that changed so the
// scanout skips everything else. The back buffer keeps its contents for
// incremental updates.
func (d *Display) Swap() {
	for i, b := range d.back {
		if d.front[i] != b {
			d.front[i] = b
			d.dirty[i] = true
		}
	}
}

// Pending reports whether any published cell still awaits scanout.
func (d *Display) Pending() bool {
	for _, dt := range d.dirty {
		if dt {
			return true
		}
	}
	return false
}

// Tick performs at most one bus operation: either repositioning the module's
// address counter or writing one dirty cell. It reports whether it did
// anything, so a timer handler can simply call it unconditionally.
func (d *Display) Tick() bool {
	n := len(d.front)
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if d.dirty[d.scan] {
			break
		}
		d.scan++
		if d.scan == n {
			d.scan = 0
		}
	}
	if !d.dirty[d.scan] {
		return false
	}

	if d.cursor != d.scan {
		d.bus.WriteCommand(cmdSetAddr | d.addrOf(d.scan))
		d.cursor = d.scan
		return true
	}

	d.bus.WriteData(d.front[d.scan])
	d.dirty[d.scan] = false
	d.cursor++
	if d.cursor%d.cols == 0 {
		// The module's counter runs into the hidden DDRAM gap past the row
		// edge; force a reposition before the next cell.
		d.cursor = -1
	}
	d.scan++
	if d.scan == n {
		d.scan = 0
	}
	return true
}

// addrOf maps a cell index to the module's DDRAM address.
func (d *Display) addrOf(cell int) byte {
	row := cell / d.cols
	col := cell % d.cols
	if row == 0 {
		return byte(col)
	}
	return byte(row1Base + col)
}
