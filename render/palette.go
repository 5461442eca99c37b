// Package render - Paints detection snapshots onto a transparent overlay canvas.
package render

import (
	"image/color"
	"sync"
)

// Palette is the ordered list of colours handed out to classes.
type Palette []color.RGBA

// DefaultPalette cycles through nine high-contrast colours.
var DefaultPalette = Palette{
	{R: 0xff, G: 0x00, B: 0x00, A: 0xff}, // red
	{R: 0x00, G: 0xff, B: 0x00, A: 0xff}, // green
	{R: 0x00, G: 0x00, B: 0xff, A: 0xff}, // blue
	{R: 0xff, G: 0xff, B: 0x00, A: 0xff}, // yellow
	{R: 0x00, G: 0xff, B: 0xff, A: 0xff}, // cyan
	{R: 0xff, G: 0x00, B: 0xff, A: 0xff}, // magenta
	{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, // white
	{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}, // light gray
	{R: 0x44, G: 0x44, B: 0x44, A: 0xff}, // dark gray
}

// ColorAssignment hands out palette colours to class ids in order of first
// appearance and keeps them until Reset.
type ColorAssignment struct {
	mu       sync.Mutex
	palette  Palette
	assigned map[int]int
	next     int
}

// NewColorAssignment creates an empty assignment over p. An empty palette
// falls back to DefaultPalette.
func NewColorAssignment(p Palette) *ColorAssignment {
	if len(p) == 0 {
		p = DefaultPalette
	}
	return &ColorAssignment{palette: p, assigned: map[int]int{}}
}

// Color returns the colour of classID, assigning the next palette entry if
// the class has not been seen before.
func (c *ColorAssignment) Color(classID int) color.RGBA {
	return c.palette[c.Index(classID)]
}

// Index returns the palette index of classID, assigning one if needed.
func (c *ColorAssignment) Index(classID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.assigned[classID]; ok {
		return idx
	}
	idx := c.next % len(c.palette)
	c.assigned[classID] = idx
	c.next++
	return idx
}

// Lookup returns the palette index of classID without assigning one.
func (c *ColorAssignment) Lookup(classID int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.assigned[classID]
	return idx, ok
}

// Len returns the number of classes assigned so far.
func (c *ColorAssignment) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.assigned)
}

// Reset forgets every assignment; the next class seen gets palette index 0.
func (c *ColorAssignment) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned = map[int]int{}
	c.next = 0
}
