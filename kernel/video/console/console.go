// Package console implements the framebuffer pixel plotter and glyph
// rasterizer spec.md §6 names as the graphics collaborator: PutPixel
// honoring the framebuffer's pixel format, plus the rectangle/line
// helpers the TTY uses to redraw glyphs and a cursor. Grounded on
// gopheros's device/video/console/vesa_fb.go byte-offset math, adapted
// from a character-cell text console to spec.md's "rerender glyphs from
// the font blob" model.
package console

import (
	"github.com/peachsmith/osdev64-sub000/kernel"
	"github.com/peachsmith/osdev64-sub000/kernel/hal"
)

const (
	glyphWidth  = 8
	glyphHeight = 16
)

var errUnsupportedFormat = &kernel.Error{Module: "console", Message: "unsupported framebuffer pixel format"}

// Console draws into a hal.Framebuffer through a byte slice standing in
// for the mapped MMIO window; cmd/kernel backs mem with the framebuffer
// bytes it is handed at boot, while hosted tests back it with a plain Go
// slice.
type Console struct {
	fb  hal.Framebuffer
	mem []byte
	fnt *hal.Font

	cols, rows int
}

// New constructs a Console over fb, backed by mem (length must be at
// least fb.PixelsPerScanline*fb.Height*bytesPerPixel).
func New(fb hal.Framebuffer, mem []byte, font *hal.Font) (*Console, *kernel.Error) {
	if fb.Format != hal.FormatRGBX8 && fb.Format != hal.FormatBGRX8 {
		return nil, errUnsupportedFormat
	}
	c := &Console{fb: fb, mem: mem, fnt: font}
	c.cols = int(fb.Width) / glyphWidth
	c.rows = int(fb.Height) / glyphHeight
	return c, nil
}

func (c *Console) bytesPerPixel() int { return 4 }

// PutPixel writes one RGB triple at (x, y), honoring the framebuffer's
// byte order (RGBX8 vs BGRX8).
func (c *Console) PutPixel(x, y int, r, g, b uint8) {
	if x < 0 || y < 0 || x >= int(c.fb.Width) || y >= int(c.fb.Height) {
		return
	}
	off := y*int(c.fb.PixelsPerScanline)*c.bytesPerPixel() + x*c.bytesPerPixel()
	if off+4 > len(c.mem) {
		return
	}
	switch c.fb.Format {
	case hal.FormatRGBX8:
		c.mem[off+0] = r
		c.mem[off+1] = g
		c.mem[off+2] = b
	case hal.FormatBGRX8:
		c.mem[off+0] = b
		c.mem[off+1] = g
		c.mem[off+2] = r
	}
	c.mem[off+3] = 0
}

// DrawLine draws a straight line using Bresenham's algorithm, the
// rasterizer primitive spec.md §1 names alongside the pixel plotter.
func (c *Console) DrawLine(x0, y0, x1, y1 int, r, g, b uint8) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	err := dx + dy
	for {
		c.PutPixel(x0, y0, r, g, b)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawTriangle draws the three edges of a triangle.
func (c *Console) DrawTriangle(x0, y0, x1, y1, x2, y2 int, r, g, b uint8) {
	c.DrawLine(x0, y0, x1, y1, r, g, b)
	c.DrawLine(x1, y1, x2, y2, r, g, b)
	c.DrawLine(x2, y2, x0, y0, r, g, b)
}

// DrawGlyphs rasterizes text starting at the top-left corner, wrapping at
// the console's character width; implements tty.Renderer.
func (c *Console) DrawGlyphs(text []byte) {
	if c.fnt == nil {
		return
	}
	col, row := 0, 0
	for _, ch := range text {
		if ch == '\n' {
			col = 0
			row++
			continue
		}
		c.drawGlyphAt(col, row, ch)
		col++
		if col >= c.cols {
			col = 0
			row++
		}
	}
}

func (c *Console) drawGlyphAt(col, row int, ch byte) {
	glyph := c.fnt.Glyph(ch)
	baseX, baseY := col*glyphWidth, row*glyphHeight
	for dy := 0; dy < glyphHeight; dy++ {
		rowBits := glyph[dy]
		for dx := 0; dx < glyphWidth; dx++ {
			if rowBits&(0x80>>uint(dx)) != 0 {
				c.PutPixel(baseX+dx, baseY+dy, 0xC0, 0xC0, 0xC0)
			}
		}
	}
}

// DrawCursor draws a filled block at the given character cell; implements
// tty.Renderer.
func (c *Console) DrawCursor(col, row int) {
	baseX, baseY := col*glyphWidth, row*glyphHeight
	for dy := 0; dy < glyphHeight; dy++ {
		for dx := 0; dx < glyphWidth; dx++ {
			c.PutPixel(baseX+dx, baseY+dy, 0xFF, 0xFF, 0xFF)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
