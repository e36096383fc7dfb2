package gifn

import "image"

// Interlaced images store rows in four passes.
var (
	interlaceOffsets = [4]int{0, 4, 2, 1}
	interlaceSteps   = [4]int{8, 8, 4, 2}
)

// canvas is the logical screen framebuffer carried across image blocks.
// It is never handed out; frames receive copies.
type canvas struct {
	width, height int
	pix           []byte // RGBA, width*height*4, starts fully transparent.
	saved         []byte // Snapshot taken for DisposalPrevious.
	rows          []int  // Decoded-row to display-row map for the current interlaced block.
}

// init sizes the framebuffer to the logical screen and clears it.
func (c *canvas) init(width, height int) {
	c.width, c.height = width, height
	c.pix = make([]byte, width*height*4)
}

// bounds returns the canvas rectangle.
func (c *canvas) bounds() image.Rectangle {
	return image.Rect(0, 0, c.width, c.height)
}

// compose applies the block's disposal method, paints its pixels and returns a
// copy of the whole canvas. DisposalBackground clears the block's rectangle before
// painting. DisposalPrevious snapshots the canvas before painting and restores it
// after the copy is taken, so the next block starts from the unpainted state.
func (c *canvas) compose(b *imageBlock, indices []uint16, gc *graphicsControl) []byte {
	switch gc.disposal {
	case DisposalBackground:
		c.clearRect(b.rect())
	case DisposalPrevious:
		c.saved = append(c.saved[:0], c.pix...)
	}

	c.paint(b, indices, gc.transparent)

	frame := make([]byte, len(c.pix))
	copy(frame, c.pix)

	if gc.disposal == DisposalPrevious {
		copy(c.pix, c.saved)
	}

	return frame
}

// clearRect sets the part of r that lies on the canvas to transparent black.
func (c *canvas) clearRect(r image.Rectangle) {
	r = r.Intersect(c.bounds())
	if r.Empty() {
		return
	}

	stride := c.width * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := c.pix[y*stride+r.Min.X*4 : y*stride+r.Max.X*4]
		clear(row)
	}
}

// paint maps palette indices onto the canvas. Transparent and out-of-table
// indices leave the existing pixel alone; pixels off the canvas are clipped.
func (c *canvas) paint(b *imageBlock, indices []uint16, transparent int) {
	ncolors := b.palette.len()
	if ncolors == 0 {
		return
	}

	if b.interlaced {
		c.rows = interlaceRows(c.rows[:0], b.height)
	}

	for i, idx := range indices {
		ci := int(idx)
		if ci == transparent || ci >= ncolors {
			continue
		}

		x := i % b.width
		y := i / b.width
		if b.interlaced && y < len(c.rows) {
			y = c.rows[y]
		}

		px, py := b.left+x, b.top+y
		if px >= c.width || py >= c.height {
			continue
		}

		o := (py*c.width + px) * 4
		p := ci * 3
		c.pix[o+0] = b.palette[p+0]
		c.pix[o+1] = b.palette[p+1]
		c.pix[o+2] = b.palette[p+2]
		c.pix[o+3] = 0xFF
	}
}

// interlaceRows appends, for each decoded row of an interlaced image of the given
// height, the display row it belongs to. A decoded row beyond the returned map
// keeps its own index.
func interlaceRows(dst []int, height int) []int {
	for pass := 0; pass < len(interlaceOffsets); pass++ {
		for row := interlaceOffsets[pass]; row < height; row += interlaceSteps[pass] {
			dst = append(dst, row)
		}
	}

	return dst
}
