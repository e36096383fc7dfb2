package gifn

import (
	"image"
	"image/color"
)

// DisposalMethod tells a viewer what to do with a frame's area before the next one.
type DisposalMethod byte

// Disposal methods from the graphic control extension. Values 4-7 are reserved
// and composite like DisposalNone.
const (
	// DisposalNone means no disposal was specified.
	DisposalNone DisposalMethod = iota
	// DisposalKeep leaves the frame in place.
	DisposalKeep
	// DisposalBackground clears the frame's rectangle.
	DisposalBackground
	// DisposalPrevious restores the canvas to its state before the frame.
	DisposalPrevious
)

// String returns the name of the disposal method.
func (m DisposalMethod) String() string {
	switch m {
	case DisposalNone:
		return "none"
	case DisposalKeep:
		return "keep"
	case DisposalBackground:
		return "background"
	case DisposalPrevious:
		return "previous"
	default:
		return "reserved"
	}
}

// GIF is a decoded animation: the logical screen plus its composited frames.
type GIF struct {
	Version         string        // "87a" or "89a".
	Width, Height   int           // Logical screen size.
	Palette         color.Palette // Global color table, nil if the stream has none.
	BackgroundIndex byte          // Background color index in the global color table.
	Frames          []Frame       // Composited frames in stream order.
}

// Frame is a full logical screen snapshot taken after one image block was composited.
type Frame struct {
	Width, Height int             // Always the logical screen size.
	Pix           []byte          // RGBA pixels, Width*Height*4 bytes, rows top to bottom.
	Rect          image.Rectangle // Area covered by the image block that produced the frame.
	Delay         int             // Delay time in hundredths of a second.
	Disposal      DisposalMethod  // Disposal method of the image block.
	Transparent   int             // Transparent palette index, or -1 if none.
}

// Image returns the frame as an *image.RGBA sharing the frame's pixel buffer.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// palette converts a color table to a color.Palette.
func (ct colorTable) palette() color.Palette {
	if ct == nil {
		return nil
	}

	p := make(color.Palette, ct.len())
	for i := range p {
		p[i] = color.RGBA{R: ct[i*3], G: ct[i*3+1], B: ct[i*3+2], A: 0xFF}
	}

	return p
}
