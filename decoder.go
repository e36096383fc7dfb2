package gifn

import (
	"encoding/binary"
	"fmt"
	"image"
	"slices"
)

// Block introducers and extension labels.
const (
	extensionIntroducer = 0x21
	imageSeparator      = 0x2C
	trailer             = 0x3B
	padding             = 0x00

	graphicControlLabel = 0xF9
	graphicControlSize  = 0x04
)

// Packed-field masks shared by the logical screen and image descriptors.
const (
	fColorTable     = 0x80
	fInterlace      = 0x40
	fColorTableBits = 0x07

	gcTransparentFlag = 0x01
	gcDisposalShift   = 2
	gcDisposalMask    = 0x07
)

// colorTable holds packed RGB triples.
type colorTable []byte

// len returns the number of colors in the table.
func (ct colorTable) len() int {
	return len(ct) / 3
}

// graphicsControl is staged by a graphic control extension for the next image block.
type graphicsControl struct {
	disposal    DisposalMethod
	delay       int // In hundredths of a second.
	transparent int // Transparent palette index, or -1.
}

// clear restores the defaults used when no extension precedes an image.
func (gc *graphicsControl) clear() {
	*gc = graphicsControl{transparent: -1}
}

// imageBlock describes one image descriptor and its decoded payload.
type imageBlock struct {
	left, top     int
	width, height int
	interlaced    bool
	palette       colorTable // Local table if present, otherwise the global one (may be nil).
	litWidth      int        // LZW minimum code size.
}

// rect returns the block's rectangle in logical screen coordinates.
func (b *imageBlock) rect() image.Rectangle {
	return image.Rect(b.left, b.top, b.left+b.width, b.top+b.height)
}

// decoder holds the state of one GIF decode.
type decoder struct {
	data       []byte          // Input buffer containing the entire GIF stream.
	pos        int             // Current read position; may run past len(data) on truncated input.
	strict     bool            // Report malformed input instead of stopping quietly.
	maxFrames  int             // Stop after this many frames when > 0.
	version    string          // "87a" or "89a".
	width      int             // Logical screen width.
	height     int             // Logical screen height.
	global     colorTable      // Global color table, nil if absent.
	background byte            // Background color index.
	gc         graphicsControl // Graphics control staged for the next image block.
	payload    []byte          // Reassembled LZW data of the current image block.
	indices    []uint16        // Decompressed palette indices of the current image block.
	lzw        *lzwTable       // Pooled code table.
	canvas     canvas          // Persistent logical screen framebuffer.
	frames     []Frame         // Composited output, in decode order.
}

// Scratch buffers larger than this many elements are not kept in pooled decoders.
const maxPooledBuffer = 1 << 20

// errDecode is used for internal panics when strict decoding reads past the end of the input.
type errDecode struct{ error }

// newDecoder creates a new decoder instance and allocates the code table.
func newDecoder() *decoder {
	return &decoder{lzw: new(lzwTable)}
}

// reset clears the decoder state for reuse, preserving the code table and scratch buffers.
func (d *decoder) reset() {
	lzw := d.lzw
	payload := pooledBuffer(d.payload)
	indices := pooledBuffer(d.indices)
	saved := pooledBuffer(d.canvas.saved)
	rows := pooledBuffer(d.canvas.rows)

	// Zero the struct. This drops references to the input and the frames handed to the caller.
	*d = decoder{}

	d.lzw = lzw
	d.payload = payload
	d.indices = indices
	d.canvas.saved = saved
	d.canvas.rows = rows
}

// pooledBuffer empties s for reuse, or drops it if it grew too large to keep.
func pooledBuffer[S ~[]E, E any](s S) S {
	if cap(s) > maxPooledBuffer {
		return nil
	}

	return s[:0]
}

// panic triggers an internal panic to signal a decoding error from deep inside the cursor.
func (d *decoder) panic(err error) {
	panic(errDecode{err})
}

// Byte cursor

// readByte returns the next input byte. Past the end of the buffer it returns 0,
// unless the decoder is strict.
func (d *decoder) readByte() byte {
	if d.pos >= len(d.data) {
		if d.strict {
			d.panic(fmt.Errorf("unexpected end of data at offset %d: %w", d.pos, ErrSyntax))
		}

		d.pos++

		return 0
	}

	b := d.data[d.pos]
	d.pos++

	return b
}

// readUint16 reads a little-endian 16-bit value.
func (d *decoder) readUint16() int {
	if d.pos+2 <= len(d.data) {
		v := binary.LittleEndian.Uint16(d.data[d.pos:])
		d.pos += 2

		return int(v)
	}

	lo := d.readByte()
	hi := d.readByte()

	return int(lo) | int(hi)<<8
}

// readColorTable reads a table of n RGB triples. Missing bytes read as 0.
func (d *decoder) readColorTable(n int) colorTable {
	ct := make(colorTable, n*3)
	d.readFull(ct)

	return ct
}

// readFull fills dst from the input. Bytes past the end of the buffer read as 0.
func (d *decoder) readFull(dst []byte) {
	avail := copy(dst, d.data[min(d.pos, len(d.data)):])
	d.pos += avail

	for i := avail; i < len(dst); i++ {
		dst[i] = d.readByte()
	}
}

// readSubBlocks appends the data of a length-prefixed sub-block chain to dst.
// A size byte of 0 terminates the chain.
func (d *decoder) readSubBlocks(dst []byte) []byte {
	for {
		size := int(d.readByte())
		if size == 0 {
			return dst
		}

		l := len(dst)
		dst = slices.Grow(dst, size)[:l+size]
		d.readFull(dst[l:])
	}
}

// skipSubBlocks consumes a sub-block chain without interpreting it.
func (d *decoder) skipSubBlocks() {
	for {
		size := int(d.readByte())
		if size == 0 {
			return
		}

		d.pos += size
		if d.strict && d.pos > len(d.data) {
			d.panic(fmt.Errorf("sub-block runs past end of data: %w", ErrSyntax))
		}
	}
}

// Block decoders

// decodeHeader checks the signature and reads the logical screen descriptor
// and the optional global color table.
func (d *decoder) decodeHeader() error {
	if len(d.data) < 6 {
		return ErrNoGIF
	}

	sig := string(d.data[:6])
	if sig != "GIF87a" && sig != "GIF89a" {
		return ErrNoGIF
	}

	d.version = sig[3:]
	d.pos = 6

	d.width = d.readUint16()
	d.height = d.readUint16()
	packed := d.readByte()
	d.background = d.readByte()
	_ = d.readByte() // Pixel aspect ratio.

	if packed&fColorTable != 0 {
		d.global = d.readColorTable(1 << ((packed & fColorTableBits) + 1))
	}

	return nil
}

// decodeExtension handles an extension block. Only the graphic control extension
// is interpreted; any other label is skipped.
func (d *decoder) decodeExtension() error {
	label := d.readByte()
	if label != graphicControlLabel {
		d.skipSubBlocks()

		return nil
	}

	size := d.readByte()
	packed := d.readByte()
	delay := d.readUint16()
	transparent := d.readByte()
	terminator := d.readByte()

	if d.strict && (size != graphicControlSize || terminator != 0) {
		return fmt.Errorf("graphic control extension (size %d, terminator 0x%02x): %w", size, terminator, ErrSyntax)
	}

	d.gc.disposal = DisposalMethod((packed >> gcDisposalShift) & gcDisposalMask)
	d.gc.delay = delay
	d.gc.transparent = -1
	if packed&gcTransparentFlag != 0 {
		d.gc.transparent = int(transparent)
	}

	return nil
}

// decodeImage reads an image descriptor and its data, composites it onto the
// canvas and appends the resulting frame.
func (d *decoder) decodeImage() error {
	b := imageBlock{
		left:    d.readUint16(),
		top:     d.readUint16(),
		width:   d.readUint16(),
		height:  d.readUint16(),
		palette: d.global,
	}

	packed := d.readByte()
	b.interlaced = packed&fInterlace != 0
	if packed&fColorTable != 0 {
		b.palette = d.readColorTable(1 << ((packed & fColorTableBits) + 1))
	}

	b.litWidth = int(d.readByte())
	d.payload = d.readSubBlocks(d.payload[:0])

	// The block size only bounds the output; the buffer grows with the decoded data.
	count := b.width * b.height

	var err error
	d.indices, err = d.lzw.decompress(d.indices[:0], d.payload, b.litWidth, count)
	if d.strict {
		if err != nil {
			return fmt.Errorf("image %d: %w", len(d.frames), err)
		}

		if n := len(d.indices); n < count {
			return fmt.Errorf("image %d: %d of %d pixels: %w", len(d.frames), n, count, ErrSyntax)
		}
	}

	d.frames = append(d.frames, Frame{
		Width:       d.width,
		Height:      d.height,
		Pix:         d.canvas.compose(&b, d.indices, &d.gc),
		Rect:        b.rect(),
		Delay:       d.gc.delay,
		Disposal:    d.gc.disposal,
		Transparent: d.gc.transparent,
	})

	d.gc.clear()

	return nil
}

// decode parses the GIF stream held in data.
// If configOnly is true, it stops after the logical screen descriptor.
func (d *decoder) decode(data []byte, configOnly bool) (err error) {
	// Strict cursor overruns surface as errDecode panics.
	defer func() {
		if r := recover(); r != nil {
			if de, ok := r.(errDecode); ok {
				err = de.error
			} else {
				panic(r)
			}
		}
	}()

	d.data = data
	d.pos = 0

	if err := d.decodeHeader(); err != nil {
		return err
	}

	if configOnly {
		return nil
	}

	d.canvas.init(d.width, d.height)
	d.gc.clear()

blockLoop:
	for d.pos < len(d.data) {
		if d.maxFrames > 0 && len(d.frames) >= d.maxFrames {
			return nil
		}

		switch b := d.readByte(); b {
		case extensionIntroducer:
			if err := d.decodeExtension(); err != nil {
				return err
			}
		case imageSeparator:
			if err := d.decodeImage(); err != nil {
				return err
			}
		case trailer:
			return nil
		case padding:
		default:
			// An unknown block ends decoding with the frames produced so far.
			if d.strict {
				return fmt.Errorf("unknown block 0x%02x at offset %d: %w", b, d.pos-1, ErrSyntax)
			}

			break blockLoop
		}
	}

	if d.strict && d.pos >= len(d.data) {
		return fmt.Errorf("missing trailer: %w", ErrSyntax)
	}

	return nil
}
