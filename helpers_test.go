package gifn

import (
	"bytes"
	"compress/lzw"
	"encoding/binary"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

// testPalette is a 4-color global table: black, red, green, blue.
var testPalette = []byte{
	0x00, 0x00, 0x00,
	0xFF, 0x00, 0x00,
	0x00, 0xFF, 0x00,
	0x00, 0x00, 0xFF,
}

var (
	black = [4]byte{0x00, 0x00, 0x00, 0xFF}
	red   = [4]byte{0xFF, 0x00, 0x00, 0xFF}
	green = [4]byte{0x00, 0xFF, 0x00, 0xFF}
	blue  = [4]byte{0x00, 0x00, 0xFF, 0xFF}
	empty = [4]byte{}
)

// testBlock describes one image block (and its optional graphic control extension) for buildGIF.
type testBlock struct {
	rect        image.Rectangle
	pix         []uint8 // Palette indices in display order.
	palette     []byte  // Local color table, nil to inherit the global one.
	interlaced  bool
	gce         bool
	disposal    DisposalMethod
	delay       int
	transparent int // Used only when gce is set; -1 for none.
}

// tableBits returns the packed size field for a color table of n entries.
func tableBits(n int) byte {
	b := byte(0)
	for 2<<b < n {
		b++
	}

	return b
}

func writeUint16(buf *bytes.Buffer, v int) {
	_ = binary.Write(buf, binary.LittleEndian, uint16(v))
}

// compressLZW encodes indices with the standard library's GIF-flavored LZW writer.
func compressLZW(tb testing.TB, litWidth int, indices []uint8) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.LSB, litWidth)
	_, err := w.Write(indices)
	require.NoError(tb, err)
	require.NoError(tb, w.Close())

	return buf.Bytes()
}

// writeSubBlocks frames data as a length-prefixed sub-block chain.
func writeSubBlocks(buf *bytes.Buffer, data []byte) {
	for len(data) > 0 {
		n := min(len(data), 255)
		buf.WriteByte(byte(n))
		buf.Write(data[:n])
		data = data[n:]
	}

	buf.WriteByte(0)
}

// interlace reorders display-order rows into interlaced storage order.
func interlace(pix []uint8, width, height int) []uint8 {
	out := make([]uint8, 0, len(pix))
	for _, row := range interlaceRows(nil, height) {
		out = append(out, pix[row*width:(row+1)*width]...)
	}

	return out
}

func writeBlock(tb testing.TB, buf *bytes.Buffer, b testBlock, globalColors int) {
	tb.Helper()

	if b.gce {
		packed := byte(b.disposal) << gcDisposalShift
		transparent := byte(0)
		if b.transparent >= 0 {
			packed |= gcTransparentFlag
			transparent = byte(b.transparent)
		}

		buf.Write([]byte{extensionIntroducer, graphicControlLabel, graphicControlSize, packed})
		writeUint16(buf, b.delay)
		buf.Write([]byte{transparent, 0x00})
	}

	buf.WriteByte(imageSeparator)
	writeUint16(buf, b.rect.Min.X)
	writeUint16(buf, b.rect.Min.Y)
	writeUint16(buf, b.rect.Dx())
	writeUint16(buf, b.rect.Dy())

	colors := globalColors
	packed := byte(0)
	if b.palette != nil {
		colors = len(b.palette) / 3
		packed |= fColorTable | tableBits(colors)
	}

	if b.interlaced {
		packed |= fInterlace
	}

	buf.WriteByte(packed)
	buf.Write(b.palette)

	litWidth := max(2, int(tableBits(colors))+1)
	buf.WriteByte(byte(litWidth))

	pix := b.pix
	if b.interlaced {
		pix = interlace(pix, b.rect.Dx(), b.rect.Dy())
	}

	writeSubBlocks(buf, compressLZW(tb, litWidth, pix))
}

// buildGIF assembles a GIF89a stream from the given logical screen, global table and blocks.
func buildGIF(tb testing.TB, width, height int, global []byte, blocks ...testBlock) []byte {
	tb.Helper()

	var buf bytes.Buffer
	buf.WriteString("GIF89a")
	writeUint16(&buf, width)
	writeUint16(&buf, height)

	packed := byte(0)
	if global != nil {
		packed = fColorTable | tableBits(len(global)/3)
	}

	buf.Write([]byte{packed, 0x00, 0x00})
	buf.Write(global)

	for _, b := range blocks {
		writeBlock(tb, &buf, b, len(global)/3)
	}

	buf.WriteByte(trailer)

	return buf.Bytes()
}

// fill returns n copies of idx.
func fill(n int, idx uint8) []uint8 {
	return bytes.Repeat([]uint8{idx}, n)
}

// pixelAt returns the RGBA value of a frame pixel.
func pixelAt(f *Frame, x, y int) [4]byte {
	o := (y*f.Width + x) * 4

	return [4]byte(f.Pix[o : o+4])
}

// writeRawBlock writes an image descriptor with no local table and an already
// compressed payload, for streams the standard encoder cannot produce.
func writeRawBlock(buf *bytes.Buffer, rect image.Rectangle, litWidth int, payload []byte) {
	buf.WriteByte(imageSeparator)
	writeUint16(buf, rect.Min.X)
	writeUint16(buf, rect.Min.Y)
	writeUint16(buf, rect.Dx())
	writeUint16(buf, rect.Dy())
	buf.WriteByte(0x00)
	buf.WriteByte(byte(litWidth))
	writeSubBlocks(buf, payload)
}

// packCodes packs codes of the given widths least-significant-bit first.
func packCodes(codes, widths []int) []byte {
	var out []byte
	var acc uint32
	var n int

	for i, c := range codes {
		acc |= uint32(c) << n
		n += widths[i]
		for n >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			n -= 8
		}
	}

	if n > 0 {
		out = append(out, byte(acc))
	}

	return out
}

// widen converts 8-bit indices to the decompressor's 16-bit form.
func widen(src []uint8) []uint16 {
	out := make([]uint16, len(src))
	for i, v := range src {
		out[i] = uint16(v)
	}

	return out
}
