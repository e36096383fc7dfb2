package gifn

// Bitstream handling

// bitReader extracts variable-width LZW codes from a de-blocked byte slice.
// GIF packs codes least-significant-bit first, so new bytes are appended
// above the bits already buffered and codes are taken from the bottom.
type bitReader struct {
	src     []byte // Compressed payload with sub-block framing removed.
	pos     int    // Next byte to load from src.
	buf     uint32 // Bit accumulator; valid bits are the low bufBits.
	bufBits int    // Number of valid bits in buf.
}

// init points the reader at a new payload and clears the accumulator.
func (b *bitReader) init(src []byte) {
	b.src = src
	b.pos = 0
	b.buf = 0
	b.bufBits = 0
}

// fill loads whole bytes until at least 'bits' bits are buffered or the input runs out.
func (b *bitReader) fill(bits int) {
	// codeSize never exceeds 12, so the accumulator holds at most 19 bits here.
	for b.bufBits < bits && b.pos < len(b.src) {
		b.buf |= uint32(b.src[b.pos]) << b.bufBits
		b.pos++
		b.bufBits += 8
	}
}

// readCode returns the next 'bits'-wide code.
// ok is false when the input is exhausted before a full code is available.
func (b *bitReader) readCode(bits int) (code int, ok bool) {
	if b.bufBits < bits {
		b.fill(bits)
		if b.bufBits < bits {
			return 0, false
		}
	}

	code = int(b.buf & (1<<bits - 1))
	b.buf >>= bits
	b.bufBits -= bits

	return code, true
}
