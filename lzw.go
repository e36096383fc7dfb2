package gifn

import (
	"fmt"
	"slices"
)

const (
	maxCodeBits  = 12
	maxTableSize = 1 << maxCodeBits // Code table ceiling (4096 entries).

	// The clear and end codes must fit below the table ceiling with room for
	// at least one entry, which leaves 11 as the widest usable literal.
	minLitWidth = 1
	maxLitWidth = maxCodeBits - 1
)

// lzwTable is the fixed-capacity code table used by the decompressor.
// Each entry is stored as a link to its prefix entry plus one suffix symbol,
// so defining a new code never copies the sequence it extends.
// Symbols are 16 bits wide since literal widths above 8 yield indices past 255.
type lzwTable struct {
	prefix [maxTableSize]uint16 // Code of the sequence this entry extends.
	suffix [maxTableSize]uint16 // Last palette index of the sequence.
	first  [maxTableSize]uint16 // First palette index of the sequence.
	length [maxTableSize]uint16 // Sequence length; 0 for the clear and end codes.
	stack  [maxTableSize]uint16 // Scratch space for an entry that overruns the limit.
	br     bitReader
}

// seed installs the singleton entries 0..clearCode-1 and the two control codes.
// Entries at or above the first free code are unreachable until redefined,
// so a clear code only needs to rewind nextCode.
func (t *lzwTable) seed(clearCode int) {
	for i := 0; i < clearCode; i++ {
		t.prefix[i] = 0
		t.suffix[i] = uint16(i)
		t.first[i] = uint16(i)
		t.length[i] = 1
	}

	t.length[clearCode] = 0
	t.length[clearCode+1] = 0
}

// add defines code as the sequence of prev followed by sym.
func (t *lzwTable) add(code, prev int, sym uint16) {
	t.prefix[code] = uint16(prev)
	t.suffix[code] = sym
	t.first[code] = t.first[prev]
	t.length[code] = t.length[prev] + 1
}

// expand writes the sequence for code into dst, which must be exactly length[code] long.
func (t *lzwTable) expand(code int, dst []uint16) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = t.suffix[code]
		code = int(t.prefix[code])
	}
}

// decompress decodes GIF LZW data and appends at most limit palette indices to dst.
// The output grows with what the data actually produces, not with limit.
// A premature end code is not an error; running out of input or meeting an
// undefined code returns the partial output together with an error wrapping
// ErrSyntax, which lenient callers ignore.
func (t *lzwTable) decompress(dst []uint16, data []byte, litWidth, limit int) ([]uint16, error) {
	if litWidth < minLitWidth || litWidth > maxLitWidth {
		return dst, fmt.Errorf("lzw: minimum code size %d: %w", litWidth, ErrUnsupported)
	}

	clearCode := 1 << litWidth
	endCode := clearCode + 1

	codeSize := litWidth + 1
	codeMask := 1<<codeSize - 1
	nextCode := endCode + 1
	prev := -1

	t.seed(clearCode)
	t.br.init(data)

	start := len(dst)
	for len(dst)-start < limit {
		code, ok := t.br.readCode(codeSize)
		if !ok {
			return dst, fmt.Errorf("lzw: unexpected end of data after %d of %d pixels: %w", len(dst)-start, limit, ErrSyntax)
		}

		if code == clearCode {
			codeSize = litWidth + 1
			codeMask = 1<<codeSize - 1
			nextCode = endCode + 1
			prev = -1

			continue
		}

		if code == endCode {
			break
		}

		added := false
		switch {
		case code < nextCode:
			if prev >= 0 && nextCode < maxTableSize {
				t.add(nextCode, prev, t.first[code])
				added = true
			}
		case code == nextCode && prev >= 0:
			// KwKwK: the code being defined is the one just received.
			// nextCode < maxTableSize holds here since codes are at most 12 bits wide.
			t.add(nextCode, prev, t.first[prev])
			added = true
		default:
			return dst, fmt.Errorf("lzw: invalid code %d (next %d): %w", code, nextCode, ErrSyntax)
		}

		if added {
			nextCode++
			if nextCode > codeMask && codeSize < maxCodeBits {
				codeSize++
				codeMask = 1<<codeSize - 1
			}
		}

		l := int(t.length[code])
		n := len(dst)
		if room := limit - (n - start); l <= room {
			dst = slices.Grow(dst, l)[:n+l]
			t.expand(code, dst[n:])
		} else {
			t.expand(code, t.stack[:l])
			dst = append(dst, t.stack[:room]...)
		}

		prev = code
	}

	return dst, nil
}
