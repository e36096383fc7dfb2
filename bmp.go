package gifn

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

const (
	bmpFileHeaderLen = 14
	bmpInfoHeaderLen = 40
	bmpHeaderLen     = bmpFileHeaderLen + bmpInfoHeaderLen
	bmpBitsPerPixel  = 24
	bmpPixelsPerM    = 2835 // 72 DPI.
)

// EncodeBMP serializes a top-down RGBA buffer as an uncompressed 24-bit BMP.
// Rows are stored bottom-up and padded to a multiple of 4 bytes; alpha is dropped.
// It panics if rgba holds fewer than width*height*4 bytes.
func EncodeBMP(width, height int, rgba []byte) []byte {
	if width < 0 || height < 0 || len(rgba) < width*height*4 {
		panic(fmt.Sprintf("gifn: EncodeBMP: %d bytes of pixel data for %dx%d", len(rgba), width, height))
	}

	rowSize := (width*3 + 3) &^ 3
	pixelDataSize := rowSize * height
	fileSize := bmpHeaderLen + pixelDataSize

	buf := make([]byte, fileSize)
	le := binary.LittleEndian

	// BITMAPFILEHEADER
	buf[0], buf[1] = 'B', 'M'
	le.PutUint32(buf[2:], uint32(fileSize))
	le.PutUint16(buf[6:], 0)
	le.PutUint16(buf[8:], 0)
	le.PutUint32(buf[10:], bmpHeaderLen)

	// BITMAPINFOHEADER; a positive height marks bottom-up row order.
	le.PutUint32(buf[14:], bmpInfoHeaderLen)
	le.PutUint32(buf[18:], uint32(int32(width)))
	le.PutUint32(buf[22:], uint32(int32(height)))
	le.PutUint16(buf[26:], 1)
	le.PutUint16(buf[28:], bmpBitsPerPixel)
	le.PutUint32(buf[30:], 0)
	le.PutUint32(buf[34:], uint32(pixelDataSize))
	le.PutUint32(buf[38:], bmpPixelsPerM)
	le.PutUint32(buf[42:], bmpPixelsPerM)
	le.PutUint32(buf[46:], 0)
	le.PutUint32(buf[50:], 0)

	pixels := buf[bmpHeaderLen:]
	for y := 0; y < height; y++ {
		src := rgba[(height-1-y)*width*4:]
		dst := pixels[y*rowSize:]
		for x := 0; x < width; x++ {
			dst[x*3+0] = src[x*4+2]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+0]
		}
	}

	return buf
}

// BMP serializes the frame with EncodeBMP.
func (f *Frame) BMP() []byte {
	return EncodeBMP(f.Width, f.Height, f.Pix)
}

// WriteBMP writes the frame to w as a 24-bit BMP.
func WriteBMP(w io.Writer, f *Frame) error {
	if _, err := w.Write(f.BMP()); err != nil {
		return fmt.Errorf("failed to write bmp: %w", err)
	}

	return nil
}

// BMPs serializes every frame concurrently and returns the results in frame order.
func (g *GIF) BMPs() [][]byte {
	out := make([][]byte, len(g.Frames))

	var wg sync.WaitGroup
	for i := range g.Frames {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = g.Frames[i].BMP()
		}(i)
	}

	wg.Wait()

	return out
}
