package gifn

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
)

// Standard error types for GIF decoding.
var (
	ErrNoGIF       = errors.New("not a GIF file")
	ErrNoFrames    = errors.New("no image data")
	ErrUnsupported = errors.New("unsupported format")
	ErrSyntax      = errors.New("syntax error")
)

// Options specifies decoding parameters.
type Options struct {
	// Strict turns the conditions the default decoder silently tolerates into errors
	// wrapping ErrSyntax (or ErrUnsupported for an invalid LZW code size): data ending
	// early, an unknown block type, a malformed graphic control extension, and LZW
	// data that stops short of the image size.
	// Palette indices outside the color table are tolerated in both modes.
	Strict bool
	// MaxFrames stops decoding once this many frames have been produced. Zero means no limit.
	MaxFrames int
}

// Logical screen descriptor length, including the 6-byte signature.
const headerSize = 13

// decoderPool is a pool of decoder structs to reduce allocation overhead.
var decoderPool = sync.Pool{
	New: func() interface{} {
		return newDecoder()
	},
}

// Interface to check if a reader knows its remaining length.
type readerWithLen interface {
	Len() int
}

// readAllData reads data from r, pre-allocating if the size is known.
func readAllData(r io.Reader) ([]byte, error) {
	if rl, ok := r.(readerWithLen); ok {
		size := rl.Len()
		if size > 0 {
			data := make([]byte, size)
			_, err := io.ReadFull(r, data)
			if err != nil {
				return nil, fmt.Errorf("failed to read image data: %w", err)
			}

			return data, nil
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return data, nil
}

// DecodeBytes decodes every image block of the GIF stream in data and returns the
// composited frames, each sized to the logical screen.
// By default the only failure is a missing GIF87a/GIF89a signature; a truncated or
// non-conformant stream yields the frames decoded before the damage, possibly none.
func DecodeBytes(data []byte, opts ...*Options) (*GIF, error) {
	d := decoderPool.Get().(*decoder)
	defer func() {
		d.reset()
		decoderPool.Put(d)
	}()

	if len(opts) > 0 && opts[0] != nil {
		d.strict = opts[0].Strict
		d.maxFrames = opts[0].MaxFrames
	}

	if err := d.decode(data, false); err != nil {
		return nil, err
	}

	return &GIF{
		Version:         d.version,
		Width:           d.width,
		Height:          d.height,
		Palette:         d.global.palette(),
		BackgroundIndex: d.background,
		Frames:          d.frames,
	}, nil
}

// DecodeAll reads a GIF stream from r and decodes it with DecodeBytes.
func DecodeAll(r io.Reader, opts ...*Options) (*GIF, error) {
	data, err := readAllData(r)
	if err != nil {
		return nil, err
	}

	return DecodeBytes(data, opts...)
}

// Decode reads a GIF stream from r and returns its first composited frame as an [image.Image].
func Decode(r io.Reader) (image.Image, error) {
	data, err := readAllData(r)
	if err != nil {
		return nil, err
	}

	g, err := DecodeBytes(data, &Options{MaxFrames: 1})
	if err != nil {
		return nil, err
	}

	if len(g.Frames) == 0 {
		return nil, ErrNoFrames
	}

	return g.Frames[0].Image(), nil
}

// DecodeConfig returns the color model and logical screen dimensions of a GIF
// without decoding any image data. Frames are always RGBA, whatever the palette.
func DecodeConfig(r io.Reader) (image.Config, error) {
	var header [headerSize]byte

	n, err := io.ReadFull(r, header[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return image.Config{}, ErrNoGIF
		}

		return image.Config{}, err
	}

	d := decoderPool.Get().(*decoder)
	defer func() {
		d.reset()
		decoderPool.Put(d)
	}()

	if err := d.decode(header[:n], true); err != nil {
		return image.Config{}, err
	}

	return image.Config{
		ColorModel: color.RGBAModel,
		Width:      d.width,
		Height:     d.height,
	}, nil
}

// init registers the GIF format with the standard library's image package.
func init() {
	image.RegisterFormat("gif", "GIF8?a", Decode, DecodeConfig)
}
