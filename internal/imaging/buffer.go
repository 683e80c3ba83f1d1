// Package imaging holds the pixel buffer shared by every stage of the
// hallucination pipeline and the interface of the external codec/resampler.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidInput reports empty images, non-positive depths or scales and
// other malformed arguments.
var ErrInvalidInput = errors.New("invalid input")

const maxDimension = 32768

// Buffer is a row-major image with interleaved float32 channels. Values keep
// the 0..255 range of the decoded source; band-pass and derivative buffers
// may hold negative values.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32
}

func NewBuffer(width, height, channels int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float32, width*height*channels),
	}
}

// FromPix wraps pix without copying.
func FromPix(width, height, channels int, pix []float32) (*Buffer, error) {
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("%w: %d values for %dx%dx%d buffer", ErrInvalidInput, len(pix), width, height, channels)
	}
	return &Buffer{Width: width, Height: height, Channels: channels, Pix: pix}, nil
}

func (b *Buffer) Empty() bool {
	return b == nil || b.Width <= 0 || b.Height <= 0 || b.Channels <= 0 || len(b.Pix) == 0
}

func (b *Buffer) Size() image.Point {
	if b == nil {
		return image.Point{}
	}
	return image.Pt(b.Width, b.Height)
}

func (b *Buffer) Bounds() image.Rectangle {
	return image.Rectangle{Max: b.Size()}
}

func (b *Buffer) offset(x, y int) int {
	return (y*b.Width + x) * b.Channels
}

func (b *Buffer) At(x, y, c int) float32 {
	return b.Pix[b.offset(x, y)+c]
}

func (b *Buffer) Set(x, y, c int, v float32) {
	b.Pix[b.offset(x, y)+c] = v
}

// Pixel returns the channel values at (x, y). The slice aliases the buffer.
func (b *Buffer) Pixel(x, y int) []float32 {
	o := b.offset(x, y)
	return b.Pix[o : o+b.Channels : o+b.Channels]
}

// SetPixel writes src into (x, y), reconciling channel counts: a single
// channel source is broadcast, surplus source channels are dropped.
func (b *Buffer) SetPixel(x, y int, src []float32) {
	if len(src) == 0 {
		return
	}
	dst := b.Pixel(x, y)
	last := len(src) - 1
	for c := range dst {
		if c > last {
			dst[c] = src[last]
			continue
		}
		dst[c] = src[c]
	}
}

// Sum adds all channels at (x, y).
func (b *Buffer) Sum(x, y int) float64 {
	var s float64
	for _, v := range b.Pixel(x, y) {
		s += float64(v)
	}
	return s
}

func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	pix := make([]float32, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Channels: b.Channels, Pix: pix}
}

// Crop copies the region r, which must lie inside the buffer.
func (b *Buffer) Crop(r image.Rectangle) (*Buffer, error) {
	if b.Empty() {
		return nil, fmt.Errorf("%w: crop of empty buffer", ErrInvalidInput)
	}
	if r.Empty() || !r.In(b.Bounds()) {
		return nil, fmt.Errorf("%w: crop %v outside %v", ErrInvalidInput, r, b.Bounds())
	}

	out := NewBuffer(r.Dx(), r.Dy(), b.Channels)
	rowLen := r.Dx() * b.Channels
	for y := 0; y < r.Dy(); y++ {
		src := b.offset(r.Min.X, r.Min.Y+y)
		copy(out.Pix[y*rowLen:(y+1)*rowLen], b.Pix[src:src+rowLen])
	}
	return out, nil
}

// Equal reports whether both buffers have the same shape and identical
// values.
func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.Width != o.Width || b.Height != o.Height || b.Channels != o.Channels || len(b.Pix) != len(o.Pix) {
		return false
	}
	for i := range b.Pix {
		if b.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: buffer is nil", ErrInvalidInput)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidInput, b.Width, b.Height)
	}
	if b.Width > maxDimension || b.Height > maxDimension {
		return fmt.Errorf("%w: dimensions %dx%d exceed maximum size", ErrInvalidInput, b.Width, b.Height)
	}
	switch b.Channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("%w: unsupported channel count %d", ErrInvalidInput, b.Channels)
	}
	if len(b.Pix) != b.Width*b.Height*b.Channels {
		return fmt.Errorf("%w: pixel slice has %d values, want %d", ErrInvalidInput, len(b.Pix), b.Width*b.Height*b.Channels)
	}
	return nil
}

// Subtract returns a - b element-wise. Shapes must match.
func Subtract(a, b *Buffer) (*Buffer, error) {
	if a.Width != b.Width || a.Height != b.Height || a.Channels != b.Channels {
		return nil, fmt.Errorf("%w: subtract %dx%dx%d from %dx%dx%d", ErrInvalidInput,
			b.Width, b.Height, b.Channels, a.Width, a.Height, a.Channels)
	}
	out := NewBuffer(a.Width, a.Height, a.Channels)
	for i := range out.Pix {
		out.Pix[i] = a.Pix[i] - b.Pix[i]
	}
	return out, nil
}

// Abs replaces every value with its magnitude, in place.
func (b *Buffer) Abs() *Buffer {
	for i, v := range b.Pix {
		b.Pix[i] = float32(math.Abs(float64(v)))
	}
	return b
}

// Half returns the floor-halved size of s.
func Half(s image.Point) image.Point {
	return image.Pt(s.X/2, s.Y/2)
}
