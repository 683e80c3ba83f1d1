// Package imagingtest provides a deterministic pure-Go imaging.Processor for
// tests that must not depend on OpenCV.
package imagingtest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"sync/atomic"

	"hallucinator/internal/imaging"
)

var ErrInjected = errors.New("injected failure")

// Processor implements the primitives with the simplest exact kernels:
// 2x2 box decimation, nearest-neighbour growth, an identity smoother, a
// central difference gradient with clamped borders and channel-mean
// intensity. The codec uses PNG.
type Processor struct {
	// FailGradientAfter makes Gradient fail once it has been called this many
	// times. Zero disables the failure.
	FailGradientAfter int64

	gradientCalls atomic.Int64
}

func New() *Processor {
	return &Processor{}
}

func (p *Processor) GradientCalls() int64 {
	return p.gradientCalls.Load()
}

func (p *Processor) Decode(path string) (*imaging.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := decodeColour(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf, nil
}

func (p *Processor) DecodeBytes(data []byte) (*imaging.Buffer, error) {
	buf, err := decodeColour(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %d bytes: %w", len(data), err)
	}
	return buf, nil
}

// decodeColour reads a PNG the way a colour-mode decoder does: grey is
// spread over three channels.
func decodeColour(r io.Reader) (*imaging.Buffer, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	buf := imaging.FromImage(img)
	if buf.Channels == 3 {
		return buf, nil
	}
	out := imaging.NewBuffer(buf.Width, buf.Height, 3)
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			out.SetPixel(x, y, buf.Pixel(x, y))
		}
	}
	return out, nil
}

func (p *Processor) Encode(buf *imaging.Buffer, path string) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, imaging.ToImage(buf)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (p *Processor) Resample(buf *imaging.Buffer, size image.Point, filter imaging.Filter) (*imaging.Buffer, error) {
	if buf.Empty() || size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: resample %v to %v", imaging.ErrInvalidInput, buf.Size(), size)
	}
	if filter == imaging.FilterPyramid && size.X == buf.Width/2 && size.Y == buf.Height/2 {
		return boxDown(buf, size), nil
	}
	return nearest(buf, size), nil
}

func (p *Processor) Smooth(buf *imaging.Buffer, kernelSize int) (*imaging.Buffer, error) {
	if buf.Empty() || kernelSize < 1 {
		return nil, fmt.Errorf("%w: smooth", imaging.ErrInvalidInput)
	}
	return buf.Clone(), nil
}

func (p *Processor) Gradient(buf *imaging.Buffer, axis imaging.Axis) (*imaging.Buffer, error) {
	n := p.gradientCalls.Add(1)
	if p.FailGradientAfter > 0 && n > p.FailGradientAfter {
		return nil, ErrInjected
	}
	if buf.Empty() || buf.Channels != 1 {
		return nil, fmt.Errorf("%w: gradient needs a single channel buffer", imaging.ErrInvalidInput)
	}

	out := imaging.NewBuffer(buf.Width, buf.Height, 1)
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			var a, b float32
			if axis == imaging.AxisHorizontal {
				a = buf.At(clamp(x-1, buf.Width), y, 0)
				b = buf.At(clamp(x+1, buf.Width), y, 0)
			} else {
				a = buf.At(x, clamp(y-1, buf.Height), 0)
				b = buf.At(x, clamp(y+1, buf.Height), 0)
			}
			out.Set(x, y, 0, (b-a)/2)
		}
	}
	return out, nil
}

func (p *Processor) ToIntensity(buf *imaging.Buffer) (*imaging.Buffer, error) {
	if buf.Empty() {
		return nil, fmt.Errorf("%w: intensity of empty buffer", imaging.ErrInvalidInput)
	}
	if buf.Channels == 1 {
		return buf.Clone(), nil
	}
	colour := buf.Channels
	if colour > 3 {
		colour = 3
	}
	out := imaging.NewBuffer(buf.Width, buf.Height, 1)
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			var sum float32
			for c := 0; c < colour; c++ {
				sum += buf.At(x, y, c)
			}
			out.Set(x, y, 0, sum/float32(colour))
		}
	}
	return out, nil
}

func boxDown(buf *imaging.Buffer, size image.Point) *imaging.Buffer {
	out := imaging.NewBuffer(size.X, size.Y, buf.Channels)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			for c := 0; c < buf.Channels; c++ {
				sum := buf.At(2*x, 2*y, c) + buf.At(2*x+1, 2*y, c) +
					buf.At(2*x, 2*y+1, c) + buf.At(2*x+1, 2*y+1, c)
				out.Set(x, y, c, sum/4)
			}
		}
	}
	return out
}

func nearest(buf *imaging.Buffer, size image.Point) *imaging.Buffer {
	out := imaging.NewBuffer(size.X, size.Y, buf.Channels)
	for y := 0; y < size.Y; y++ {
		sy := y * buf.Height / size.Y
		for x := 0; x < size.X; x++ {
			sx := x * buf.Width / size.X
			copy(out.Pixel(x, y), buf.Pixel(sx, sy))
		}
	}
	return out
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// Noise returns a buffer of pseudo-random integer values in 0..255 from a
// fixed linear congruential sequence, identical for identical arguments.
func Noise(width, height, channels int, seed uint32) *imaging.Buffer {
	buf := imaging.NewBuffer(width, height, channels)
	state := seed
	for i := range buf.Pix {
		state = state*1664525 + 1013904223
		buf.Pix[i] = float32(state >> 24)
	}
	return buf
}
