// Package opencv implements imaging.Processor on top of gocv. Buffers cross
// into OpenCV as float32 matrices in RGB order; every native matrix of a call
// lives in a per-call arena.
package opencv

import (
	"fmt"
	"image"

	"hallucinator/internal/imaging"
	"hallucinator/internal/logger"
	"hallucinator/internal/opencv/bridge"
	"hallucinator/internal/opencv/conversion"
	"hallucinator/internal/opencv/memory"

	"gocv.io/x/gocv"
)

type Processor struct {
	memory *memory.Manager
	logger logger.Logger
}

func NewProcessor(mgr *memory.Manager, log logger.Logger) *Processor {
	return &Processor{memory: mgr, logger: log}
}

func (p *Processor) Memory() *memory.Manager {
	return p.memory
}

func (p *Processor) Decode(path string) (*imaging.Buffer, error) {
	arena := p.memory.NewArena("decode")
	defer arena.Release()

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to decode image: %s", path)
	}
	buf, err := p.adoptDecoded(arena, mat)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("opencv", "image decoded", logger.Fields{"path": path, "width": buf.Width, "height": buf.Height})
	return buf, nil
}

// DecodeBytes decodes an encoded image held in memory, such as a file
// streamed from a picker.
func (p *Processor) DecodeBytes(data []byte) (*imaging.Buffer, error) {
	arena := p.memory.NewArena("decode_bytes")
	defer arena.Release()

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image with OpenCV: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to decode %d bytes", len(data))
	}
	buf, err := p.adoptDecoded(arena, mat)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("opencv", "image decoded", logger.Fields{"bytes": len(data), "width": buf.Width, "height": buf.Height})
	return buf, nil
}

func (p *Processor) adoptDecoded(arena *memory.Arena, mat gocv.Mat) (*imaging.Buffer, error) {
	decoded, err := arena.Adopt(mat)
	if err != nil {
		return nil, err
	}
	rgb, err := conversion.SwapRedBlue(arena, decoded)
	if err != nil {
		return nil, err
	}
	return bridge.MatToBuffer(arena, rgb)
}

func (p *Processor) Encode(buf *imaging.Buffer, path string) error {
	arena := p.memory.NewArena("encode")
	defer arena.Release()

	src, err := bridge.BufferToMat(arena, buf)
	if err != nil {
		return err
	}
	bgr, err := conversion.SwapRedBlue(arena, src)
	if err != nil {
		return err
	}

	out, err := arena.NewMat()
	if err != nil {
		return err
	}
	if err := bgr.ConvertTo(out, byteType(buf.Channels)); err != nil {
		return fmt.Errorf("failed to convert to 8-bit: %w", err)
	}

	if !gocv.IMWrite(path, *out) {
		return fmt.Errorf("failed to write image: %s", path)
	}
	return nil
}

func (p *Processor) Resample(buf *imaging.Buffer, size image.Point, filter imaging.Filter) (*imaging.Buffer, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: resample to %v", imaging.ErrInvalidInput, size)
	}

	arena := p.memory.NewArena("resample")
	defer arena.Release()

	src, err := bridge.BufferToMat(arena, buf)
	if err != nil {
		return nil, err
	}
	dst, err := arena.NewMat()
	if err != nil {
		return nil, err
	}

	switch {
	case filter == imaging.FilterPyramid && size == imaging.Half(buf.Size()):
		err = gocv.PyrDown(*src, dst, size, gocv.BorderDefault)
	case filter == imaging.FilterPyramid && imaging.Half(size) == buf.Size():
		err = gocv.PyrUp(*src, dst, size, gocv.BorderDefault)
	default:
		err = gocv.Resize(*src, dst, size, 0, 0, interpolation(filter))
	}
	if err != nil {
		return nil, fmt.Errorf("%s resample to %v failed: %w", filter, size, err)
	}
	if dst.Empty() {
		return nil, fmt.Errorf("%s resample to %v produced an empty Mat", filter, size)
	}
	return bridge.MatToBuffer(arena, dst)
}

func (p *Processor) Smooth(buf *imaging.Buffer, kernelSize int) (*imaging.Buffer, error) {
	if kernelSize < 1 || kernelSize%2 == 0 {
		return nil, fmt.Errorf("%w: kernel size %d must be odd and positive", imaging.ErrInvalidInput, kernelSize)
	}

	arena := p.memory.NewArena("smooth")
	defer arena.Release()

	src, err := bridge.BufferToMat(arena, buf)
	if err != nil {
		return nil, err
	}
	dst, err := arena.NewMat()
	if err != nil {
		return nil, err
	}

	if err := gocv.GaussianBlur(*src, dst, image.Pt(kernelSize, kernelSize), 0, 0, gocv.BorderDefault); err != nil {
		return nil, fmt.Errorf("gaussian blur failed: %w", err)
	}
	if dst.Empty() {
		return nil, fmt.Errorf("gaussian blur produced an empty Mat")
	}
	return bridge.MatToBuffer(arena, dst)
}

// Gradient applies the 3x3 Sobel operator with float output, so second
// derivatives can be taken from signed first derivatives.
func (p *Processor) Gradient(buf *imaging.Buffer, axis imaging.Axis) (*imaging.Buffer, error) {
	if buf.Channels != 1 {
		return nil, fmt.Errorf("%w: gradient needs a single channel buffer, got %d channels", imaging.ErrInvalidInput, buf.Channels)
	}

	arena := p.memory.NewArena("gradient")
	defer arena.Release()

	src, err := bridge.BufferToMat(arena, buf)
	if err != nil {
		return nil, err
	}
	dst, err := arena.NewMat()
	if err != nil {
		return nil, err
	}

	dx, dy := 1, 0
	if axis == imaging.AxisVertical {
		dx, dy = 0, 1
	}
	if err := gocv.Sobel(*src, dst, gocv.MatTypeCV32F, dx, dy, 3, 1, 0, gocv.BorderDefault); err != nil {
		return nil, fmt.Errorf("%s sobel failed: %w", axis, err)
	}
	if dst.Empty() {
		return nil, fmt.Errorf("%s sobel produced an empty Mat", axis)
	}
	return bridge.MatToBuffer(arena, dst)
}

func (p *Processor) ToIntensity(buf *imaging.Buffer) (*imaging.Buffer, error) {
	arena := p.memory.NewArena("intensity")
	defer arena.Release()

	src, err := bridge.BufferToMat(arena, buf)
	if err != nil {
		return nil, err
	}
	gray, err := conversion.ToGrayscale(arena, src)
	if err != nil {
		return nil, err
	}
	return bridge.MatToBuffer(arena, gray)
}

func interpolation(filter imaging.Filter) gocv.InterpolationFlags {
	switch filter {
	case imaging.FilterNearest:
		return gocv.InterpolationNearestNeighbor
	case imaging.FilterLanczos:
		return gocv.InterpolationLanczos4
	default:
		return gocv.InterpolationLinear
	}
}

func byteType(channels int) gocv.MatType {
	switch channels {
	case 1:
		return gocv.MatTypeCV8UC1
	case 4:
		return gocv.MatTypeCV8UC4
	default:
		return gocv.MatTypeCV8UC3
	}
}
