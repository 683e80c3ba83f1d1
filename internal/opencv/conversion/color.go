package conversion

import (
	"fmt"

	"hallucinator/internal/opencv/bridge"
	"hallucinator/internal/opencv/memory"

	"gocv.io/x/gocv"
)

func cvtColor(arena *memory.Arena, src *gocv.Mat, code gocv.ColorConversionCode) (*gocv.Mat, error) {
	dst, err := arena.NewMat()
	if err != nil {
		return nil, err
	}
	if err := gocv.CvtColor(*src, dst, code); err != nil {
		return nil, fmt.Errorf("color conversion %d failed: %w", code, err)
	}
	if dst.Empty() {
		return nil, fmt.Errorf("color conversion %d produced an empty Mat", code)
	}
	return dst, nil
}

// ToGrayscale converts an RGB or RGBA matrix to a single channel. Single
// channel input is returned as is.
func ToGrayscale(arena *memory.Arena, src *gocv.Mat) (*gocv.Mat, error) {
	if err := bridge.ValidateMat(src, "ToGrayscale"); err != nil {
		return nil, err
	}

	switch src.Channels() {
	case 1:
		return src, nil
	case 3:
		return cvtColor(arena, src, gocv.ColorRGBToGray)
	case 4:
		return cvtColor(arena, src, gocv.ColorRGBAToGray)
	default:
		return nil, fmt.Errorf("unsupported channel count for grayscale conversion: %d", src.Channels())
	}
}

// SwapRedBlue converts between the BGR order OpenCV reads and writes and the
// RGB order of imaging buffers. The conversion is its own inverse.
func SwapRedBlue(arena *memory.Arena, src *gocv.Mat) (*gocv.Mat, error) {
	if err := bridge.ValidateMat(src, "SwapRedBlue"); err != nil {
		return nil, err
	}

	switch src.Channels() {
	case 1:
		return src, nil
	case 3:
		return cvtColor(arena, src, gocv.ColorBGRToRGB)
	case 4:
		return cvtColor(arena, src, gocv.ColorBGRAToRGBA)
	default:
		return nil, fmt.Errorf("unsupported channel count for channel swap: %d", src.Channels())
	}
}
