package bridge

import (
	"fmt"

	"hallucinator/internal/imaging"
	"hallucinator/internal/opencv/memory"

	"gocv.io/x/gocv"
)

func floatType(channels int) (gocv.MatType, error) {
	switch channels {
	case 1:
		return gocv.MatTypeCV32FC1, nil
	case 3:
		return gocv.MatTypeCV32FC3, nil
	case 4:
		return gocv.MatTypeCV32FC4, nil
	default:
		return 0, fmt.Errorf("unsupported number of channels: %d", channels)
	}
}

// BufferToMat copies buf into a float32 matrix owned by arena.
func BufferToMat(arena *memory.Arena, buf *imaging.Buffer) (*gocv.Mat, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	matType, err := floatType(buf.Channels)
	if err != nil {
		return nil, err
	}
	mat, err := arena.NewMatWithSize(buf.Height, buf.Width, matType)
	if err != nil {
		return nil, err
	}

	data, err := mat.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access Mat data: %w", err)
	}
	if len(data) != len(buf.Pix) {
		return nil, fmt.Errorf("Mat holds %d values, buffer %d", len(data), len(buf.Pix))
	}
	copy(data, buf.Pix)
	return mat, nil
}

// MatToBuffer copies mat into a new buffer, converting the element type to
// float32 when needed.
func MatToBuffer(arena *memory.Arena, mat *gocv.Mat) (*imaging.Buffer, error) {
	if err := ValidateMat(mat, "MatToBuffer"); err != nil {
		return nil, err
	}

	channels := mat.Channels()
	matType, err := floatType(channels)
	if err != nil {
		return nil, err
	}

	src := mat
	if mat.Type() != matType || !mat.IsContinuous() {
		converted, err := arena.NewMat()
		if err != nil {
			return nil, err
		}
		if err := mat.ConvertTo(converted, matType); err != nil {
			return nil, fmt.Errorf("failed to convert Mat to float: %w", err)
		}
		src = converted
	}

	data, err := src.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access Mat data: %w", err)
	}

	buf := imaging.NewBuffer(src.Cols(), src.Rows(), channels)
	if len(data) != len(buf.Pix) {
		return nil, fmt.Errorf("Mat holds %d values, want %d", len(data), len(buf.Pix))
	}
	copy(buf.Pix, data)
	return buf, nil
}

func ValidateMat(mat *gocv.Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("%s: Mat is nil", operation)
	}
	if mat.Empty() {
		return fmt.Errorf("%s: Mat is empty", operation)
	}
	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("%s: invalid dimensions %dx%d", operation, mat.Cols(), mat.Rows())
	}
	return nil
}
