package imaging

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

// Filter selects the interpolation used by Resample.
type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
	FilterLanczos
	// FilterPyramid is the 5x5 Gaussian pyramid step: a blur-and-decimate when
	// shrinking and an expand-and-blur when growing.
	FilterPyramid
)

var filterNames = map[Filter]string{
	FilterNearest: "nearest",
	FilterLinear:  "linear",
	FilterLanczos: "lanczos",
	FilterPyramid: "pyramid",
}

func (f Filter) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}
	return fmt.Sprintf("filter(%d)", int(f))
}

func ParseFilter(name string) (Filter, error) {
	for f, n := range filterNames {
		if strings.EqualFold(n, name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown filter: %s", name)
}

// Axis selects the direction of a derivative.
type Axis int

const (
	AxisHorizontal Axis = iota
	AxisVertical
)

func (a Axis) String() string {
	if a == AxisVertical {
		return "vertical"
	}
	return "horizontal"
}

// Codec decodes and encodes image files. Decoded buffers are always colour,
// with grey files expanded to three channels and alpha dropped.
type Codec interface {
	Decode(path string) (*Buffer, error)
	DecodeBytes(data []byte) (*Buffer, error)
	Encode(buf *Buffer, path string) error
}

// Resampler provides the image primitives the pyramid is built from. Every
// call returns a new buffer and leaves its input untouched.
type Resampler interface {
	Resample(buf *Buffer, size image.Point, filter Filter) (*Buffer, error)
	Smooth(buf *Buffer, kernelSize int) (*Buffer, error)
	// Gradient returns the signed first derivative along axis using a fixed
	// 3x3 operator, single channel in, single channel out.
	Gradient(buf *Buffer, axis Axis) (*Buffer, error)
	ToIntensity(buf *Buffer) (*Buffer, error)
}

type Processor interface {
	Codec
	Resampler
}

var supportedExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedFormat reports whether path has an extension the codec reads.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range supportedExtensions {
		if ext == format {
			return true
		}
	}
	return false
}
