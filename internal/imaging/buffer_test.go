package imaging

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPixelAccess(t *testing.T) {
	buf := NewBuffer(3, 2, 3)
	buf.Set(2, 1, 1, 7)

	assert.Equal(t, float32(7), buf.At(2, 1, 1))
	assert.Equal(t, []float32{0, 7, 0}, buf.Pixel(2, 1))
	assert.Equal(t, image.Pt(3, 2), buf.Size())
	assert.Equal(t, 7.0, buf.Sum(2, 1))
}

func TestSetPixelReconcilesChannels(t *testing.T) {
	rgb := NewBuffer(1, 1, 3)
	rgb.SetPixel(0, 0, []float32{42})
	assert.Equal(t, []float32{42, 42, 42}, rgb.Pixel(0, 0), "grey source is broadcast")

	grey := NewBuffer(1, 1, 1)
	grey.SetPixel(0, 0, []float32{1, 2, 3})
	assert.Equal(t, []float32{1}, grey.Pixel(0, 0), "surplus channels are dropped")

	rgba := NewBuffer(1, 1, 4)
	rgba.SetPixel(0, 0, []float32{1, 2, 3})
	assert.Equal(t, []float32{1, 2, 3, 3}, rgba.Pixel(0, 0))
}

func TestCrop(t *testing.T) {
	buf := NewBuffer(4, 4, 1)
	for i := range buf.Pix {
		buf.Pix[i] = float32(i)
	}

	out, err := buf.Crop(image.Rect(1, 1, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Width)
	assert.Equal(t, 3, out.Height)
	assert.Equal(t, []float32{5, 6, 9, 10, 13, 14}, out.Pix)

	_, err = buf.Crop(image.Rect(3, 3, 5, 5))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCloneIsIndependent(t *testing.T) {
	buf := NewBuffer(2, 2, 1)
	clone := buf.Clone()
	clone.Pix[0] = 1

	assert.Equal(t, float32(0), buf.Pix[0])
	assert.False(t, buf.Equal(clone))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, NewBuffer(2, 2, 3).Validate())
	assert.ErrorIs(t, NewBuffer(0, 2, 3).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, NewBuffer(2, 2, 2).Validate(), ErrInvalidInput)

	var nilBuf *Buffer
	assert.ErrorIs(t, nilBuf.Validate(), ErrInvalidInput)
	assert.True(t, nilBuf.Empty())
}

func TestSubtractAndAbs(t *testing.T) {
	a, err := FromPix(2, 1, 1, []float32{1, 5})
	require.NoError(t, err)
	b, err := FromPix(2, 1, 1, []float32{3, 2})
	require.NoError(t, err)

	diff, err := Subtract(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{-2, 3}, diff.Pix)
	assert.Equal(t, []float32{2, 3}, diff.Abs().Pix)

	_, err = Subtract(a, NewBuffer(1, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("Lanczos")
	require.NoError(t, err)
	assert.Equal(t, FilterLanczos, f)
	assert.Equal(t, "pyramid", FilterPyramid.String())

	_, err = ParseFilter("bicubic")
	assert.Error(t, err)
}

func TestIsSupportedFormat(t *testing.T) {
	assert.True(t, IsSupportedFormat("faces/a.PNG"))
	assert.True(t, IsSupportedFormat("b.jpeg"))
	assert.False(t, IsSupportedFormat("notes.txt"))
}
