package imaging

import (
	"image"
	"image/color"
)

// FromImage converts img into a 1-channel buffer when it is grey and a
// 3-channel RGB buffer otherwise.
func FromImage(img image.Image) *Buffer {
	b := img.Bounds()
	if _, ok := img.(*image.Gray); ok {
		out := NewBuffer(b.Dx(), b.Dy(), 1)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				out.Set(x, y, 0, float32(g.Y))
			}
		}
		return out
	}

	out := NewBuffer(b.Dx(), b.Dy(), 3)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			out.SetPixel(x, y, []float32{float32(c.R), float32(c.G), float32(c.B)})
		}
	}
	return out
}

// ToImage converts buf to an 8-bit image, saturating out-of-range values.
func ToImage(buf *Buffer) image.Image {
	if buf.Channels == 1 {
		img := image.NewGray(image.Rect(0, 0, buf.Width, buf.Height))
		for y := 0; y < buf.Height; y++ {
			for x := 0; x < buf.Width; x++ {
				img.SetGray(x, y, color.Gray{Y: saturate(buf.At(x, y, 0))})
			}
		}
		return img
	}

	img := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			c := color.NRGBA{
				R: saturate(buf.At(x, y, 0)),
				G: saturate(buf.At(x, y, 1)),
				B: saturate(buf.At(x, y, 2)),
				A: 255,
			}
			if buf.Channels == 4 {
				c.A = saturate(buf.At(x, y, 3))
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func saturate(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
