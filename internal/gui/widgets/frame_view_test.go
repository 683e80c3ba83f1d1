package widgets

import (
	"image"
	"testing"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
)

func TestContainPoint(t *testing.T) {
	// 100x50 frame drawn at scale 2 in a 200x200 area, letterboxed by 50
	// above and below.
	area := fyne.NewSize(200, 200)
	frame := image.Pt(100, 50)

	tests := []struct {
		name string
		pos  fyne.Position
		want image.Point
		ok   bool
	}{
		{"origin", fyne.NewPos(0, 50), image.Pt(0, 0), true},
		{"centre", fyne.NewPos(100, 100), image.Pt(50, 25), true},
		{"last pixel", fyne.NewPos(199.5, 149.5), image.Pt(99, 49), true},
		{"top letterbox", fyne.NewPos(100, 20), image.Point{}, false},
		{"bottom letterbox", fyne.NewPos(100, 160), image.Point{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ContainPoint(area, frame, tt.pos)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainPointWithoutFrame(t *testing.T) {
	_, ok := ContainPoint(fyne.NewSize(10, 10), image.Point{}, fyne.NewPos(1, 1))
	assert.False(t, ok)
}

func TestContainRect(t *testing.T) {
	pos, size, ok := ContainRect(fyne.NewSize(200, 200), image.Pt(100, 50), image.Rect(10, 5, 30, 15))
	assert.True(t, ok)
	assert.Equal(t, fyne.NewPos(20, 60), pos)
	assert.Equal(t, fyne.NewSize(40, 20), size)
}
