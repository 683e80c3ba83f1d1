package widgets

import (
	"image"
	"image/color"
	"math"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// FrameView shows the live frame and reports taps in frame pixels.
type FrameView struct {
	widget.BaseWidget

	// OnTapped receives the frame pixel under a tap. Taps on the letterbox
	// are ignored.
	OnTapped func(image.Point)

	mu        sync.Mutex
	image     *canvas.Image
	marker    *canvas.Rectangle
	frameSize image.Point
	roi       image.Rectangle
}

func NewFrameView() *FrameView {
	v := &FrameView{
		image:  canvas.NewImageFromImage(nil),
		marker: canvas.NewRectangle(nil),
	}
	v.image.FillMode = canvas.ImageFillContain
	v.image.ScaleMode = canvas.ImageScaleFastest
	v.image.SetMinSize(fyne.NewSize(ImageAreaWidth, ImageAreaHeight))

	v.marker.FillColor = nil
	v.marker.StrokeColor = color.RGBA{R: 217, G: 119, B: 87, A: 255}
	v.marker.StrokeWidth = 2
	v.marker.Hide()

	v.ExtendBaseWidget(v)
	return v
}

func (v *FrameView) CreateRenderer() fyne.WidgetRenderer {
	return &frameViewRenderer{view: v, objects: []fyne.CanvasObject{v.image, v.marker}}
}

func (v *FrameView) SetFrame(img image.Image) {
	v.mu.Lock()
	v.image.Image = img
	if img != nil {
		v.frameSize = img.Bounds().Size()
	} else {
		v.frameSize = image.Point{}
	}
	v.mu.Unlock()
	v.Refresh()
}

// SetROI outlines r on the frame; an empty rectangle clears the outline.
func (v *FrameView) SetROI(r image.Rectangle) {
	v.mu.Lock()
	v.roi = r
	v.mu.Unlock()
	v.Refresh()
}

func (v *FrameView) Tapped(ev *fyne.PointEvent) {
	v.mu.Lock()
	size := v.frameSize
	v.mu.Unlock()

	p, ok := ContainPoint(v.Size(), size, ev.Position)
	if ok && v.OnTapped != nil {
		v.OnTapped(p)
	}
}

type frameViewRenderer struct {
	view    *FrameView
	objects []fyne.CanvasObject
}

func (r *frameViewRenderer) Layout(size fyne.Size) {
	r.view.image.Move(fyne.NewPos(0, 0))
	r.view.image.Resize(size)

	r.view.mu.Lock()
	frame, roi := r.view.frameSize, r.view.roi
	r.view.mu.Unlock()

	if roi.Empty() {
		r.view.marker.Hide()
		return
	}
	pos, markerSize, ok := ContainRect(size, frame, roi)
	if !ok {
		r.view.marker.Hide()
		return
	}
	r.view.marker.Move(pos)
	r.view.marker.Resize(markerSize)
	r.view.marker.Show()
}

func (r *frameViewRenderer) MinSize() fyne.Size {
	return r.view.image.MinSize()
}

func (r *frameViewRenderer) Refresh() {
	r.Layout(r.view.Size())
	canvas.Refresh(r.view.image)
	canvas.Refresh(r.view.marker)
}

func (r *frameViewRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *frameViewRenderer) Destroy() {}

// containScale returns the scale and offset canvas.ImageFillContain uses to
// draw an image of frame pixels inside area.
func containScale(area fyne.Size, frame image.Point) (scale float32, offset fyne.Position, ok bool) {
	if frame.X <= 0 || frame.Y <= 0 || area.Width <= 0 || area.Height <= 0 {
		return 0, fyne.Position{}, false
	}
	scale = float32(math.Min(float64(area.Width)/float64(frame.X), float64(area.Height)/float64(frame.Y)))
	offset = fyne.NewPos(
		(area.Width-float32(frame.X)*scale)/2,
		(area.Height-float32(frame.Y)*scale)/2,
	)
	return scale, offset, true
}

// ContainPoint maps a position inside area to the frame pixel drawn there.
func ContainPoint(area fyne.Size, frame image.Point, pos fyne.Position) (image.Point, bool) {
	scale, offset, ok := containScale(area, frame)
	if !ok {
		return image.Point{}, false
	}
	x := int(math.Floor(float64((pos.X - offset.X) / scale)))
	y := int(math.Floor(float64((pos.Y - offset.Y) / scale)))
	p := image.Pt(x, y)
	if !p.In(image.Rectangle{Max: frame}) {
		return image.Point{}, false
	}
	return p, true
}

// ContainRect maps a frame rectangle to its position and size inside area.
func ContainRect(area fyne.Size, frame image.Point, r image.Rectangle) (fyne.Position, fyne.Size, bool) {
	scale, offset, ok := containScale(area, frame)
	if !ok {
		return fyne.Position{}, fyne.Size{}, false
	}
	pos := fyne.NewPos(offset.X+float32(r.Min.X)*scale, offset.Y+float32(r.Min.Y)*scale)
	size := fyne.NewSize(float32(r.Dx())*scale, float32(r.Dy())*scale)
	return pos, size, true
}
