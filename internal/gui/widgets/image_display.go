package widgets

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	ImageAreaWidth  = 500
	ImageAreaHeight = 400
)

// ImageDisplay puts the live frame next to the latest reconstruction.
type ImageDisplay struct {
	container    fyne.CanvasObject
	frameView    *FrameView
	previewImage *canvas.Image
	splitView    *container.Split
}

func NewImageDisplay() *ImageDisplay {
	display := &ImageDisplay{}
	display.createComponents()
	display.setupLayout()
	return display
}

func (id *ImageDisplay) createComponents() {
	id.frameView = NewFrameView()

	id.previewImage = canvas.NewImageFromImage(nil)
	id.previewImage.FillMode = canvas.ImageFillContain
	id.previewImage.ScaleMode = canvas.ImageScalePixels
	id.previewImage.SetMinSize(fyne.NewSize(ImageAreaWidth, ImageAreaHeight))
}

func (id *ImageDisplay) setupLayout() {
	frameContainer := container.NewBorder(
		widget.NewRichTextFromMarkdown("**Frame** (tap to select)"),
		nil, nil, nil,
		id.frameView,
	)

	previewContainer := container.NewBorder(
		widget.NewRichTextFromMarkdown("**Hallucinated**"),
		nil, nil, nil,
		id.previewImage,
	)

	id.splitView = container.NewHSplit(frameContainer, previewContainer)
	id.splitView.SetOffset(0.5)
	id.container = id.splitView
}

func (id *ImageDisplay) GetContainer() fyne.CanvasObject {
	return id.container
}

func (id *ImageDisplay) SetTapHandler(handler func(image.Point)) {
	id.frameView.OnTapped = handler
}

func (id *ImageDisplay) SetFrame(img image.Image) {
	id.frameView.SetFrame(img)
}

func (id *ImageDisplay) SetROI(r image.Rectangle) {
	id.frameView.SetROI(r)
}

func (id *ImageDisplay) SetPreviewImage(img image.Image) {
	id.previewImage.Image = img
	id.previewImage.Refresh()
}
