package gui

import (
	"image"

	"hallucinator/internal/gui/widgets"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
)

type View struct {
	window     fyne.Window
	controller *Controller

	toolbar       *widgets.Toolbar
	imageDisplay  *widgets.ImageDisplay
	mainContainer *fyne.Container
}

func NewView(window fyne.Window, strategies []string, current string) *View {
	view := &View{
		window: window,
	}

	view.setupComponents(strategies, current)
	view.setupLayout()

	return view
}

func (v *View) SetController(controller *Controller) {
	v.controller = controller
	v.setupEventHandlers()
}

func (v *View) setupComponents(strategies []string, current string) {
	v.toolbar = widgets.NewToolbar(strategies, current)
	v.imageDisplay = widgets.NewImageDisplay()
}

func (v *View) setupLayout() {
	v.mainContainer = container.NewBorder(
		nil,
		v.toolbar.GetContainer(),
		nil, nil,
		v.imageDisplay.GetContainer(),
	)
}

func (v *View) setupEventHandlers() {
	if v.controller == nil {
		return
	}

	v.toolbar.SetOpenHandler(v.controller.OpenImage)
	v.toolbar.SetCameraHandler(v.controller.OpenCamera)
	v.toolbar.SetStartHandler(v.controller.StartProcessing)
	v.toolbar.SetStopHandler(v.controller.StopProcessing)
	v.toolbar.SetSaveHandler(v.controller.SaveImage)
	v.toolbar.SetStrategyHandler(v.controller.ChangeStrategy)

	v.imageDisplay.SetTapHandler(v.controller.Touch)
}

func (v *View) GetMainContainer() *fyne.Container {
	return v.mainContainer
}

func (v *View) SetFrame(img image.Image) {
	v.imageDisplay.SetFrame(img)
}

func (v *View) SetROI(r image.Rectangle) {
	v.imageDisplay.SetROI(r)
}

func (v *View) SetPreviewImage(img image.Image) {
	v.imageDisplay.SetPreviewImage(img)
}

func (v *View) SetStatus(status string) {
	v.toolbar.SetStatus(status)
}

func (v *View) SetRunning(running bool) {
	v.toolbar.SetRunning(running)
}

func (v *View) SetSaveEnabled(enabled bool) {
	v.toolbar.SetSaveEnabled(enabled)
}

func (v *View) SetMetrics(psnr, ssim float64) {
	v.toolbar.SetMetrics(psnr, ssim)
}

func (v *View) ShowError(title string, err error) {
	dialog.ShowError(err, v.window)
}

func (v *View) ShowFileDialog(callback func(fyne.URIReadCloser, error)) {
	dialog.ShowFileOpen(callback, v.window)
}

func (v *View) ShowSaveDialog(callback func(fyne.URIWriteCloser, error)) {
	dialog.ShowFileSave(callback, v.window)
}

func (v *View) Show() {
	v.window.SetContent(v.mainContainer)
	v.window.Show()
}
