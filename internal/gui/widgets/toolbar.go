package widgets

import (
	"fmt"
	"image/color"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

type Toolbar struct {
	container      *fyne.Container
	openButton     *widget.Button
	cameraButton   *widget.Button
	startButton    *widget.Button
	stopButton     *widget.Button
	saveButton     *widget.Button
	strategySelect *widget.Select
	statusLabel    *widget.Label
	metricsLabel   *widget.Label

	openHandler     func()
	cameraHandler   func()
	startHandler    func()
	stopHandler     func()
	saveHandler     func()
	strategyHandler func(string)
}

func NewToolbar(strategies []string, current string) *Toolbar {
	toolbar := &Toolbar{}
	toolbar.createComponents(strategies, current)
	toolbar.buildLayout()
	return toolbar
}

func (t *Toolbar) createComponents(strategies []string, current string) {
	t.openButton = widget.NewButton("Open", t.onOpenClicked)
	t.cameraButton = widget.NewButton("Camera", t.onCameraClicked)

	t.startButton = widget.NewButton("Start", t.onStartClicked)
	t.startButton.Importance = widget.HighImportance
	t.stopButton = widget.NewButton("Stop", t.onStopClicked)
	t.stopButton.Disable()

	t.saveButton = widget.NewButton("Save", t.onSaveClicked)
	t.saveButton.Importance = widget.HighImportance
	t.saveButton.Disable()

	t.strategySelect = widget.NewSelect(strategies, nil)
	t.strategySelect.SetSelected(current)
	t.strategySelect.OnChanged = t.onStrategyChanged

	t.statusLabel = widget.NewLabel("Ready")
	t.metricsLabel = widget.NewLabel("PSNR: -- | SSIM: --")
}

func (t *Toolbar) buildLayout() {
	background := canvas.NewRectangle(color.RGBA{R: 250, G: 249, B: 245, A: 255})
	border := canvas.NewRectangle(color.Transparent)
	border.StrokeWidth = 1.0
	border.StrokeColor = color.RGBA{R: 231, G: 231, B: 231, A: 255}

	leftSection := container.NewHBox(t.openButton, t.cameraButton, t.saveButton)
	centerSection := container.NewHBox(t.startButton, t.stopButton, t.strategySelect)
	statusSection := container.NewHBox(t.statusLabel)
	rightSection := container.NewHBox(t.metricsLabel)

	content := container.NewBorder(
		nil, nil,
		leftSection,
		rightSection,
		container.NewHBox(centerSection, widget.NewSeparator(), statusSection),
	)

	t.container = container.NewStack(
		border,
		container.NewPadded(
			container.NewStack(background, container.NewPadded(content)),
		),
	)
}

func (t *Toolbar) onOpenClicked() {
	if t.openHandler != nil {
		t.openHandler()
	}
}

func (t *Toolbar) onCameraClicked() {
	if t.cameraHandler != nil {
		t.cameraHandler()
	}
}

func (t *Toolbar) onStartClicked() {
	if t.startHandler != nil {
		t.startHandler()
	}
}

func (t *Toolbar) onStopClicked() {
	if t.stopHandler != nil {
		t.stopHandler()
	}
}

func (t *Toolbar) onSaveClicked() {
	if t.saveHandler != nil {
		t.saveHandler()
	}
}

func (t *Toolbar) onStrategyChanged(name string) {
	if t.strategyHandler != nil {
		t.strategyHandler(name)
	}
}

func (t *Toolbar) GetContainer() *fyne.Container {
	return t.container
}

func (t *Toolbar) SetOpenHandler(handler func())   { t.openHandler = handler }
func (t *Toolbar) SetCameraHandler(handler func()) { t.cameraHandler = handler }
func (t *Toolbar) SetStartHandler(handler func())  { t.startHandler = handler }
func (t *Toolbar) SetStopHandler(handler func())   { t.stopHandler = handler }
func (t *Toolbar) SetSaveHandler(handler func())   { t.saveHandler = handler }

func (t *Toolbar) SetStrategyHandler(handler func(string)) {
	t.strategyHandler = handler
}

// SetRunning swaps the enabled state of Start and Stop.
func (t *Toolbar) SetRunning(running bool) {
	if running {
		t.startButton.Disable()
		t.stopButton.Enable()
	} else {
		t.startButton.Enable()
		t.stopButton.Disable()
	}
}

func (t *Toolbar) SetSaveEnabled(enabled bool) {
	if enabled {
		t.saveButton.Enable()
	} else {
		t.saveButton.Disable()
	}
}

func (t *Toolbar) SetStatus(status string) {
	t.statusLabel.SetText(status)
}

func (t *Toolbar) SetMetrics(psnr, ssim float64) {
	switch {
	case math.IsInf(psnr, 1):
		t.metricsLabel.SetText(fmt.Sprintf("PSNR: inf | SSIM: %.4f", ssim))
	case psnr > 0:
		t.metricsLabel.SetText(fmt.Sprintf("PSNR: %.2f dB | SSIM: %.4f", psnr, ssim))
	default:
		t.metricsLabel.SetText("PSNR: -- | SSIM: --")
	}
}
