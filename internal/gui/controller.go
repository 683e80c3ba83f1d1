package gui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"hallucinator/internal/imaging"
	"hallucinator/internal/logger"
	"hallucinator/internal/pipeline"
	"hallucinator/internal/session"

	"fyne.io/fyne/v2"
)

// Coordinator is the part of pipeline.Coordinator the GUI drives.
type Coordinator interface {
	LoadStill(reader io.Reader, name string) error
	OpenCamera() error
	Touch(p image.Point) error
	ROI() (image.Rectangle, bool)
	Start()
	Stop()
	Enabled() bool
	Strategies() []string
	Strategy() string
	SetStrategy(name string) error
	SaveResult(w io.Writer, format string) error
	Run(ctx context.Context, l pipeline.Listener) error
}

// Controller turns toolbar actions and taps into coordinator calls and
// implements pipeline.Listener to push frames and results back to the view.
type Controller struct {
	view        *View
	coordinator Coordinator
	logger      logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

func NewController(coord Coordinator, log logger.Logger) *Controller {
	return &Controller{
		coordinator: coord,
		logger:      log,
	}
}

func (c *Controller) SetView(view *View) {
	c.view = view
}

// StartLoop runs the coordinator's frame loop until Shutdown.
func (c *Controller) StartLoop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.running.Add(1)
	go func() {
		defer c.running.Done()
		if err := c.coordinator.Run(ctx, c); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("Controller", err, logger.Fields{"operation": "frame_loop"})
		}
	}()
}

func (c *Controller) OpenImage() {
	c.view.ShowFileDialog(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			c.handleError("File selection error", err)
			return
		}
		if reader == nil {
			return
		}

		c.updateStatus("Loading image...")
		go func() {
			defer reader.Close()

			if err := c.coordinator.LoadStill(reader, reader.URI().Name()); err != nil {
				c.handleError("Image load error", err)
				c.updateStatus("Ready")
				return
			}
			c.updateStatus("Image loaded, tap a region")
		}()
	})
}

func (c *Controller) OpenCamera() {
	c.updateStatus("Opening camera...")
	go func() {
		if err := c.coordinator.OpenCamera(); err != nil {
			c.handleError("Camera error", err)
			c.updateStatus("Ready")
			return
		}
		c.updateStatus("Camera running, tap a region")
	}()
}

// Touch arms the region around a tapped frame pixel.
func (c *Controller) Touch(p image.Point) {
	if err := c.coordinator.Touch(p); err != nil {
		if errors.Is(err, session.ErrTouchOutOfBounds) {
			c.updateStatus("Too close to the border")
			return
		}
		c.handleError("Touch error", err)
		return
	}

	if roi, ok := c.coordinator.ROI(); ok {
		fyne.Do(func() {
			c.view.SetROI(roi)
		})
	}
	if c.coordinator.Enabled() {
		c.updateStatus(fmt.Sprintf("Hallucinating around %d,%d", p.X, p.Y))
	} else {
		c.updateStatus(fmt.Sprintf("Region %d,%d selected, press Start", p.X, p.Y))
	}
}

func (c *Controller) StartProcessing() {
	c.coordinator.Start()
	fyne.Do(func() {
		c.view.SetRunning(true)
	})
	c.updateStatus("Hallucination enabled")
}

func (c *Controller) StopProcessing() {
	c.coordinator.Stop()
	fyne.Do(func() {
		c.view.SetRunning(false)
		c.view.SetROI(image.Rectangle{})
	})
	c.updateStatus("Hallucination stopped")
}

func (c *Controller) ChangeStrategy(name string) {
	if err := c.coordinator.SetStrategy(name); err != nil {
		c.handleError("Strategy error", err)
		return
	}
	c.updateStatus("Strategy: " + name)
}

func (c *Controller) SaveImage() {
	c.view.ShowSaveDialog(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			c.handleError("File save error", err)
			return
		}
		if writer == nil {
			return
		}

		c.updateStatus("Saving image...")
		go func() {
			defer writer.Close()

			format := pipeline.FormatFromPath(writer.URI().Path())
			if err := c.coordinator.SaveResult(writer, format); err != nil {
				c.handleError("Image save error", err)
				return
			}
			c.updateStatus("Image saved")
		}()
	})
}

func (c *Controller) FrameReady(frame *imaging.Buffer) {
	img := imaging.ToImage(frame)
	fyne.Do(func() {
		c.view.SetFrame(img)
	})
}

func (c *Controller) ResultReady(res *pipeline.Result) {
	img := imaging.ToImage(res.Outcome.Result.Canvas)
	status := fmt.Sprintf("Reconstruction %d complete (%s)", res.Outcome.Sequence, res.Outcome.Result.Strategy)
	if res.Outcome.Result.Aborted {
		status = fmt.Sprintf("Reconstruction %d aborted, showing plain magnification", res.Outcome.Sequence)
	}

	fyne.Do(func() {
		c.view.SetPreviewImage(img)
		c.view.SetROI(image.Rectangle{})
		c.view.SetMetrics(res.Report.PSNR, res.Report.SSIM)
		c.view.SetSaveEnabled(true)
		c.view.SetStatus(status)
	})
}

func (c *Controller) Failed(err error) {
	c.logger.Error("Controller", err, logger.Fields{"operation": "frame"})
	c.updateStatus("Error: " + err.Error())
}

func (c *Controller) updateStatus(status string) {
	fyne.Do(func() {
		c.view.SetStatus(status)
	})
}

func (c *Controller) handleError(title string, err error) {
	c.logger.Error("Controller", err, logger.Fields{
		"title": title,
	})

	fyne.Do(func() {
		c.view.ShowError(title, err)
	})
}

func (c *Controller) Shutdown() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.running.Wait()
	c.logger.Info("Controller", "shutdown completed", nil)
}
