package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"hallucinator/internal/imaging"
	"hallucinator/internal/logger"
	"hallucinator/internal/opencv/bridge"
	"hallucinator/internal/opencv/conversion"
	"hallucinator/internal/opencv/memory"

	"gocv.io/x/gocv"
)

// Camera reads frames from a video device. Reads are serialised; gocv's
// VideoCapture is not safe for concurrent use.
type Camera struct {
	mu      sync.Mutex
	device  int
	capture *gocv.VideoCapture
	frame   gocv.Mat
	size    image.Point
	memory  *memory.Manager
	logger  logger.Logger
	closed  bool
}

func OpenCamera(device int, mgr *memory.Manager, log logger.Logger) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d is not available", device)
	}

	size := image.Pt(int(vc.Get(gocv.VideoCaptureFrameWidth)), int(vc.Get(gocv.VideoCaptureFrameHeight)))
	log.Info("capture", "camera opened", logger.Fields{"device": device, "width": size.X, "height": size.Y})

	return &Camera{
		device:  device,
		capture: vc,
		frame:   gocv.NewMat(),
		size:    size,
		memory:  mgr,
		logger:  log,
	}, nil
}

func (c *Camera) Read(ctx context.Context) (*imaging.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, fmt.Errorf("camera %d returned no frame", c.device)
	}

	arena := c.memory.NewArena("capture")
	defer arena.Release()

	rgb, err := conversion.SwapRedBlue(arena, &c.frame)
	if err != nil {
		return nil, err
	}
	buf, err := bridge.MatToBuffer(arena, rgb)
	if err != nil {
		return nil, err
	}
	c.size = buf.Size()
	return buf, nil
}

// Size is the size of the last frame read, or the size the device reported
// when it was opened.
func (c *Camera) Size() image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.frame.Close()
	err := c.capture.Close()
	c.logger.Info("capture", "camera closed", logger.Fields{"device": c.device})
	return err
}
