package pipeline

import (
	"fmt"
	"io"

	"hallucinator/internal/capture"
	"hallucinator/internal/logger"
)

// OpenStill makes the image at path the frame source.
func (c *Coordinator) OpenStill(path string) error {
	still, err := capture.OpenStill(c.processor, path)
	if err != nil {
		c.logger.Error("ImageLoader", err, logger.Fields{"path": path})
		return err
	}
	c.SetSource(still)
	c.logger.Info("ImageLoader", "still image opened", logger.Fields{"path": path, "width": still.Size().X, "height": still.Size().Y})
	return nil
}

// LoadStill decodes an image stream, such as a file picked in the GUI, and
// makes it the frame source.
func (c *Coordinator) LoadStill(reader io.Reader, name string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	buf, err := c.processor.DecodeBytes(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	still, err := capture.NewStill(buf)
	if err != nil {
		return err
	}
	c.SetSource(still)

	c.logger.Info("ImageLoader", "image loaded", logger.Fields{
		"name":   name,
		"bytes":  len(data),
		"width":  still.Size().X,
		"height": still.Size().Y,
	})
	return nil
}

// OpenCamera makes the configured capture device the frame source.
func (c *Coordinator) OpenCamera() error {
	c.mu.RLock()
	open := c.openCamera
	c.mu.RUnlock()
	if open == nil {
		return fmt.Errorf("%w: camera capture is not available", ErrNoSource)
	}

	src, err := open(c.cfg.Capture.Device)
	if err != nil {
		c.logger.Error("ImageLoader", err, logger.Fields{"device": c.cfg.Capture.Device})
		return err
	}
	c.SetSource(src)
	return nil
}
