package pipeline

import (
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"hallucinator/internal/imaging"
	"hallucinator/internal/logger"
)

// FormatFromPath picks the encoding for a file name; anything that is not
// JPEG is written as PNG.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return "png"
	}
}

// SaveResult writes the last reconstruction to w.
func (c *Coordinator) SaveResult(w io.Writer, format string) error {
	res := c.LastResult()
	if res == nil {
		return ErrNoResult
	}
	img := res.Outcome.Result.Canvas

	var err error
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		err = jpeg.Encode(w, imaging.ToImage(img), &jpeg.Options{Quality: 95})
	case "png", "":
		err = png.Encode(w, imaging.ToImage(img))
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		c.logger.Error("ImageSaver", err, logger.Fields{"format": format})
		return err
	}

	c.logger.Info("ImageSaver", "reconstruction saved", logger.Fields{"format": format, "sequence": res.Outcome.Sequence})
	return nil
}

// SaveResultToPath writes the last reconstruction with the frame codec.
func (c *Coordinator) SaveResultToPath(path string) error {
	res := c.LastResult()
	if res == nil {
		return ErrNoResult
	}
	if err := c.processor.Encode(res.Outcome.Result.Canvas, path); err != nil {
		c.logger.Error("ImageSaver", err, logger.Fields{"path": path})
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	c.logger.Info("ImageSaver", "reconstruction saved", logger.Fields{"path": path, "sequence": res.Outcome.Sequence})
	return nil
}
