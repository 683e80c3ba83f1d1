// Package capture delivers frames to the session: live camera frames through
// gocv, or a still image re-delivered on every read.
package capture

import (
	"context"
	"errors"
	"image"

	"hallucinator/internal/imaging"
)

var ErrClosed = errors.New("capture source closed")

// Source produces RGB frames. Read blocks until a frame is available or ctx
// is done.
type Source interface {
	Read(ctx context.Context) (*imaging.Buffer, error)
	Size() image.Point
	Close() error
}
