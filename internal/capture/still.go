package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"hallucinator/internal/imaging"
)

// Still is a Source that returns copies of a single image.
type Still struct {
	mu     sync.Mutex
	frame  *imaging.Buffer
	closed bool
}

func NewStill(frame *imaging.Buffer) (*Still, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("still frame: %w", err)
	}
	return &Still{frame: frame.Clone()}, nil
}

// OpenStill decodes path once.
func OpenStill(codec imaging.Codec, path string) (*Still, error) {
	frame, err := codec.Decode(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open still %s: %w", path, err)
	}
	return NewStill(frame)
}

func (s *Still) Read(ctx context.Context) (*imaging.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.frame.Clone(), nil
}

func (s *Still) Size() image.Point {
	return s.frame.Size()
}

func (s *Still) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
