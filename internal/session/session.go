// Package session gates reconstruction behind the user's touch: a touch arms
// the session, the next frame runs one reconstruction of the region around
// it, and the session returns to idle.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"hallucinator/internal/imaging"
	"hallucinator/internal/library"
	"hallucinator/internal/logger"
	"hallucinator/internal/matcher"
)

var ErrTouchOutOfBounds = errors.New("touch too close to the frame border")

type State int

const (
	Idle State = iota
	Armed
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Hallucinator runs one reconstruction.
type Hallucinator interface {
	Hallucinate(ctx context.Context, roi *imaging.Buffer, scale int, lib *library.Library) (*matcher.Result, error)
}

// Dumper receives the intermediate buffers of every completed run.
type Dumper interface {
	Enabled() bool
	Dump(label string, seq int, buf *imaging.Buffer) (string, error)
}

type Options struct {
	HalfWidth  int
	HalfHeight int
	Scale      int
}

// Outcome describes one completed reconstruction.
type Outcome struct {
	Sequence int
	Touch    image.Point
	ROI      image.Rectangle
	Result   *matcher.Result
}

type Session struct {
	hallucinator Hallucinator
	lib          *library.Library
	dumper       Dumper
	opts         Options
	logger       logger.Logger

	mu         sync.Mutex
	enabled    bool
	state      State
	touch      image.Point
	hasTouch   bool
	frameSize  image.Point
	cancel     context.CancelFunc
	generation uint64
	sequence   int
}

func New(h Hallucinator, lib *library.Library, dumper Dumper, opts Options, log logger.Logger) *Session {
	if opts.Scale < 1 {
		opts.Scale = 1
	}
	return &Session{
		hallucinator: h,
		lib:          lib,
		dumper:       dumper,
		opts:         opts,
		logger:       log,
	}
}

func (s *Session) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	s.logger.Info("session", "hallucination enabled", nil)
}

// Disable returns to Idle, cancelling any reconstruction in flight.
func (s *Session) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	s.resetLocked()
	s.logger.Info("session", "hallucination disabled", nil)
}

// SetLibrary replaces the reference library used by later runs.
func (s *Session) SetLibrary(lib *library.Library) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lib = lib
}

func (s *Session) Library() *library.Library {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lib
}

func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetFrameSize records the frame dimensions touches are checked against. An
// armed region that no longer fits is dropped.
func (s *Session) SetFrameSize(size image.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameSize = size
	if s.state == Armed && !s.fitsLocked(s.touch) {
		s.hasTouch = false
		s.state = Idle
	}
}

// ROI returns the armed region, if any.
func (s *Session) ROI() (image.Rectangle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasTouch {
		return image.Rectangle{}, false
	}
	return s.rectLocked(s.touch), true
}

// Touch arms the session with the region centred on p. A touch while running
// cancels the current reconstruction and arms the new region.
func (s *Session) Touch(p image.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fitsLocked(p) {
		s.logger.Debug("session", "touch rejected", logger.Fields{"x": p.X, "y": p.Y, "frame": s.frameSize.String()})
		return fmt.Errorf("%w: %v in frame %v", ErrTouchOutOfBounds, p, s.frameSize)
	}

	if s.state == Running {
		s.cancel()
		s.generation++
		s.logger.Info("session", "reconstruction superseded by new touch", logger.Fields{"x": p.X, "y": p.Y})
	}
	s.touch = p
	s.hasTouch = true
	s.state = Armed
	return nil
}

// ProcessFrame runs one reconstruction when the session is enabled and
// armed, and returns nil otherwise. A run superseded by a touch or by Disable
// also returns nil.
func (s *Session) ProcessFrame(ctx context.Context, frame *imaging.Buffer) (*Outcome, error) {
	s.mu.Lock()
	if !s.enabled || s.state != Armed {
		s.mu.Unlock()
		return nil, nil
	}
	if frame.Size() != s.frameSize {
		s.frameSize = frame.Size()
		if !s.fitsLocked(s.touch) {
			s.hasTouch = false
			s.state = Idle
			s.mu.Unlock()
			return nil, nil
		}
	}

	touch := s.touch
	rect := s.rectLocked(touch)
	roi, err := frame.Crop(rect)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Running
	generation := s.generation
	lib := s.lib
	s.mu.Unlock()

	result, err := s.hallucinator.Hallucinate(runCtx, roi, s.opts.Scale, lib)
	cancel()

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return nil, nil
	}
	s.cancel = nil
	if err != nil {
		if ctx.Err() != nil {
			// interrupted from outside, the touch stays armed for a retry
			s.state = Armed
		} else {
			s.hasTouch = false
			s.state = Idle
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("reconstruction failed: %w", err)
	}
	s.sequence++
	outcome := &Outcome{Sequence: s.sequence, Touch: touch, ROI: rect, Result: result}
	s.hasTouch = false
	s.state = Idle
	s.mu.Unlock()

	s.dump(outcome, roi)
	return outcome, nil
}

func (s *Session) dump(o *Outcome, roi *imaging.Buffer) {
	if s.dumper == nil || !s.dumper.Enabled() {
		return
	}
	for _, d := range []struct {
		label string
		buf   *imaging.Buffer
	}{
		{"Initial", roi},
		{"Upsampled", o.Result.Upsampled},
		{"FinalImage", o.Result.Canvas},
	} {
		if _, err := s.dumper.Dump(d.label, o.Sequence, d.buf); err != nil {
			s.logger.Error("session", err, logger.Fields{"label": d.label, "sequence": o.Sequence})
		}
	}
}

func (s *Session) resetLocked() {
	if s.state == Running && s.cancel != nil {
		s.cancel()
		s.generation++
	}
	s.cancel = nil
	s.hasTouch = false
	s.state = Idle
}

func (s *Session) rectLocked(p image.Point) image.Rectangle {
	return image.Rect(p.X-s.opts.HalfWidth, p.Y-s.opts.HalfHeight, p.X+s.opts.HalfWidth, p.Y+s.opts.HalfHeight)
}

func (s *Session) fitsLocked(p image.Point) bool {
	if s.frameSize.X <= 0 || s.frameSize.Y <= 0 {
		return false
	}
	return s.rectLocked(p).In(image.Rectangle{Max: s.frameSize})
}
