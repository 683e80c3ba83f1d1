package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"hallucinator/internal/capture"
	"hallucinator/internal/imaging"
	"hallucinator/internal/logger"
	"hallucinator/internal/session"
)

// Listener receives the output of Run. Calls come from Run's goroutines.
type Listener interface {
	FrameReady(frame *imaging.Buffer)
	ResultReady(res *Result)
	Failed(err error)
}

// Run polls the source at the configured interval, delivers every frame and
// starts a reconstruction when the session is armed. At most one
// reconstruction runs at a time; frames keep flowing while it does. Run
// returns when ctx is done or the coordinator shuts down.
func (c *Coordinator) Run(ctx context.Context, l Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	interval := c.cfg.Capture.PollInterval.Duration
	if interval <= 0 {
		interval = 40 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		wg   sync.WaitGroup
		busy atomic.Bool
	)
	defer wg.Wait()

	c.logger.Info("PipelineCoordinator", "frame loop started", logger.Fields{"interval": interval.String()})
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("PipelineCoordinator", "frame loop stopped", nil)
			return ctx.Err()
		case <-ticker.C:
		}

		if c.Source() == nil {
			continue
		}
		frame, err := c.readFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if errors.Is(err, capture.ErrClosed) {
				continue
			}
			l.Failed(err)
			continue
		}
		l.FrameReady(frame)

		if !c.session.Enabled() || c.session.State() != session.Armed {
			continue
		}
		if !busy.CompareAndSwap(false, true) {
			continue
		}
		wg.Add(1)
		go func(frame *imaging.Buffer) {
			defer wg.Done()
			defer busy.Store(false)

			res, err := c.process(ctx, frame)
			switch {
			case err != nil && ctx.Err() == nil:
				l.Failed(err)
			case res != nil:
				l.ResultReady(res)
			}
		}(frame)
	}
}
