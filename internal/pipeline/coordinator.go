// Package pipeline wires the reference library, reconstructor, session,
// diagnostics and frame source into the coordinator both binaries drive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"hallucinator/internal/algorithms"
	"hallucinator/internal/capture"
	"hallucinator/internal/config"
	"hallucinator/internal/diagnostics"
	"hallucinator/internal/feature"
	"hallucinator/internal/imaging"
	"hallucinator/internal/library"
	"hallucinator/internal/logger"
	"hallucinator/internal/matcher"
	"hallucinator/internal/metrics"
	"hallucinator/internal/pyramid"
	"hallucinator/internal/session"
)

var (
	ErrNoSource = errors.New("no frame source")
	ErrNoResult = errors.New("no reconstruction to save")
)

// CameraOpener opens a live frame source for a device index.
type CameraOpener func(device int) (capture.Source, error)

// Result is one completed reconstruction with its quality against the plain
// magnification.
type Result struct {
	Outcome *session.Outcome
	Report  metrics.Report
}

type Coordinator struct {
	cfg           config.Config
	processor     imaging.Processor
	logger        logger.Logger
	strategies    *algorithms.Manager
	extractor     *feature.Extractor
	reconstructor *matcher.Reconstructor
	dumper        *diagnostics.Dumper
	session       *session.Session
	openCamera    CameraOpener

	mu     sync.RWMutex
	source capture.Source
	last   *Result

	ctx    context.Context
	cancel context.CancelFunc
}

func NewCoordinator(cfg config.Config, proc imaging.Processor, log logger.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	filter, err := imaging.ParseFilter(cfg.Matcher.Filter)
	if err != nil {
		return nil, err
	}

	strategies := algorithms.NewManager()
	if err := strategies.SetCurrent(cfg.Matcher.Strategy); err != nil {
		return nil, err
	}

	extractor := feature.NewExtractor(pyramid.NewBuilder(proc), cfg.WeightVector())
	reconstructor := matcher.NewReconstructor(proc, extractor, strategies, matcher.Options{
		Depth:   cfg.Features.Depth,
		Filter:  filter,
		Workers: cfg.Matcher.Workers,
	}, log)
	dumper := diagnostics.NewDumper(cfg.Diagnostics.DumpDir, cfg.Diagnostics.Format, proc, log)
	sess := session.New(reconstructor, library.New(nil), dumper, session.Options{
		HalfWidth:  cfg.Session.ROIHalfWidth,
		HalfHeight: cfg.Session.ROIHalfHeight,
		Scale:      cfg.Matcher.Scale,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	coord := &Coordinator{
		cfg:           cfg,
		processor:     proc,
		logger:        log,
		strategies:    strategies,
		extractor:     extractor,
		reconstructor: reconstructor,
		dumper:        dumper,
		session:       sess,
		ctx:           ctx,
		cancel:        cancel,
	}

	log.Info("PipelineCoordinator", "initialized", logger.Fields{
		"strategy": cfg.Matcher.Strategy,
		"scale":    cfg.Matcher.Scale,
		"depth":    cfg.Features.Depth,
		"dumps":    dumper.Enabled(),
	})
	return coord, nil
}

// SetCameraOpener enables OpenCamera.
func (c *Coordinator) SetCameraOpener(open CameraOpener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openCamera = open
}

// LoadLibrary builds the reference library from the configured asset tree
// and hands it to the session.
func (c *Coordinator) LoadLibrary(ctx context.Context) (*library.Library, error) {
	builder := library.NewBuilder(c.processor, c.extractor, library.Options{
		Pattern:   c.cfg.Library.Pattern,
		Depth:     c.cfg.Features.Depth,
		Workers:   c.cfg.Library.Workers,
		CachePath: c.cfg.Library.Cache,
	}, c.logger)

	start := time.Now()
	lib, err := builder.Build(ctx, c.cfg.Library.Root)
	if err != nil {
		c.logger.Error("PipelineCoordinator", err, logger.Fields{"operation": "load_library"})
		return nil, fmt.Errorf("failed to build library: %w", err)
	}
	c.session.SetLibrary(lib)

	c.logger.Info("PipelineCoordinator", "library loaded", logger.Fields{
		"root":      c.cfg.Library.Root,
		"entries":   lib.Len(),
		"features":  lib.FeatureCount(),
		"load_time": time.Since(start),
	})
	return lib, nil
}

func (c *Coordinator) Library() *library.Library {
	return c.session.Library()
}

func (c *Coordinator) Strategies() []string {
	return c.strategies.Available()
}

func (c *Coordinator) Strategy() string {
	return c.strategies.Current().Name()
}

func (c *Coordinator) SetStrategy(name string) error {
	if err := c.strategies.SetCurrent(name); err != nil {
		return err
	}
	c.logger.Info("PipelineCoordinator", "strategy changed", logger.Fields{"strategy": name})
	return nil
}

// SetSource replaces the frame source and closes the previous one.
func (c *Coordinator) SetSource(src capture.Source) {
	c.mu.Lock()
	prev := c.source
	c.source = src
	c.mu.Unlock()

	if prev != nil && prev != src {
		if err := prev.Close(); err != nil {
			c.logger.Warning("PipelineCoordinator", "failed to close previous source", logger.Fields{"error": err.Error()})
		}
	}
	if src != nil {
		c.session.SetFrameSize(src.Size())
	}
}

func (c *Coordinator) Source() capture.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Touch arms the session at a frame pixel.
func (c *Coordinator) Touch(p image.Point) error {
	return c.session.Touch(p)
}

// Start and Stop toggle hallucination, like the menu items of the same name.
func (c *Coordinator) Start() {
	c.session.Enable()
}

func (c *Coordinator) Stop() {
	c.session.Disable()
}

func (c *Coordinator) Enabled() bool {
	return c.session.Enabled()
}

func (c *Coordinator) State() session.State {
	return c.session.State()
}

func (c *Coordinator) ROI() (image.Rectangle, bool) {
	return c.session.ROI()
}

func (c *Coordinator) LastResult() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Step reads one frame and runs the session on it. The result is nil when
// the session had nothing to do.
func (c *Coordinator) Step(ctx context.Context) (*imaging.Buffer, *Result, error) {
	frame, err := c.readFrame(ctx)
	if err != nil {
		return nil, nil, err
	}
	res, err := c.process(ctx, frame)
	return frame, res, err
}

func (c *Coordinator) readFrame(ctx context.Context) (*imaging.Buffer, error) {
	src := c.Source()
	if src == nil {
		return nil, ErrNoSource
	}
	frame, err := src.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	c.session.SetFrameSize(frame.Size())
	return frame, nil
}

func (c *Coordinator) process(ctx context.Context, frame *imaging.Buffer) (*Result, error) {
	outcome, err := c.session.ProcessFrame(ctx, frame)
	if err != nil {
		c.logger.Error("PipelineCoordinator", err, logger.Fields{"operation": "process_frame"})
		return nil, err
	}
	if outcome == nil {
		return nil, nil
	}

	res := &Result{Outcome: outcome}
	report, err := metrics.Compare(outcome.Result.Upsampled, outcome.Result.Canvas)
	if err != nil {
		c.logger.Warning("PipelineCoordinator", "quality report unavailable", logger.Fields{"error": err.Error()})
	} else {
		res.Report = report
	}

	c.mu.Lock()
	c.last = res
	c.mu.Unlock()

	c.logger.Info("PipelineCoordinator", "frame reconstructed", logger.Fields{
		"sequence": outcome.Sequence,
		"x":        outcome.Touch.X,
		"y":        outcome.Touch.Y,
		"strategy": outcome.Result.Strategy,
		"aborted":  outcome.Result.Aborted,
		"psnr":     report.PSNR,
	})
	return res, nil
}

// Shutdown stops hallucination, ends Run loops and closes the source.
func (c *Coordinator) Shutdown() {
	c.logger.Info("PipelineCoordinator", "shutdown started", nil)

	c.cancel()
	c.session.Disable()
	c.SetSource(nil)

	c.logger.Info("PipelineCoordinator", "shutdown completed", nil)
}
