package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hallucinator/internal/capture"
	"hallucinator/internal/imaging"
	"hallucinator/internal/imaging/imagingtest"
)

type chanListener struct {
	frames  chan *imaging.Buffer
	results chan *Result
	errs    chan error
}

func newChanListener() *chanListener {
	return &chanListener{
		frames:  make(chan *imaging.Buffer, 64),
		results: make(chan *Result, 8),
		errs:    make(chan error, 8),
	}
}

func (l *chanListener) FrameReady(frame *imaging.Buffer) {
	select {
	case l.frames <- frame:
	default:
	}
}

func (l *chanListener) ResultReady(res *Result) { l.results <- res }

func (l *chanListener) Failed(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

func TestRunDeliversFramesAndResults(t *testing.T) {
	coord := newTestCoordinator(t, testConfig(t))
	_, err := coord.LoadLibrary(context.Background())
	require.NoError(t, err)

	still, err := capture.NewStill(imagingtest.Noise(16, 16, 3, 21))
	require.NoError(t, err)
	coord.SetSource(still)
	require.NoError(t, coord.Touch(image.Pt(8, 8)))
	coord.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	l := newChanListener()
	go func() { done <- coord.Run(ctx, l) }()

	select {
	case frame := <-l.frames:
		assert.Equal(t, image.Pt(16, 16), frame.Size())
	case <-time.After(5 * time.Second):
		t.Fatal("no frame delivered")
	}

	select {
	case res := <-l.results:
		assert.Equal(t, 1, res.Outcome.Sequence)
	case <-time.After(5 * time.Second):
		t.Fatal("no reconstruction delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunStopsOnShutdown(t *testing.T) {
	coord := newTestCoordinator(t, testConfig(t))

	done := make(chan error, 1)
	go func() { done <- coord.Run(context.Background(), newChanListener()) }()

	coord.Shutdown()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}
