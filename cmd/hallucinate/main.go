// Command hallucinate runs one reconstruction on a still image without the
// GUI: it builds the reference library, touches the image at -x,-y, writes
// the result and prints its quality against the plain magnification.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"

	"hallucinator/internal/config"
	"hallucinator/internal/logger"
	"hallucinator/internal/opencv"
	"hallucinator/internal/opencv/memory"
	"hallucinator/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hallucinate:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", os.Getenv("HALLUCINATOR_CONFIG"), "path to a TOML configuration file")
		input      = flag.String("input", "", "image to read the region from")
		x          = flag.Int("x", -1, "region centre column (default: image centre)")
		y          = flag.Int("y", -1, "region centre row (default: image centre)")
		scale      = flag.Int("scale", 0, "magnification factor (default: from config)")
		out        = flag.String("out", "hallucinated.png", "output image")
		strategy   = flag.String("strategy", "", "matching strategy (default: from config)")
		library    = flag.String("library", "", "reference asset directory (default: from config)")
	)
	flag.Parse()

	if *input == "" {
		flag.Usage()
		return fmt.Errorf("-input is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *scale > 0 {
		cfg.Matcher.Scale = *scale
	}
	if *strategy != "" {
		cfg.Matcher.Strategy = *strategy
	}
	if *library != "" {
		cfg.Library.Root = *library
	}

	log := logger.NewJSONLogger(logger.ParseLevel(cfg.Log.Level))
	mem := memory.NewManager(log)
	defer mem.Cleanup()

	coord, err := pipeline.NewCoordinator(cfg, opencv.NewProcessor(mem, log), log)
	if err != nil {
		return err
	}
	defer coord.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, err := coord.LoadLibrary(ctx)
	if err != nil {
		return err
	}
	if err := coord.OpenStill(*input); err != nil {
		return err
	}

	size := coord.Source().Size()
	touch := image.Pt(*x, *y)
	if touch.X < 0 {
		touch.X = size.X / 2
	}
	if touch.Y < 0 {
		touch.Y = size.Y / 2
	}
	if err := coord.Touch(touch); err != nil {
		return err
	}
	coord.Start()

	_, res, err := coord.Step(ctx)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("reconstruction was interrupted")
	}
	if err := coord.SaveResultToPath(*out); err != nil {
		return err
	}

	r := res.Outcome.Result
	fmt.Printf("library:   %d images, %d features\n", lib.Len(), lib.FeatureCount())
	fmt.Printf("region:    %v around %v, scale %d\n", res.Outcome.ROI, res.Outcome.Touch, cfg.Matcher.Scale)
	fmt.Printf("strategy:  %s (matched %d, unmatched %d, aborted %t)\n", r.Strategy, r.Matched, r.Unmatched, r.Aborted)
	fmt.Printf("timing:    extract %s, match %s\n", r.ExtractDuration, r.MatchDuration)
	fmt.Printf("quality:   %s\n", res.Report)
	fmt.Printf("written:   %s\n", *out)
	return nil
}
