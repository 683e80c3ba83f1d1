package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hallucinator/internal/feature"
	"hallucinator/internal/imaging"
	"hallucinator/internal/logger"
)

type Options struct {
	// Pattern is matched against base names; "*" accepts every supported
	// image.
	Pattern string
	Depth   int
	Workers int
	// CachePath enables the feature snapshot when set.
	CachePath string
}

type Builder struct {
	codec     imaging.Codec
	extractor *feature.Extractor
	opts      Options
	logger    logger.Logger
}

func NewBuilder(codec imaging.Codec, extractor *feature.Extractor, opts Options, log logger.Logger) *Builder {
	if opts.Pattern == "" {
		opts.Pattern = "*"
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Builder{
		codec:     codec,
		extractor: extractor,
		opts:      opts,
		logger:    log,
	}
}

type asset struct {
	path    string
	id      string
	size    int64
	modTime time.Time
}

// Build scans root and extracts features from every candidate image. A
// missing or empty root gives an empty library. Assets that fail to decode
// or extract are skipped.
func (b *Builder) Build(ctx context.Context, root string) (*Library, error) {
	start := time.Now()

	assets, err := b.scan(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		b.logger.Warning("library", "no reference images found", logger.Fields{"root": root, "pattern": b.opts.Pattern})
		return New(nil), nil
	}

	fp := b.fingerprint(assets)
	if b.opts.CachePath != "" {
		lib, err := loadSnapshot(b.opts.CachePath, fp)
		switch {
		case err == nil:
			b.logger.Info("library", "loaded feature cache", logger.Fields{
				"cache":    b.opts.CachePath,
				"entries":  lib.Len(),
				"features": lib.FeatureCount(),
			})
			return lib, nil
		case errors.Is(err, errStaleSnapshot), errors.Is(err, os.ErrNotExist):
			b.logger.Debug("library", "feature cache not usable", logger.Fields{"cache": b.opts.CachePath, "reason": err.Error()})
		default:
			b.logger.Warning("library", "failed to read feature cache", logger.Fields{"cache": b.opts.CachePath, "error": err.Error()})
		}
	}

	entries, err := b.extractAll(ctx, assets)
	if err != nil {
		return nil, err
	}
	lib := New(entries)

	b.logger.Info("library", "library built", logger.Fields{
		"root":     root,
		"entries":  lib.Len(),
		"skipped":  len(assets) - lib.Len(),
		"features": lib.FeatureCount(),
		"duration": time.Since(start),
	})

	if b.opts.CachePath != "" {
		if err := saveSnapshot(b.opts.CachePath, fp, lib); err != nil {
			b.logger.Warning("library", "failed to write feature cache", logger.Fields{"cache": b.opts.CachePath, "error": err.Error()})
		}
	}
	return lib, nil
}

func (b *Builder) scan(ctx context.Context, root string) ([]asset, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat library root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", root)
	}

	var assets []asset
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			b.logger.Warning("library", "skipping unreadable path", logger.Fields{"path": path, "error": walkErr.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !b.candidate(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			b.logger.Warning("library", "skipping unreadable file", logger.Fields{"path": path, "error": err.Error()})
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		assets = append(assets, asset{
			path:    path,
			id:      filepath.ToSlash(rel),
			size:    fi.Size(),
			modTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan library root %s: %w", root, err)
	}
	return assets, nil
}

func (b *Builder) candidate(name string) bool {
	if !imaging.IsSupportedFormat(name) {
		return false
	}
	ok, err := filepath.Match(b.opts.Pattern, name)
	return err == nil && ok
}

// extractAll decodes and extracts assets on the configured number of
// workers. Each result lands in the slot of its asset, so the outcome does
// not depend on scheduling.
func (b *Builder) extractAll(ctx context.Context, assets []asset) ([]*Entry, error) {
	entries := make([]*Entry, len(assets))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(b.opts.Workers, len(assets)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				entries[i] = b.load(assets[i])
			}
		}()
	}

	for i := range assets {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Builder) load(a asset) *Entry {
	img, err := b.codec.Decode(a.path)
	if err != nil {
		b.logger.Warning("library", "skipping undecodable image", logger.Fields{"path": a.path, "error": err.Error()})
		return nil
	}
	if img.Empty() {
		b.logger.Warning("library", "skipping zero-sized image", logger.Fields{"path": a.path})
		return nil
	}

	features, err := b.extractor.Extract(img, b.opts.Depth)
	if err != nil {
		b.logger.Warning("library", "skipping image after extraction failure", logger.Fields{"path": a.path, "error": err.Error()})
		return nil
	}

	b.logger.Debug("library", "reference image loaded", logger.Fields{
		"id":       a.id,
		"width":    img.Width,
		"height":   img.Height,
		"features": len(features),
	})
	return &Entry{ID: a.id, Original: img, Features: features}
}
