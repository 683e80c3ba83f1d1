package library

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hallucinator/internal/feature"
	"hallucinator/internal/imaging"
	"hallucinator/internal/imaging/imagingtest"
	"hallucinator/internal/logger"
	"hallucinator/internal/pyramid"
)

type countingCodec struct {
	*imagingtest.Processor
	decodes atomic.Int64
}

func (c *countingCodec) Decode(path string) (*imaging.Buffer, error) {
	c.decodes.Add(1)
	return c.Processor.Decode(path)
}

func newTestBuilder(codec imaging.Codec, opts Options) *Builder {
	extractor := feature.NewExtractor(pyramid.NewBuilder(imagingtest.New()), feature.DefaultWeights)
	return NewBuilder(codec, extractor, opts, logger.NewNop())
}

func writeImage(t *testing.T, path string, w, h int, seed uint32) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imagingtest.New().Encode(imagingtest.Noise(w, h, 3, seed), path))
}

func assetTree(t *testing.T) string {
	root := t.TempDir()
	writeImage(t, filepath.Join(root, "b_svg.png"), 8, 6, 1)
	writeImage(t, filepath.Join(root, "a_svg.png"), 6, 6, 2)
	writeImage(t, filepath.Join(root, "faces", "c_svg.png"), 5, 7, 3)
	writeImage(t, filepath.Join(root, "plain.png"), 4, 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken_svg.png"), []byte("not a png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes_svg.txt"), []byte("text"), 0o644))
	return root
}

func TestBuildScansRecursivelyAndFilters(t *testing.T) {
	root := assetTree(t)

	lib, err := newTestBuilder(imagingtest.New(), Options{Pattern: "*svg*", Depth: 2}).Build(context.Background(), root)
	require.NoError(t, err)

	ids := make([]string, 0, lib.Len())
	for _, e := range lib.Entries() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a_svg.png", "b_svg.png", "faces/c_svg.png"}, ids)

	entry, ok := lib.Get("faces/c_svg.png")
	require.True(t, ok)
	assert.Equal(t, 5, entry.Original.Width)
	assert.Equal(t, 7, entry.Original.Height)
	// 5x7 at depth 2: 35 + 6 + 1 records
	assert.Len(t, entry.Features, 42)

	total := 0
	for _, e := range lib.Entries() {
		total += len(e.Features)
	}
	assert.Equal(t, total, lib.FeatureCount())
	assert.False(t, lib.Empty())
}

func TestBuildDefaultPatternAcceptsAllImages(t *testing.T) {
	root := assetTree(t)

	lib, err := newTestBuilder(imagingtest.New(), Options{Depth: 1}).Build(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 4, lib.Len())
	_, ok := lib.Get("plain.png")
	assert.True(t, ok)
}

func TestBuildMissingOrEmptyRoot(t *testing.T) {
	b := newTestBuilder(imagingtest.New(), Options{Depth: 2})

	lib, err := b.Build(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.True(t, lib.Empty())
	assert.Zero(t, lib.Len())

	lib, err = b.Build(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, lib.Empty())
}

func TestBuildIsIndependentOfWorkerCount(t *testing.T) {
	root := assetTree(t)

	sequential, err := newTestBuilder(imagingtest.New(), Options{Depth: 2, Workers: 1}).Build(context.Background(), root)
	require.NoError(t, err)
	parallel, err := newTestBuilder(imagingtest.New(), Options{Depth: 2, Workers: 4}).Build(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, sequential.Entries(), parallel.Entries())
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestBuilder(imagingtest.New(), Options{Depth: 2}).Build(ctx, assetTree(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeatureCacheRoundTrip(t *testing.T) {
	root := assetTree(t)
	cache := filepath.Join(t.TempDir(), "cache", "features.gob.gz")
	codec := &countingCodec{Processor: imagingtest.New()}
	opts := Options{Pattern: "*svg*", Depth: 2, CachePath: cache}

	first, err := newTestBuilder(codec, opts).Build(context.Background(), root)
	require.NoError(t, err)
	require.FileExists(t, cache)
	decodes := codec.decodes.Load()
	assert.Equal(t, int64(4), decodes)

	second, err := newTestBuilder(codec, opts).Build(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, decodes, codec.decodes.Load(), "cached build must not decode")
	assert.Equal(t, first.Entries(), second.Entries())

	// a different depth invalidates the snapshot
	opts.Depth = 1
	_, err = newTestBuilder(codec, opts).Build(context.Background(), root)
	require.NoError(t, err)
	assert.Greater(t, codec.decodes.Load(), decodes)
}

func TestCorruptCacheIsRebuilt(t *testing.T) {
	root := assetTree(t)
	cache := filepath.Join(t.TempDir(), "features.gob.gz")
	require.NoError(t, os.WriteFile(cache, []byte("garbage"), 0o644))

	lib, err := newTestBuilder(imagingtest.New(), Options{Pattern: "*svg*", Depth: 2, CachePath: cache}).Build(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, lib.Len())
}

func TestNewDropsDuplicateIDs(t *testing.T) {
	a := &Entry{ID: "x", Features: make([]feature.ParentStructure, 2)}
	b := &Entry{ID: "x", Features: make([]feature.ParentStructure, 5)}
	c := &Entry{ID: "w", Features: make([]feature.ParentStructure, 1)}

	lib := New([]*Entry{a, nil, b, c})
	assert.Equal(t, 2, lib.Len())
	assert.Equal(t, 3, lib.FeatureCount())
	assert.Same(t, c, lib.At(0))
	got, _ := lib.Get("x")
	assert.Same(t, a, got)
}
