package diagnostics

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hallucinator/internal/imaging"
	"hallucinator/internal/imaging/imagingtest"
	"hallucinator/internal/logger"
)

func TestDumpNaming(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	d := NewDumper(dir, ".PNG", imagingtest.New(), logger.NewNop())
	require.True(t, d.Enabled())

	path, err := d.Dump("FinalImage", 3, imagingtest.Noise(4, 3, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "FinalImage3.png"), path)
	assert.FileExists(t, path)

	back, err := imagingtest.New().Decode(path)
	require.NoError(t, err)
	assert.Equal(t, 4, back.Width)
	assert.Equal(t, 3, back.Height)
}

func TestDisabledDumperWritesNothing(t *testing.T) {
	d := NewDumper("", "png", imagingtest.New(), logger.NewNop())
	assert.False(t, d.Enabled())

	path, err := d.Dump("Initial", 1, imagingtest.Noise(2, 2, 3, 2))
	require.NoError(t, err)
	assert.Empty(t, path)

	var nilDumper *Dumper
	assert.False(t, nilDumper.Enabled())
}

func TestDumpRejectsInvalidBuffer(t *testing.T) {
	d := NewDumper(t.TempDir(), "png", imagingtest.New(), logger.NewNop())

	_, err := d.Dump("Initial", 1, imaging.NewBuffer(0, 0, 3))
	assert.ErrorIs(t, err, imaging.ErrInvalidInput)
}
