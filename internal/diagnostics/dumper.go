// Package diagnostics writes intermediate buffers to disk for inspection.
package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hallucinator/internal/imaging"
	"hallucinator/internal/logger"
)

// Dumper writes <dir>/<Label><sequence>.<ext>. A Dumper without a directory
// writes nothing.
type Dumper struct {
	dir    string
	ext    string
	codec  imaging.Codec
	logger logger.Logger
}

func NewDumper(dir, format string, codec imaging.Codec, log logger.Logger) *Dumper {
	ext := strings.TrimPrefix(strings.ToLower(format), ".")
	if ext == "" {
		ext = "png"
	}
	return &Dumper{dir: dir, ext: ext, codec: codec, logger: log}
}

func (d *Dumper) Enabled() bool {
	return d != nil && d.dir != ""
}

func (d *Dumper) Path(label string, seq int) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s%d.%s", label, seq, d.ext))
}

// Dump returns the written path, or "" when dumping is disabled.
func (d *Dumper) Dump(label string, seq int, buf *imaging.Buffer) (string, error) {
	if !d.Enabled() {
		return "", nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dump directory: %w", err)
	}

	path := d.Path(label, seq)
	if err := d.codec.Encode(buf, path); err != nil {
		return "", fmt.Errorf("failed to dump %s: %w", label, err)
	}

	d.logger.Debug("diagnostics", "buffer dumped", logger.Fields{"path": path, "width": buf.Width, "height": buf.Height})
	return path, nil
}
