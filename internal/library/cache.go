package library

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

const snapshotVersion = 1

var errStaleSnapshot = errors.New("snapshot does not match the asset tree")

type fileStamp struct {
	ID      string
	Size    int64
	ModTime int64
}

// fingerprint identifies everything a snapshot's features depend on.
type fingerprint struct {
	Version int
	Pattern string
	Depth   int
	Weights [5]float64
	Files   []fileStamp
}

func (f fingerprint) equal(o fingerprint) bool {
	return f.Version == o.Version &&
		f.Pattern == o.Pattern &&
		f.Depth == o.Depth &&
		f.Weights == o.Weights &&
		slices.Equal(f.Files, o.Files)
}

func (b *Builder) fingerprint(assets []asset) fingerprint {
	fp := fingerprint{
		Version: snapshotVersion,
		Pattern: b.opts.Pattern,
		Depth:   b.opts.Depth,
		Weights: b.extractor.Weights,
		Files:   make([]fileStamp, len(assets)),
	}
	for i, a := range assets {
		fp.Files[i] = fileStamp{ID: a.id, Size: a.size, ModTime: a.modTime.UnixNano()}
	}
	return fp
}

func loadSnapshot(path string, want fingerprint) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decompressor, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("unable to open decompressor: %w", err)
	}
	defer decompressor.Close()
	decoder := gob.NewDecoder(decompressor)

	var got fingerprint
	if err := decoder.Decode(&got); err != nil {
		return nil, fmt.Errorf("unable to decode snapshot fingerprint: %w", err)
	}
	if !got.equal(want) {
		return nil, errStaleSnapshot
	}

	var entries []*Entry
	if err := decoder.Decode(&entries); err != nil {
		return nil, fmt.Errorf("unable to decode snapshot entries: %w", err)
	}
	return New(entries), nil
}

// saveSnapshot writes through a temporary file so a crash never leaves a
// truncated snapshot behind.
func saveSnapshot(path string, fp fingerprint, lib *Library) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	compressor := gzip.NewWriter(tmp)
	encoder := gob.NewEncoder(compressor)
	if err := encoder.Encode(fp); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to encode snapshot fingerprint: %w", err)
	}
	if err := encoder.Encode(lib.Entries()); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to encode snapshot entries: %w", err)
	}
	if err := compressor.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
