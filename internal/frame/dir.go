package frame

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DirSource replays image files from a directory in name order, looping
// forever. It stands in for a camera in demos and kiosk rehearsals.
type DirSource struct {
	Dir     string
	MaxSize int

	mu    sync.Mutex
	files []string
	next  int
	seq   uint64
	open  bool
}

// NewDirSource creates a replay source for dir.
func NewDirSource(dir string, maxSize int) *DirSource {
	return &DirSource{Dir: dir, MaxSize: maxSize}
}

// isImageFile reports whether name has an extension Normalize can decode.
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}

// Open lists the directory. An empty or missing directory is an unavailable
// camera.
func (d *DirSource) Open(ctx context.Context) error {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return fmt.Errorf("reading frames directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			files = append(files, filepath.Join(d.Dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return errors.New("frames directory has no images")
	}
	sort.Strings(files)

	d.mu.Lock()
	d.files = files
	d.next = 0
	d.open = true
	d.mu.Unlock()
	return nil
}

// Capture returns the next file in the rotation.
func (d *DirSource) Capture(ctx context.Context) (*Frame, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, ErrNotOpen
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from listing the configured directory
	if err != nil {
		return nil, fmt.Errorf("reading frame %s: %w", filepath.Base(path), err)
	}
	normalized, err := Normalize(data, d.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("normalizing frame %s: %w", filepath.Base(path), err)
	}

	return &Frame{
		Data:        normalized,
		ContentType: "image/jpeg",
		CapturedAt:  time.Now(),
		Seq:         seq,
	}, nil
}

// Close stops the replay.
func (d *DirSource) Close() error {
	d.mu.Lock()
	d.open = false
	d.files = nil
	d.mu.Unlock()
	return nil
}
