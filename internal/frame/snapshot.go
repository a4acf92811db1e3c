package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// maxSnapshotBytes caps a single snapshot download.
const maxSnapshotBytes = 16 << 20

// SnapshotSource pulls stills from a camera that serves its current frame
// over HTTP (the /snapshot.jpg endpoint most IP cameras expose).
type SnapshotSource struct {
	URL     string
	MaxSize int
	Client  *http.Client

	mu   sync.Mutex
	open bool
	seq  uint64
}

// NewSnapshotSource creates a snapshot source for url. Frames are normalized
// to fit within maxSize pixels.
func NewSnapshotSource(url string, maxSize int) *SnapshotSource {
	return &SnapshotSource{
		URL:     url,
		MaxSize: maxSize,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Open probes the camera once so an unreachable device fails fast.
func (s *SnapshotSource) Open(ctx context.Context) error {
	if s.URL == "" {
		return errors.New("camera snapshot URL is required")
	}
	if _, err := s.fetch(ctx); err != nil {
		return fmt.Errorf("probing camera: %w", err)
	}
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	return nil
}

// Capture downloads and normalizes the current still.
func (s *SnapshotSource) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		return nil, ErrNotOpen
	}

	data, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	normalized, err := Normalize(data, s.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("normalizing snapshot: %w", err)
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	return &Frame{
		Data:        normalized,
		ContentType: "image/jpeg",
		CapturedAt:  time.Now(),
		Seq:         seq,
	}, nil
}

// Close marks the source released. HTTP cameras hold no client-side handle.
func (s *SnapshotSource) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}

func (s *SnapshotSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := s.Client.Do(req) //nolint:gosec // URL comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("could not fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot body: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoFrame
	}
	return data, nil
}
