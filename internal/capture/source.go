package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

var (
	// ErrCameraUnavailable is returned when the frame source cannot be opened.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrNoFrame is returned when the source has not produced a frame yet.
	ErrNoFrame = errors.New("no frame available")
)

// FrameSource yields the most recent camera frame on demand.
type FrameSource interface {
	Open(ctx context.Context) error
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// StaticSource replays a fixed list of frames in order, wrapping around.
type StaticSource struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	open   bool
}

// NewStaticSource builds a source over frames.
func NewStaticSource(frames ...image.Image) *StaticSource {
	return &StaticSource{frames: frames}
}

func (s *StaticSource) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return fmt.Errorf("%w: no frames configured", ErrCameraUnavailable)
	}
	s.open = true
	return nil
}

func (s *StaticSource) Frame(context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, fmt.Errorf("%w: source closed", ErrCameraUnavailable)
	}
	frame := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return frame, nil
}

func (s *StaticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}
