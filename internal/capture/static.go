package capture

import (
	"context"
	"sync"

	"github.com/Reecheble2022/flowswitch-verify/internal/identity"
)

// FrameQueue serves frames from an in-process queue. It backs tests and
// headless deployments where frames arrive over the transport instead of a
// local device.
type FrameQueue struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func NewFrameQueue(frames ...Frame) *FrameQueue {
	return &FrameQueue{frames: frames}
}

// Push queues another frame.
func (c *FrameQueue) Push(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
}

// Fail makes subsequent captures return err.
func (c *FrameQueue) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *FrameQueue) CaptureImage(_ context.Context) (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if len(c.frames) == 0 {
		// Device unavailable: silent none.
		return nil, nil
	}
	f := c.frames[0]
	c.frames = c.frames[1:]
	return &f, nil
}

// FixStore is a Locator fed by position reports from the transport. It
// holds the most recent fix; reading without one behaves as a device
// without geolocation.
type FixStore struct {
	mu     sync.Mutex
	coords *identity.Coordinates
}

func NewFixStore() *FixStore {
	return &FixStore{}
}

// Report records the latest device fix.
func (s *FixStore) Report(c identity.Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coords = &c
}

func (s *FixStore) CurrentPosition(_ context.Context) (identity.Coordinates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coords == nil {
		return identity.Coordinates{}, ErrNoFix
	}
	return *s.coords, nil
}

// StaticLocator reports a fixed position, or a fixed error.
type StaticLocator struct {
	Coords identity.Coordinates
	Err    error
}

func (l *StaticLocator) CurrentPosition(_ context.Context) (identity.Coordinates, error) {
	if l.Err != nil {
		return identity.Coordinates{}, l.Err
	}
	return l.Coords, nil
}
