// Package camera owns the capture device lifecycle: acquiring a stream with
// the requested constraints, exposing its frames, and releasing it exactly once.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Errors returned by Acquire. Device implementations should wrap one of the
// first two so callers can tell a denied permission from a missing device.
var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	ErrSessionActive     = errors.New("camera session already active")
	ErrSessionReleased   = errors.New("camera session released")
)

// Facing is the preferred camera orientation.
type Facing string

// Facing preferences.
const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// Constraints describe the stream the caller wants.
type Constraints struct {
	Width  int
	Height int
	Facing Facing
}

// Stream is an opened device. Close turns the hardware indicator off.
type Stream interface {
	// Ready is closed once the first frame can be read.
	Ready() <-chan struct{}
	// Frame returns the most recent frame.
	Frame() (image.Image, error)
	// Resolution returns the negotiated frame size, which may differ from the constraints.
	Resolution() (width, height int)
	Close() error
}

// Device opens streams. Open may block (permission prompt, device warm-up);
// it must honor ctx cancellation.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Session is one acquisition of the device.
type Session struct {
	id      string
	stream  Stream
	width   int
	height  int
	active  atomic.Bool
	once    sync.Once
	onClose func(*Session)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Active reports whether the session still holds the device.
func (s *Session) Active() bool {
	return s != nil && s.active.Load()
}

// Resolution returns the negotiated frame size.
func (s *Session) Resolution() (int, int) {
	if s == nil {
		return 0, 0
	}
	return s.width, s.height
}

// Ready is closed when the device signals the first frame.
func (s *Session) Ready() <-chan struct{} {
	return s.stream.Ready()
}

// Frame returns the current frame, or ErrSessionReleased after Release.
func (s *Session) Frame() (image.Image, error) {
	if !s.Active() {
		return nil, ErrSessionReleased
	}
	img, err := s.stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("could not read frame: %w", err)
	}
	return img, nil
}

// Release closes the stream. It is safe to call any number of times,
// on a nil session, and concurrently; only the first call touches the device.
func (s *Session) Release() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.active.Store(false)
		err = s.stream.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
	if err != nil {
		return fmt.Errorf("could not close camera stream: %w", err)
	}
	return nil
}

// Manager serializes access to one device: at most one live session at a time.
type Manager struct {
	device  Device
	mu      sync.Mutex
	current *Session
	opening bool
}

// NewManager creates a manager for the given device.
func NewManager(device Device) *Manager {
	return &Manager{device: device}
}

// Acquire opens the device. It fails with ErrSessionActive while another
// session is open or being opened, and maps unknown device errors to
// ErrDeviceUnavailable.
func (m *Manager) Acquire(ctx context.Context, c Constraints) (*Session, error) {
	m.mu.Lock()
	if m.current != nil || m.opening {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	m.opening = true
	m.mu.Unlock()

	stream, err := m.device.Open(ctx, c)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.opening = false

	if err != nil {
		return nil, classifyOpenError(err)
	}

	s := &Session{id: uuid.NewString(), stream: stream, onClose: m.forget}
	s.width, s.height = stream.Resolution()
	s.active.Store(true)
	m.current = s
	return s, nil
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ReleaseAll releases the live session, if any.
func (m *Manager) ReleaseAll() error {
	return m.Current().Release()
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s {
		m.current = nil
	}
}

func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrDeviceUnavailable):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
}
