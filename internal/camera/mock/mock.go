// Package mock provides a scriptable camera device for tests.
package mock

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/kozaktomas/attendance-kiosk/internal/camera"
)

// Device is a camera.Device whose behavior is set by its exported fields.
type Device struct {
	mu sync.Mutex

	// OpenError is returned by Open when set
	OpenError  error
	// HoldReady keeps streams un-ready until SignalReady is called
	HoldReady  bool
	// BlockOpen makes Open wait for ctx cancellation
	BlockOpen  bool
	// FrameError is returned by Frame when set
	FrameError error
	// Image is served by Frame (defaults to a 640x480 gradient)
	Image      image.Image

	opens   int
	closes  int
	streams []*Stream
}

// NewDevice creates a mock device with a default frame.
func NewDevice() *Device {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := range 480 {
		for x := range 640 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return &Device{Image: img}
}

// Open implements camera.Device.
func (d *Device) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	d.mu.Lock()
	block := d.BlockOpen
	openErr := d.OpenError
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if openErr != nil {
		return nil, openErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	s := &Stream{device: d, ready: make(chan struct{})}
	if !d.HoldReady {
		close(s.ready)
		s.readied = true
	}
	d.streams = append(d.streams, s)
	return s, nil
}

// SetHoldReady changes HoldReady for streams opened afterwards.
func (d *Device) SetHoldReady(hold bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.HoldReady = hold
}

// SetOpenError changes the error returned by later Open calls.
func (d *Device) SetOpenError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenError = err
}

// SignalReady marks every open stream ready.
func (d *Device) SignalReady() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.streams {
		if !s.readied {
			s.readied = true
			close(s.ready)
		}
	}
}

// Opens returns how many streams were opened.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Closes returns how many times a stream was closed, counting repeats.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Stream is a mock camera.Stream.
type Stream struct {
	device  *Device
	ready   chan struct{}
	readied bool
	closed  bool
}

// Ready implements camera.Stream.
func (s *Stream) Ready() <-chan struct{} { return s.ready }

// Resolution implements camera.Stream.
func (s *Stream) Resolution() (int, int) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	b := s.device.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Frame implements camera.Stream.
func (s *Stream) Frame() (image.Image, error) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if s.closed {
		return nil, camera.ErrSessionReleased
	}
	if s.device.FrameError != nil {
		return nil, s.device.FrameError
	}
	return s.device.Image, nil
}

// Close implements camera.Stream. Every call is counted so tests can
// detect double releases reaching the device.
func (s *Stream) Close() error {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.device.closes++
	s.closed = true
	return nil
}
