//go:build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

func init() {
	RegisterSource("gocv", func(device string) (Device, error) {
		id := 0
		if device != "" {
			n, err := strconv.Atoi(device)
			if err != nil {
				return nil, fmt.Errorf("invalid webcam index %q: %w", device, err)
			}
			id = n
		}
		return &WebcamDevice{DeviceID: id}, nil
	})
}

// WebcamDevice captures from a local webcam through OpenCV.
type WebcamDevice struct {
	DeviceID int
}

// Open starts the capture and reports ready once the first non-empty frame is read.
func (d *WebcamDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	webcam, err := gocv.OpenVideoCapture(d.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open camera %d: %v", ErrDeviceUnavailable, d.DeviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("%w: camera %d did not open", ErrDeviceUnavailable, d.DeviceID)
	}

	if c.Width > 0 && c.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}

	s := &webcamStream{
		webcam: webcam,
		width:  int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		height: int(webcam.Get(gocv.VideoCaptureFrameHeight)),
		ready:  make(chan struct{}),
	}
	go s.warmUp(ctx)
	return s, nil
}

type webcamStream struct {
	mu     sync.Mutex
	webcam *gocv.VideoCapture
	width  int
	height int
	ready  chan struct{}
}

// warmUp reads until the device produces a frame; the first frames of many
// webcams are empty.
func (s *webcamStream) warmUp(ctx context.Context) {
	mat := gocv.NewMat()
	defer mat.Close()
	for ctx.Err() == nil {
		s.mu.Lock()
		if s.webcam == nil {
			s.mu.Unlock()
			return
		}
		ok := s.webcam.Read(&mat)
		s.mu.Unlock()
		if ok && !mat.Empty() {
			close(s.ready)
			return
		}
	}
}

func (s *webcamStream) Ready() <-chan struct{} { return s.ready }

func (s *webcamStream) Resolution() (int, int) { return s.width, s.height }

func (s *webcamStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.webcam == nil {
		return nil, ErrSessionReleased
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := s.webcam.Read(&mat); !ok || mat.Empty() {
		return nil, errors.New("failed to read frame from camera")
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("could not convert frame: %w", err)
	}
	return img, nil
}

func (s *webcamStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.webcam != nil {
		err := s.webcam.Close()
		s.webcam = nil
		return err
	}
	return nil
}
