package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// ImageDevice replays still images as camera frames. Path is a single image
// or a directory; directory images are served in name order, one per Frame call,
// wrapping around.
type ImageDevice struct {
	Path string
}

// NewImageDevice creates an image-backed device.
func NewImageDevice(path string) *ImageDevice {
	return &ImageDevice{Path: path}
}

// Open decodes the first frame before reporting ready.
func (d *ImageDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := listImages(d.Path)
	if err != nil {
		return nil, err
	}

	s := &imageStream{files: files, ready: make(chan struct{})}
	first, err := s.load(0)
	if err != nil {
		return nil, err
	}
	b := first.Bounds()
	s.width, s.height = b.Dx(), b.Dy()
	s.frames = map[int]image.Image{0: first}
	close(s.ready)
	return s, nil
}

// IsImageFile reports whether the path has a supported image extension.
func IsImageFile(path string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path)))
}

func listImages(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no image source configured", ErrDeviceUnavailable)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, mapFSError(err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, mapFSError(err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsImageFile(e.Name()) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrDeviceUnavailable, path)
	}
	slices.Sort(files)
	return files, nil
}

func mapFSError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

type imageStream struct {
	files  []string
	ready  chan struct{}
	width  int
	height int

	mu     sync.Mutex
	next   int
	frames map[int]image.Image
	closed bool
}

func (s *imageStream) load(i int) (image.Image, error) {
	f, err := os.Open(s.files[i]) //nolint:gosec // operator-configured camera source
	if err != nil {
		return nil, mapFSError(err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: could not decode %s: %v", ErrDeviceUnavailable, s.files[i], err)
	}
	return img, nil
}

func (s *imageStream) Ready() <-chan struct{} { return s.ready }

func (s *imageStream) Resolution() (int, int) { return s.width, s.height }

func (s *imageStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionReleased
	}

	i := s.next
	s.next = (s.next + 1) % len(s.files)

	if img, ok := s.frames[i]; ok {
		return img, nil
	}
	img, err := s.load(i)
	if err != nil {
		return nil, err
	}
	s.frames[i] = img
	return img, nil
}

func (s *imageStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.frames = nil
	return nil
}
