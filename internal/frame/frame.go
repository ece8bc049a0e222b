// Package frame samples a camera frame into a fixed raster and encodes it as
// the data-URL payload the attendance backend decodes.
package frame

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
)

// Reference raster and codec settings.
const (
	DefaultWidth   = 320
	DefaultHeight  = 240
	DefaultQuality = 80
)

const jpegDataURLPrefix = "data:image/jpeg;base64,"

// ErrInvalidPayload is returned when a payload is not a base64 image data URL.
var ErrInvalidPayload = errors.New("invalid image payload")

// Source is anything that signals readiness and yields frames (camera.Session).
type Source interface {
	Ready() <-chan struct{}
	Frame() (image.Image, error)
}

// Payload is a textual image encoding prefixed with its media type,
// e.g. "data:image/jpeg;base64,/9j/4AAQ...".
type Payload string

// Sampler draws source frames onto a fixed-size raster.
type Sampler struct {
	Width  int
	Height int
}

// NewSampler creates a sampler for the given raster; non-positive sizes
// fall back to 320x240.
func NewSampler(width, height int) *Sampler {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &Sampler{Width: width, Height: height}
}

// Sample waits for the source to become ready and returns one frame scaled
// to the raster. There is no internal timeout; ctx bounds the wait.
func (s *Sampler) Sample(ctx context.Context, src Source) (*image.RGBA, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-src.Ready():
	}

	img, err := src.Frame()
	if err != nil {
		return nil, fmt.Errorf("could not sample frame: %w", err)
	}

	raster := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.CatmullRom.Scale(raster, raster.Bounds(), img, img.Bounds(), draw.Src, nil)
	return raster, nil
}

// Encode compresses the raster as JPEG at the given quality (1-100) and
// wraps it as a data URL.
func Encode(raster image.Image, quality int) (Payload, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}

	var sb strings.Builder
	sb.Grow(len(jpegDataURLPrefix) + base64.StdEncoding.EncodedLen(buf.Len()))
	sb.WriteString(jpegDataURLPrefix)
	sb.WriteString(base64.StdEncoding.EncodeToString(buf.Bytes()))
	return Payload(sb.String()), nil
}

// MediaType returns the media type named by the payload prefix.
func (p Payload) MediaType() string {
	header, _, ok := strings.Cut(string(p), ",")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	return mediaType
}

// Decode unwraps and decodes the payload image.
func (p Payload) Decode() (image.Image, error) {
	header, encoded, ok := strings.Cut(string(p), ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrInvalidPayload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return img, nil
}
