package camera

import (
	"fmt"
	"slices"
	"sync"
)

// Opener builds a Device from the CAMERA_DEVICE setting.
type Opener func(device string) (Device, error)

var (
	sourcesMu sync.RWMutex
	sources   = map[string]Opener{
		"image": func(device string) (Device, error) { return NewImageDevice(device), nil },
	}
)

// RegisterSource makes a device source selectable by name.
// Sources that need cgo register themselves from build-tagged files.
func RegisterSource(name string, open Opener) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	sources[name] = open
}

// Sources lists the compiled-in source names.
func Sources() []string {
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewDevice resolves a source name (CAMERA_SOURCE) to a Device.
func NewDevice(source, device string) (Device, error) {
	sourcesMu.RLock()
	open, ok := sources[source]
	sourcesMu.RUnlock()
	if !ok {
		if source == "gocv" {
			return nil, fmt.Errorf("camera source %q not compiled in (build with -tags gocv)", source)
		}
		return nil, fmt.Errorf("unknown camera source %q (available: %v)", source, Sources())
	}
	return open(device)
}
