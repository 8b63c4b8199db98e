package audio

import (
	"errors"
	"strings"
)

// Errors reported by the capture pipeline. Start-time failures are returned
// to the caller wrapped with device/rate detail so a retry with different
// parameters is possible; they are never raised out of a running session.
var (
	// ErrDeviceNotFound means no usable input device was left after every
	// fallback rule was exhausted.
	ErrDeviceNotFound = errors.New("no usable audio input device")

	// ErrStreamOpenFailed means the platform rejected every candidate
	// sample rate for the selected device.
	ErrStreamOpenFailed = errors.New("failed to open audio stream at any candidate sample rate")

	// ErrNotActive is returned by Stop when no capture session is running.
	ErrNotActive = errors.New("capture not active")
)

// Device is an immutable snapshot of one audio endpoint. Snapshots are
// re-queried on demand and never cached across resolver calls, because
// indices shift when the OS audio topology changes.
type Device struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate int
	HostAPI           string
}

// HasInput reports whether the device can capture audio.
func (d Device) HasInput() bool {
	return d.MaxInputChannels > 0
}

// IsLoopback reports whether the device looks like a loopback endpoint that
// mirrors an output device's rendered audio.
func (d Device) IsLoopback() bool {
	return strings.Contains(strings.ToLower(d.Name), "loopback")
}

// StreamParams describes how a capture stream should be opened.
type StreamParams struct {
	DeviceIndex     int
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// Stream is one open platform capture stream. The capture goroutine owns the
// stream exclusively for its lifetime; Read blocks on the platform's native
// delivery mechanism and returns an interleaved frame batch. The returned
// slice is reused between calls, callers must copy what they keep.
type Stream interface {
	Start() error
	Read() ([]float32, error)
	Stop() error
	Close() error
}

// Backend abstracts one platform audio subsystem (WASAPI, ALSA/Pulse,
// CoreAudio via PortAudio's host-API layer). It is selected once at
// construction; tests supply fakes.
type Backend interface {
	Name() string
	Devices() ([]Device, error)
	DefaultInputIndex() (int, error)
	OpenStream(p StreamParams) (Stream, error)
	Close() error
}
