package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// portAudioBackend implements Backend on top of PortAudio, which fronts
// WASAPI on Windows, ALSA/PulseAudio on Linux, and CoreAudio on macOS.
type portAudioBackend struct{}

// NewPortAudioBackend initializes PortAudio and returns the production
// capture backend. Close must be called to terminate PortAudio.
func NewPortAudioBackend() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioBackend{}, nil
}

func (b *portAudioBackend) Name() string { return "portaudio" }

func (b *portAudioBackend) Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		hostAPI := ""
		if info.HostApi != nil {
			hostAPI = info.HostApi.Name
		}
		devices = append(devices, Device{
			Index:             i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: int(info.DefaultSampleRate),
			HostAPI:           hostAPI,
		})
	}
	return devices, nil
}

func (b *portAudioBackend) DefaultInputIndex() (int, error) {
	def, err := portaudio.DefaultInputDevice()
	if err != nil {
		return 0, fmt.Errorf("failed to get default input device: %w", err)
	}
	infos, err := portaudio.Devices()
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for i, info := range infos {
		if info == def {
			return i, nil
		}
	}
	return 0, fmt.Errorf("default input device not present in enumeration")
}

func (b *portAudioBackend) OpenStream(p StreamParams) (Stream, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if p.DeviceIndex < 0 || p.DeviceIndex >= len(infos) {
		return nil, fmt.Errorf("device index %d out of range (%d devices)", p.DeviceIndex, len(infos))
	}
	info := infos[p.DeviceIndex]

	buffer := make([]float32, p.FramesPerBuffer*p.Channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: p.Channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.SampleRate),
		FramesPerBuffer: p.FramesPerBuffer,
	}, buffer)
	if err != nil {
		return nil, err
	}

	return &portAudioStream{stream: stream, buffer: buffer}, nil
}

func (b *portAudioBackend) Close() error {
	return portaudio.Terminate()
}

type portAudioStream struct {
	stream *portaudio.Stream
	buffer []float32
}

func (s *portAudioStream) Start() error {
	return s.stream.Start()
}

// Read blocks until PortAudio has filled one buffer. The returned slice is
// the stream's internal double-buffer; the engine copies it before handing
// samples to the queue.
func (s *portAudioStream) Read() ([]float32, error) {
	if err := s.stream.Read(); err != nil {
		return nil, err
	}
	return s.buffer, nil
}

func (s *portAudioStream) Stop() error {
	return s.stream.Stop()
}

func (s *portAudioStream) Close() error {
	return s.stream.Close()
}
