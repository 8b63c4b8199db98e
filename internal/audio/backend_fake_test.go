package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeStream plays back scripted frame batches, then produces silence at a
// steady cadence until closed, like a real capture stream would.
type fakeStream struct {
	batches  [][]float32
	channels int
	frames   int

	mu     sync.Mutex
	idx    int
	quit   chan struct{}
	closed sync.Once
}

func newFakeStream(channels, frames int, batches ...[]float32) *fakeStream {
	return &fakeStream{
		batches:  batches,
		channels: channels,
		frames:   frames,
		quit:     make(chan struct{}),
	}
}

func (s *fakeStream) Start() error { return nil }

func (s *fakeStream) Read() ([]float32, error) {
	s.mu.Lock()
	if s.idx < len(s.batches) {
		batch := s.batches[s.idx]
		s.idx++
		s.mu.Unlock()
		return batch, nil
	}
	s.mu.Unlock()

	select {
	case <-s.quit:
		return nil, errors.New("stream closed")
	case <-time.After(10 * time.Millisecond):
		return make([]float32, s.frames*s.channels), nil
	}
}

func (s *fakeStream) Stop() error { return nil }

func (s *fakeStream) Close() error {
	s.closed.Do(func() { close(s.quit) })
	return nil
}

// fakeBackend serves a fixed device list and a scripted stream. Rates in
// rejectRates fail to open, so tests can drive the candidate ladder.
type fakeBackend struct {
	devices      []Device
	defaultIndex int
	defaultErr   error
	rejectRates  map[int]bool
	stream       *fakeStream

	mu     sync.Mutex
	opened []StreamParams
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Devices() ([]Device, error) {
	out := make([]Device, len(b.devices))
	copy(out, b.devices)
	return out, nil
}

func (b *fakeBackend) DefaultInputIndex() (int, error) {
	if b.defaultErr != nil {
		return 0, b.defaultErr
	}
	return b.defaultIndex, nil
}

func (b *fakeBackend) OpenStream(p StreamParams) (Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectRates[p.SampleRate] {
		return nil, fmt.Errorf("sample rate %d not supported", p.SampleRate)
	}
	b.opened = append(b.opened, p)
	if b.stream == nil {
		b.stream = newFakeStream(p.Channels, p.FramesPerBuffer)
	}
	return b.stream, nil
}

func (b *fakeBackend) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.opened)
}

func (b *fakeBackend) lastOpened() StreamParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened[len(b.opened)-1]
}

func (b *fakeBackend) Close() error { return nil }
