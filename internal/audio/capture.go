package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// joinTimeout bounds how long Stop waits for the capture goroutine. If the
// join times out the session is still marked inactive and the stream handle
// is released best-effort.
const joinTimeout = 2 * time.Second

// Config describes one capture session.
type Config struct {
	// TargetSampleRate is the rate delivered to the queue, regardless of
	// what rate the device was opened at.
	TargetSampleRate int

	// ChunkSize is the number of frames per callback buffer.
	ChunkSize int

	// PreferredInput and PreferredOutput are optional device indices fed
	// to the resolver. A preferred output is mapped to its loopback twin.
	PreferredInput  *int
	PreferredOutput *int
}

// Engine owns one platform capture stream at a time. The capture goroutine
// converts raw frames to mono float32, resamples to the target rate when the
// device was opened at a different one, and pushes an independent copy of
// every block into the delivery queue. Exactly one session may be active per
// Engine.
type Engine struct {
	backend Backend
	log     zerolog.Logger
	queue   *Queue

	mu         sync.Mutex
	active     bool
	stop       chan struct{}
	done       chan struct{}
	stream     Stream
	deviceRate int
	targetRate int
}

// NewEngine creates a capture engine over the given backend.
func NewEngine(backend Backend, log zerolog.Logger) *Engine {
	return &Engine{
		backend: backend,
		log:     log,
		queue:   NewQueue(),
	}
}

// Start resolves a device, opens the stream, and begins delivering blocks to
// the queue. Calling Start while a session is active logs a warning and
// returns without restarting. Device and stream failures come back as
// structured errors wrapping ErrDeviceNotFound or ErrStreamOpenFailed.
func (e *Engine) Start(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active {
		e.log.Warn().Msg("Capture already active, ignoring start")
		return nil
	}
	if cfg.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive, got %d", cfg.TargetSampleRate)
	}
	if cfg.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}

	deviceIndex, ok := ResolveInputDevice(e.backend, cfg.PreferredInput, cfg.PreferredOutput, e.log)
	if !ok {
		var err error
		deviceIndex, err = fallbackInputDevice(e.backend, e.log)
		if err != nil {
			return err
		}
	}

	devices, err := e.backend.Devices()
	if err != nil || deviceIndex >= len(devices) {
		return fmt.Errorf("%w: device %d disappeared before open", ErrDeviceNotFound, deviceIndex)
	}
	device := devices[deviceIndex]

	channels := device.MaxInputChannels
	if channels > 2 {
		channels = 2
	}
	if channels < 1 {
		channels = 1
	}

	rates := candidateRates(cfg.TargetSampleRate, device.DefaultSampleRate)
	e.log.Info().Str("device", device.Name).Ints("rates", rates).
		Int("target", cfg.TargetSampleRate).Msg("Opening capture stream")

	var stream Stream
	var openedRate int
	var lastErr error
	for _, rate := range rates {
		stream, err = e.backend.OpenStream(StreamParams{
			DeviceIndex:     deviceIndex,
			SampleRate:      rate,
			Channels:        channels,
			FramesPerBuffer: cfg.ChunkSize,
		})
		if err == nil {
			openedRate = rate
			break
		}
		lastErr = err
		e.log.Warn().Err(err).Int("rate", rate).Msg("Stream open rejected, trying next rate")
	}
	if stream == nil {
		return fmt.Errorf("%w: device %d (%s), rates %v: %v",
			ErrStreamOpenFailed, deviceIndex, device.Name, rates, lastErr)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: device %d (%s): %v", ErrStreamOpenFailed, deviceIndex, device.Name, err)
	}

	// Each session gets a fresh queue and its own rate snapshot, so a
	// goroutine from a timed-out stop can never feed the new session.
	queue := NewQueue()
	e.queue = queue
	e.stream = stream
	e.deviceRate = openedRate
	e.targetRate = cfg.TargetSampleRate
	e.active = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})

	go e.captureLoop(stream, channels, queue, openedRate, cfg.TargetSampleRate, e.stop, e.done)

	e.log.Info().Int("device_rate", openedRate).Int("channels", channels).Msg("Capture started")
	return nil
}

// captureLoop is the capture thread. It blocks only on the stream's native
// read; per-block faults are logged and the block dropped, never allowed to
// terminate the session.
func (e *Engine) captureLoop(stream Stream, channels int, queue *Queue, deviceRate, targetRate int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		frames, err := stream.Read()
		if err != nil {
			select {
			case <-stop:
			default:
				e.log.Error().Err(err).Msg("Stream read failed, capture loop exiting")
			}
			return
		}
		e.deliver(frames, channels, queue, deviceRate, targetRate)
	}
}

// deliver converts one raw frame batch into a queued block. The queued block
// is always a copy, independent of the stream's reusable buffer.
func (e *Engine) deliver(frames []float32, channels int, queue *Queue, deviceRate, targetRate int) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("Block processing fault, dropping block")
		}
	}()

	var mono []float32
	if channels <= 1 {
		mono = make([]float32, len(frames))
		copy(mono, frames)
	} else {
		mono = downmix(frames, channels)
	}

	if deviceRate != targetRate && deviceRate > 0 {
		mono = Resample(mono, deviceRate, targetRate)
	}

	queue.Push(mono)
}

// Stop signals the capture goroutine to exit, waits up to joinTimeout for it
// to finish, then releases the stream. The session is marked inactive even
// if the join times out. A Stop without an active session returns
// ErrNotActive and performs no device operations.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		e.log.Warn().Msg("Capture not active, ignoring stop")
		return ErrNotActive
	}

	close(e.stop)

	select {
	case <-e.done:
	case <-time.After(joinTimeout):
		e.log.Warn().Dur("timeout", joinTimeout).Msg("Capture goroutine did not exit in time, releasing stream anyway")
	}

	if err := e.stream.Stop(); err != nil {
		e.log.Warn().Err(err).Msg("Stream stop failed")
	}
	if err := e.stream.Close(); err != nil {
		e.log.Warn().Err(err).Msg("Stream close failed")
	}
	e.stream = nil
	e.active = false

	e.log.Info().Msg("Capture stopped")
	return nil
}

// Active reports whether a capture session is running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// DeviceSampleRate returns the rate the current stream was opened at, which
// may differ from the target rate.
func (e *Engine) DeviceSampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deviceRate
}

// Chunk pulls the next available block from the current session's queue,
// waiting up to timeout. The second result is false when nothing arrived.
func (e *Engine) Chunk(timeout time.Duration) ([]float32, bool) {
	return e.currentQueue().Pop(timeout)
}

// Buffered returns the number of blocks waiting in the delivery queue.
func (e *Engine) Buffered() int {
	return e.currentQueue().Len()
}

// Drain discards all pending blocks and returns how many were dropped.
func (e *Engine) Drain() int {
	return e.currentQueue().Drain()
}

func (e *Engine) currentQueue() *Queue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue
}

// downmix averages interleaved multichannel frames into mono. The result is
// a fresh slice.
func downmix(frames []float32, channels int) []float32 {
	n := len(frames) / channels
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += frames[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// candidateRates builds the sample-rate ladder for stream opening: the
// target first, then the device default, then common rates in descending
// order, deduplicated.
func candidateRates(target, deviceDefault int) []int {
	preferred := []int{target, deviceDefault, 48000, 44100, 32000, 22050, 16000}
	rates := make([]int, 0, len(preferred))
	seen := make(map[int]bool)
	for _, r := range preferred {
		if r > 0 && !seen[r] {
			seen[r] = true
			rates = append(rates, r)
		}
	}
	return rates
}
