package app

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/castilloj/audio-transcribe/internal/audio"
	"github.com/castilloj/audio-transcribe/internal/config"
	"github.com/castilloj/audio-transcribe/internal/metrics"
	"github.com/castilloj/audio-transcribe/internal/transcription"
)

var (
	// ErrCaptureActive is returned by StartCapture while a run is in
	// progress.
	ErrCaptureActive = errors.New("capture already active")

	// ErrCaptureNotActive is returned by StopCapture when nothing is
	// running.
	ErrCaptureNotActive = errors.New("capture not active")
)

// pollInterval bounds the consumer's wait on the delivery queue so it can
// notice a stop request.
const pollInterval = 200 * time.Millisecond

// Status is a snapshot of the pipeline for the transport layer.
type Status struct {
	IsCapturing        bool `json:"is_capturing"`
	QueueDepth         int  `json:"queue_depth"`
	PendingTranscripts int  `json:"pending_transcripts"`
	DeviceSampleRate   int  `json:"device_sample_rate"`
	TargetSampleRate   int  `json:"target_sample_rate"`
}

// App wires the capture engine to the realtime transcriber and holds
// finished transcript records for the transport layer. Each capture run is
// an explicit session owned by this instance; there is no ambient global
// state, so independent instances never cross-contaminate.
type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	met     *metrics.Metrics
	backend audio.Backend
	engine  *audio.Engine
	sink    transcription.Sink

	mu           sync.Mutex
	capturing    bool
	rt           *transcription.RealTime
	consumerStop chan struct{}
	consumerDone chan struct{}

	tmu         sync.Mutex
	transcripts []transcription.Record
}

// New creates the application controller.
func New(cfg *config.Config, backend audio.Backend, sink transcription.Sink,
	log zerolog.Logger, met *metrics.Metrics) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		met:     met,
		backend: backend,
		engine:  audio.NewEngine(backend, log),
		sink:    sink,
	}
}

// StartCapture opens a capture session and starts the consumer loop that
// assembles windows and invokes the transcription sink. Device and stream
// failures come back to the caller; a second start while active returns
// ErrCaptureActive.
func (a *App) StartCapture() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capturing {
		a.log.Warn().Msg("Capture already active")
		return ErrCaptureActive
	}

	rt, err := transcription.NewRealTime(
		a.cfg.Audio.ChunkDuration,
		a.cfg.Audio.OverlapDuration,
		a.cfg.Audio.SampleRate,
		a.sink,
		a.log,
	)
	if err != nil {
		return err
	}

	if err := a.engine.Start(audio.Config{
		TargetSampleRate: a.cfg.Audio.SampleRate,
		ChunkSize:        a.cfg.Audio.ChunkSize,
		PreferredInput:   a.cfg.Audio.InputDevice,
		PreferredOutput:  a.cfg.Audio.OutputDevice,
	}); err != nil {
		return err
	}

	a.rt = rt
	a.consumerStop = make(chan struct{})
	a.consumerDone = make(chan struct{})
	go a.consumeLoop(rt, a.consumerStop, a.consumerDone)

	a.capturing = true
	a.log.Info().Msg("Capture session started")
	return nil
}

// consumeLoop is the single consumer of the delivery queue.
func (a *App) consumeLoop(rt *transcription.RealTime, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		block, ok := a.engine.Chunk(pollInterval)
		a.met.QueueDepth.Set(float64(a.engine.Buffered()))
		if !ok {
			continue
		}
		a.process(rt, block)
	}
}

// process feeds one block through the window assembler and files any
// resulting record.
func (a *App) process(rt *transcription.RealTime, block []float32) {
	a.met.BlocksCaptured.Inc()
	a.met.SamplesCaptured.Add(float64(len(block)))

	rec, ok := rt.AddAudio(block)
	if !ok {
		return
	}
	a.file(rec)
}

// file records metrics for a finished window and keeps the transcript when
// it carries text.
func (a *App) file(rec transcription.Record) {
	a.met.WindowsAssembled.Inc()

	if rec.Skipped != "" {
		a.met.WindowsSkipped.Inc()
		a.log.Debug().Str("reason", rec.Skipped).Float64("volume", rec.Volume).Msg("Window skipped")
		return
	}

	a.met.TranscriptionRequests.Inc()
	a.met.TranscriptionDuration.Observe(rec.ProcessingTime)
	if rec.Error != "" {
		a.met.TranscriptionFailures.Inc()
		a.log.Error().Str("error", rec.Error).Msg("Window transcription failed")
		return
	}
	if rec.Text == "" {
		return
	}

	a.log.Info().Str("text", rec.Text).Float64("confidence", rec.Confidence).
		Float64("time_s", rec.ProcessingTime).Msg("Transcription")

	a.tmu.Lock()
	a.transcripts = append(a.transcripts, rec)
	a.met.TranscriptsPending.Set(float64(len(a.transcripts)))
	a.tmu.Unlock()
}

// StopCapture stops the engine, drains the queue losslessly into the
// assembler, and flushes the partial window. Safe to call when capture
// never started; the second call reports ErrCaptureNotActive.
func (a *App) StopCapture() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.capturing {
		a.log.Warn().Msg("Capture not active")
		return ErrCaptureNotActive
	}

	if err := a.engine.Stop(); err != nil && !errors.Is(err, audio.ErrNotActive) {
		a.log.Warn().Err(err).Msg("Engine stop reported an error")
	}

	close(a.consumerStop)
	<-a.consumerDone

	// Everything the engine delivered before stopping still counts.
	for {
		block, ok := a.engine.Chunk(0)
		if !ok {
			break
		}
		a.process(a.rt, block)
	}
	if rec, ok := a.rt.Flush(); ok {
		a.file(rec)
	}

	a.rt = nil
	a.capturing = false
	a.log.Info().Msg("Capture session stopped")
	return nil
}

// IsCapturing reports whether a session is running.
func (a *App) IsCapturing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capturing
}

// Status returns a snapshot for the control plane.
func (a *App) Status() Status {
	a.mu.Lock()
	capturing := a.capturing
	a.mu.Unlock()

	a.tmu.Lock()
	pending := len(a.transcripts)
	a.tmu.Unlock()

	return Status{
		IsCapturing:        capturing,
		QueueDepth:         a.engine.Buffered(),
		PendingTranscripts: pending,
		DeviceSampleRate:   a.engine.DeviceSampleRate(),
		TargetSampleRate:   a.cfg.Audio.SampleRate,
	}
}

// Devices enumerates the backend's endpoints, fresh on every call.
func (a *App) Devices() ([]audio.Device, error) {
	return a.backend.Devices()
}

// TakeTranscripts removes and returns all pending transcript records in
// arrival order.
func (a *App) TakeTranscripts() []transcription.Record {
	a.tmu.Lock()
	defer a.tmu.Unlock()
	recs := a.transcripts
	a.transcripts = nil
	a.met.TranscriptsPending.Set(0)
	return recs
}

// PendingTranscripts returns the number of records waiting to be pulled.
func (a *App) PendingTranscripts() int {
	a.tmu.Lock()
	defer a.tmu.Unlock()
	return len(a.transcripts)
}

// DiscardAudio drops all frame blocks waiting in the delivery queue and
// returns how many were discarded.
func (a *App) DiscardAudio() int {
	n := a.engine.Drain()
	a.met.BlocksDiscarded.Add(float64(n))
	a.met.QueueDepth.Set(0)
	return n
}
