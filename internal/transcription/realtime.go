package transcription

import (
	"github.com/rs/zerolog"

	"github.com/castilloj/audio-transcribe/internal/audio"
)

// RealTime accumulates capture blocks into fixed-duration overlapping
// windows and hands each completed window to the sink, one window in flight
// at a time. It lives for the duration of one capture run.
type RealTime struct {
	assembler  *audio.Assembler
	sink       Sink
	sampleRate int
	log        zerolog.Logger
}

// NewRealTime creates a realtime transcriber. Window and overlap sizes are
// derived from the configured durations at the given sample rate; the
// overlap must be strictly shorter than the window.
func NewRealTime(chunkDuration, overlapDuration float64, sampleRate int, sink Sink, log zerolog.Logger) (*RealTime, error) {
	chunkSize := int(chunkDuration * float64(sampleRate))
	overlapSize := int(overlapDuration * float64(sampleRate))

	assembler, err := audio.NewAssembler(chunkSize, overlapSize)
	if err != nil {
		return nil, err
	}

	log.Info().Float64("chunk_s", chunkDuration).Float64("overlap_s", overlapDuration).
		Int("chunk_samples", chunkSize).Int("overlap_samples", overlapSize).
		Msg("Realtime transcriber ready")

	return &RealTime{
		assembler:  assembler,
		sink:       sink,
		sampleRate: sampleRate,
		log:        log,
	}, nil
}

// AddAudio appends a capture block. When a full window has accumulated it is
// transcribed and the record returned; otherwise the second result is false.
func (r *RealTime) AddAudio(samples []float32) (Record, bool) {
	window := r.assembler.Push(samples)
	if window == nil {
		return Record{}, false
	}
	return r.sink.Transcribe(window, r.sampleRate), true
}

// Flush transcribes whatever partial window remains and resets the buffer.
// The second result is false when nothing was pending.
func (r *RealTime) Flush() (Record, bool) {
	remainder := r.assembler.Flush()
	if remainder == nil {
		return Record{}, false
	}
	return r.sink.Transcribe(remainder, r.sampleRate), true
}

// Buffered returns the number of samples accumulated toward the next window.
func (r *RealTime) Buffered() int {
	return r.assembler.Buffered()
}
