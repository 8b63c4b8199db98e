package transcription

import (
	"math"
	"time"
)

// Record is the result of transcribing one audio window. The capture
// pipeline treats it opaquely; only the transport layer decides what to
// republish.
type Record struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	Confidence     float64   `json:"confidence"`
	ProcessingTime float64   `json:"processing_time"`
	Language       string    `json:"language,omitempty"`
	Volume         float64   `json:"volume"`
	MaxAmplitude   float64   `json:"max_amplitude"`
	AudioLength    float64   `json:"audio_length"`
	Skipped        string    `json:"skipped,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Sink turns a windowed audio buffer into a transcript record. It must
// tolerate empty input by returning an empty zero-confidence record, never
// failing, and is called with at most one window in flight per session.
type Sink interface {
	Transcribe(samples []float32, sampleRate int) Record
}

// levels computes the RMS volume and peak amplitude of a window.
func levels(samples []float32) (rms, peak float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return math.Sqrt(sum / float64(len(samples))), peak
}
