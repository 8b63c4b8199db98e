package transcription

import (
	"time"

	"github.com/rs/zerolog"
)

// Energy thresholds below which a window is considered silence and skipped
// without reaching the downstream engine.
const (
	defaultRMSThreshold  = 0.01
	defaultPeakThreshold = 0.02
)

// EnergyGate wraps a Sink with simple energy-based voice activity gating.
// Samples exceeding [-1, 1] are normalized first; the gate and the reported
// volume metrics both see the normalized signal. Windows below both
// thresholds produce a skipped record instead of a downstream call.
type EnergyGate struct {
	sink          Sink
	rmsThreshold  float64
	peakThreshold float64
	log           zerolog.Logger
}

// NewEnergyGate creates a gate with the default thresholds.
func NewEnergyGate(sink Sink, log zerolog.Logger) *EnergyGate {
	return &EnergyGate{
		sink:          sink,
		rmsThreshold:  defaultRMSThreshold,
		peakThreshold: defaultPeakThreshold,
		log:           log,
	}
}

func (g *EnergyGate) Transcribe(samples []float32, sampleRate int) Record {
	start := time.Now()

	if len(samples) == 0 {
		return Record{Timestamp: start}
	}

	audioLength := float64(len(samples)) / float64(sampleRate)

	if _, peak := levels(samples); peak > 1.0 {
		normalized := make([]float32, len(samples))
		for i, s := range samples {
			normalized[i] = float32(float64(s) / peak)
		}
		samples = normalized
	}

	rms, peak := levels(samples)
	if rms <= g.rmsThreshold || peak <= g.peakThreshold {
		g.log.Debug().Float64("rms", rms).Float64("peak", peak).Msg("No voice activity, skipping window")
		return Record{
			Skipped:        "no_voice_activity",
			Volume:         rms,
			MaxAmplitude:   peak,
			AudioLength:    audioLength,
			ProcessingTime: time.Since(start).Seconds(),
			Timestamp:      start,
		}
	}

	rec := g.sink.Transcribe(samples, sampleRate)
	rec.Volume = rms
	rec.MaxAmplitude = peak
	rec.AudioLength = audioLength
	if rec.Confidence == 0 && rec.Text != "" {
		rec.Confidence = confidenceFromText(rec.Text)
	}
	return rec
}

// confidenceFromText is the heuristic used when the engine reports no
// confidence of its own: longer transcripts are trusted more, capped at 1.
func confidenceFromText(text string) float64 {
	c := float64(len(text)) / 50.0
	if c > 1 {
		c = 1
	}
	return c
}
