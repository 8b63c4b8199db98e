package transcription

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ClientConfig configures the HTTP transcription client.
type ClientConfig struct {
	Endpoint   string
	APIKey     string
	Language   string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client posts audio windows to an external speech-to-text service over
// HTTP. Audio travels as base64-encoded 16-bit little-endian PCM; the
// service answers with text, confidence, and language. Request failures
// produce a record with the error set rather than an error return, so one
// bad window never interrupts the pipeline.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	log        zerolog.Logger
}

type transcribeRequest struct {
	RequestID  string `json:"request_id"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language,omitempty"`
	Model      string `json:"model,omitempty"`
	Audio      string `json:"audio"`
	Format     string `json:"format"`
}

type transcribeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// NewClient creates a transcription client.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

func (c *Client) Transcribe(samples []float32, sampleRate int) Record {
	start := time.Now()
	rec := Record{
		ID:          uuid.NewString(),
		Language:    c.config.Language,
		AudioLength: float64(len(samples)) / float64(sampleRate),
		Timestamp:   start,
	}

	if len(samples) == 0 {
		return rec
	}
	if c.config.Endpoint == "" {
		rec.Error = "no transcription endpoint configured"
		return rec
	}

	payload, err := json.Marshal(transcribeRequest{
		RequestID:  rec.ID,
		SampleRate: sampleRate,
		Language:   c.config.Language,
		Model:      c.config.Model,
		Audio:      base64.StdEncoding.EncodeToString(encodePCM16(samples)),
		Format:     "pcm_s16le",
	})
	if err != nil {
		rec.Error = err.Error()
		rec.ProcessingTime = time.Since(start).Seconds()
		return rec
	}

	resp, err := c.post(payload)
	rec.ProcessingTime = time.Since(start).Seconds()
	if err != nil {
		c.log.Error().Err(err).Str("request_id", rec.ID).Msg("Transcription request failed")
		rec.Error = err.Error()
		return rec
	}

	rec.Text = resp.Text
	rec.Confidence = resp.Confidence
	if resp.Language != "" {
		rec.Language = resp.Language
	}
	return rec
}

// post sends the request, retrying transient failures with exponential
// backoff.
func (c *Client) post(payload []byte) (*transcribeResponse, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn().Int("attempt", attempt).Err(lastErr).Msg("Retrying transcription request")
			time.Sleep(backoff)
			backoff *= 2
		}

		req, err := http.NewRequest(http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("transcription service returned %s", resp.Status)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, lastErr
			}
			continue
		}

		var out transcribeResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to decode transcription response: %w", err)
			continue
		}
		return &out, nil
	}

	return nil, lastErr
}

// encodePCM16 converts float32 samples in [-1, 1] to 16-bit little-endian
// PCM, clamping out-of-range values.
func encodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}
