package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig        `json:"server"`
	Audio         AudioConfig         `json:"audio"`
	Transcription TranscriptionConfig `json:"transcription"`
	LogLevel      string              `json:"log_level"`
}

// ServerConfig configures the HTTP/WebSocket control plane.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// AudioConfig configures the capture and windowing pipeline.
type AudioConfig struct {
	SampleRate      int     `json:"sample_rate"`      // target rate delivered downstream
	ChunkSize       int     `json:"chunk_size"`       // frames per capture callback
	ChunkDuration   float64 `json:"chunk_duration"`   // window length in seconds
	OverlapDuration float64 `json:"overlap_duration"` // window overlap in seconds
	InputDevice     *int    `json:"input_device,omitempty"`
	OutputDevice    *int    `json:"output_device,omitempty"`
}

// TranscriptionConfig configures the external speech-to-text service.
type TranscriptionConfig struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	Language       string `json:"language"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries"`
}

// Timeout returns the request timeout as a duration.
func (t TranscriptionConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Default returns the canonical configuration: 16 kHz target rate, 1024
// frame callbacks, 3 s windows with 0.5 s overlap.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Audio: AudioConfig{
			SampleRate:      16000,
			ChunkSize:       1024,
			ChunkDuration:   3.0,
			OverlapDuration: 0.5,
		},
		Transcription: TranscriptionConfig{
			Language:       "spanish",
			Model:          "tiny",
			TimeoutSeconds: 30,
			MaxRetries:     2,
		},
		LogLevel: "info",
	}
}

// Load reads the config file at path, overlaying it on the defaults, then
// applies environment overrides and validates. A missing file is not an
// error; the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnv overlays environment variables on the loaded values. These are
// typically supplied via a .env file in development.
func (c *Config) applyEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("TRANSCRIBE_ENDPOINT"); v != "" {
		c.Transcription.Endpoint = v
	}
	if v := os.Getenv("TRANSCRIBE_API_KEY"); v != "" {
		c.Transcription.APIKey = v
	}
	if v := os.Getenv("TRANSCRIBE_LANGUAGE"); v != "" {
		c.Transcription.Language = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks every input before it reaches the pipeline.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Audio.ChunkSize)
	}
	if c.Audio.ChunkDuration <= 0 {
		return fmt.Errorf("chunk duration must be positive, got %g", c.Audio.ChunkDuration)
	}
	if c.Audio.OverlapDuration < 0 || c.Audio.OverlapDuration >= c.Audio.ChunkDuration {
		return fmt.Errorf("overlap duration must be in [0, %g), got %g",
			c.Audio.ChunkDuration, c.Audio.OverlapDuration)
	}
	if c.Audio.InputDevice != nil && *c.Audio.InputDevice < 0 {
		return fmt.Errorf("input device index must be non-negative, got %d", *c.Audio.InputDevice)
	}
	if c.Audio.OutputDevice != nil && *c.Audio.OutputDevice < 0 {
		return fmt.Errorf("output device index must be non-negative, got %d", *c.Audio.OutputDevice)
	}
	if c.Transcription.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", c.Transcription.MaxRetries)
	}
	return nil
}
