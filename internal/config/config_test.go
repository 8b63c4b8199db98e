package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.ChunkSize != 1024 {
		t.Errorf("audio defaults: %+v", cfg.Audio)
	}
	if cfg.Audio.ChunkDuration != 3.0 || cfg.Audio.OverlapDuration != 0.5 {
		t.Errorf("window defaults: %+v", cfg.Audio)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port default: %d", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"negative chunk size", func(c *Config) { c.Audio.ChunkSize = -1 }},
		{"zero chunk duration", func(c *Config) { c.Audio.ChunkDuration = 0 }},
		{"negative overlap", func(c *Config) { c.Audio.OverlapDuration = -0.1 }},
		{"overlap equals window", func(c *Config) { c.Audio.OverlapDuration = c.Audio.ChunkDuration }},
		{"overlap exceeds window", func(c *Config) { c.Audio.OverlapDuration = c.Audio.ChunkDuration + 1 }},
		{"negative input device", func(c *Config) { d := -1; c.Audio.InputDevice = &d }},
		{"negative output device", func(c *Config) { d := -2; c.Audio.OutputDevice = &d }},
		{"negative retries", func(c *Config) { c.Transcription.MaxRetries = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("got %+v, want defaults", cfg.Audio)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"server": {"port": 9090},
		"audio": {"chunk_duration": 5.0, "input_device": 3},
		"transcription": {"endpoint": "http://stt.local/v1/transcribe"}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host default lost: %q", cfg.Server.Host)
	}
	if cfg.Audio.ChunkDuration != 5.0 {
		t.Errorf("chunk duration: got %g", cfg.Audio.ChunkDuration)
	}
	if cfg.Audio.InputDevice == nil || *cfg.Audio.InputDevice != 3 {
		t.Errorf("input device: %v", cfg.Audio.InputDevice)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample rate default lost: %d", cfg.Audio.SampleRate)
	}
	if cfg.Transcription.Endpoint != "http://stt.local/v1/transcribe" {
		t.Errorf("endpoint: %q", cfg.Transcription.Endpoint)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"audio": {"sample_rate": -1}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative sample rate")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7001")
	t.Setenv("TRANSCRIBE_ENDPOINT", "http://env.local")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("port: got %d, want 7001", cfg.Server.Port)
	}
	if cfg.Transcription.Endpoint != "http://env.local" {
		t.Errorf("endpoint: %q", cfg.Transcription.Endpoint)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level: %q", cfg.LogLevel)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Server.Port = 8123
	cfg.Audio.OverlapDuration = 1.0
	dev := 2
	cfg.Audio.OutputDevice = &dev
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 8123 {
		t.Errorf("port: got %d", loaded.Server.Port)
	}
	if loaded.Audio.OverlapDuration != 1.0 {
		t.Errorf("overlap: got %g", loaded.Audio.OverlapDuration)
	}
	if loaded.Audio.OutputDevice == nil || *loaded.Audio.OutputDevice != 2 {
		t.Errorf("output device: %v", loaded.Audio.OutputDevice)
	}
}
