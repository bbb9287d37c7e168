package tts

import (
	"fmt"
	"strings"
	"time"
)

// Config contains all speech configuration options.
type Config struct {
	// Engine selection
	Engine string `yaml:"engine" env:"SPIN_ENGINE" envDefault:"espeak"`

	// Voice settings
	Pitch int    `yaml:"pitch" env:"SPIN_PITCH" envDefault:"50"`
	Rate  int    `yaml:"rate" env:"SPIN_RATE" envDefault:"170"`
	Voice string `yaml:"voice" env:"SPIN_VOICE" envDefault:"default"`
	Gap   int    `yaml:"gap" env:"SPIN_GAP" envDefault:"0"`
	Track string `yaml:"track" env:"SPIN_TRACK" envDefault:"whole"`

	// Pipeline settings
	FrameSize int `yaml:"frame_size" env:"SPIN_FRAME_SIZE" envDefault:"128"`
	Slots     int `yaml:"slots" env:"SPIN_SLOTS" envDefault:"2"`

	// Input settings
	Markdown bool `yaml:"markdown" env:"SPIN_MARKDOWN" envDefault:"false"`

	// Engine-specific configurations
	Espeak EspeakConfig `yaml:"espeak"`
	Piper  PiperConfig  `yaml:"piper"`
	Mock   MockConfig   `yaml:"mock"`
	Cache  CacheConfig  `yaml:"cache"`
}

// EspeakConfig contains espeak engine specific settings.
type EspeakConfig struct {
	Command string        `yaml:"command" env:"SPIN_ESPEAK_COMMAND" envDefault:"espeak-ng"`
	Timeout time.Duration `yaml:"timeout" env:"SPIN_ESPEAK_TIMEOUT" envDefault:"30s"`
}

// PiperConfig contains piper engine specific settings.
type PiperConfig struct {
	Command    string        `yaml:"command" env:"SPIN_PIPER_COMMAND" envDefault:"piper"`
	Model      string        `yaml:"model" env:"SPIN_PIPER_MODEL"`
	SampleRate int           `yaml:"sample_rate" env:"SPIN_PIPER_SAMPLE_RATE" envDefault:"22050"`
	Timeout    time.Duration `yaml:"timeout" env:"SPIN_PIPER_TIMEOUT" envDefault:"30s"`
}

// MockConfig contains mock engine settings for testing.
type MockConfig struct {
	Delay       time.Duration `yaml:"delay" env:"SPIN_MOCK_DELAY" envDefault:"0s"`
	FailureRate float64       `yaml:"failure_rate" env:"SPIN_MOCK_FAILURE_RATE" envDefault:"0.0"`
}

// CacheConfig contains synthesis cache settings.
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled" env:"SPIN_CACHE_ENABLED" envDefault:"false"`
	Dir         string `yaml:"dir" env:"SPIN_CACHE_DIR"`
	MemoryBytes int64  `yaml:"memory_bytes" env:"SPIN_CACHE_MEMORY_BYTES" envDefault:"67108864"`
	DiskBytes   int64  `yaml:"disk_bytes" env:"SPIN_CACHE_DISK_BYTES" envDefault:"536870912"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine: "espeak",

		Pitch: DefaultPitch,
		Rate:  DefaultRate,
		Voice: DefaultVoice,
		Gap:   DefaultGap,
		Track: TrackWhole.String(),

		FrameSize: 128,
		Slots:     2,

		Espeak: DefaultEspeakConfig(),
		Piper:  DefaultPiperConfig(),
		Mock:   DefaultMockConfig(),
		Cache:  DefaultCacheConfig(),
	}
}

// DefaultEspeakConfig returns default espeak configuration.
func DefaultEspeakConfig() EspeakConfig {
	return EspeakConfig{
		Command: "espeak-ng",
		Timeout: 30 * time.Second,
	}
}

// DefaultPiperConfig returns default piper configuration.
func DefaultPiperConfig() PiperConfig {
	return PiperConfig{
		Command:    "piper",
		SampleRate: SampleRate,
		Timeout:    30 * time.Second,
	}
}

// DefaultMockConfig returns default mock configuration.
func DefaultMockConfig() MockConfig {
	return MockConfig{}
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MemoryBytes: 64 << 20,
		DiskBytes:   512 << 20,
	}
}

// Validate checks if the configuration is valid. Voice parameters are
// never rejected; they are clamped when converted with Params.
func (c *Config) Validate() error {
	validEngines := []string{"mock", "espeak", "piper"}
	engineValid := false
	for _, e := range validEngines {
		if strings.EqualFold(c.Engine, e) {
			engineValid = true
			c.Engine = strings.ToLower(c.Engine)
			break
		}
	}
	if !engineValid {
		return fmt.Errorf("%w: engine %q must be one of %v", ErrInvalidEngine, c.Engine, validEngines)
	}

	if _, err := ParseTrackMode(c.Track); err != nil {
		return err
	}

	if c.FrameSize < 2 {
		return fmt.Errorf("%w: frame_size must be at least 2, got %d", ErrInvalidConfig, c.FrameSize)
	}
	if c.Slots < 2 || c.Slots > 16 {
		return fmt.Errorf("%w: slots must be between 2 and 16, got %d", ErrInvalidConfig, c.Slots)
	}

	switch c.Engine {
	case "espeak":
		if err := c.Espeak.Validate(); err != nil {
			return fmt.Errorf("espeak config: %w", err)
		}
	case "piper":
		if err := c.Piper.Validate(); err != nil {
			return fmt.Errorf("piper config: %w", err)
		}
	case "mock":
		if err := c.Mock.Validate(); err != nil {
			return fmt.Errorf("mock config: %w", err)
		}
	}

	return nil
}

// Validate checks if the espeak configuration is valid.
func (c *EspeakConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("%w: espeak command cannot be empty", ErrInvalidConfig)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1 second, got %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Validate checks if the piper configuration is valid.
func (c *PiperConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("%w: piper command cannot be empty", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: piper model must be set", ErrInvalidConfig)
	}
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("%w: sample_rate must be between 8000 and 48000, got %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1 second, got %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Validate checks if the mock configuration is valid.
func (c *MockConfig) Validate() error {
	if c.FailureRate < 0.0 || c.FailureRate > 1.0 {
		return fmt.Errorf("%w: failure_rate must be between 0.0 and 1.0, got %f", ErrInvalidConfig, c.FailureRate)
	}
	if c.Delay < 0 {
		return fmt.Errorf("%w: delay cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Params converts the voice settings to clamped session parameters.
func (c *Config) Params() Params {
	track, _ := ParseTrackMode(c.Track)
	return Params{
		Pitch: c.Pitch,
		Rate:  c.Rate,
		Voice: c.Voice,
		Gap:   c.Gap,
		Track: track,
	}.Clamp()
}
