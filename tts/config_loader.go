package tts

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper overlays values known to viper (config file, bound
// flags and environment) onto base.
func LoadConfigFromViper(v *viper.Viper, base Config) (Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	cfg := base

	if v.IsSet("engine") {
		cfg.Engine = v.GetString("engine")
	}

	// Voice settings
	if v.IsSet("pitch") {
		cfg.Pitch = v.GetInt("pitch")
	}
	if v.IsSet("rate") {
		cfg.Rate = v.GetInt("rate")
	}
	if v.IsSet("voice") {
		cfg.Voice = v.GetString("voice")
	}
	if v.IsSet("gap") {
		cfg.Gap = v.GetInt("gap")
	}
	if v.IsSet("track") {
		cfg.Track = v.GetString("track")
	}

	// Pipeline settings
	if v.IsSet("frame_size") {
		cfg.FrameSize = v.GetInt("frame_size")
	}
	if v.IsSet("slots") {
		cfg.Slots = v.GetInt("slots")
	}
	if v.IsSet("markdown") {
		cfg.Markdown = v.GetBool("markdown")
	}

	cfg.Espeak = loadEspeakConfig(v, cfg.Espeak)
	cfg.Piper = loadPiperConfig(v, cfg.Piper)
	cfg.Mock = loadMockConfig(v, cfg.Mock)
	cfg.Cache = loadCacheConfig(v, cfg.Cache)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadEspeakConfig(v *viper.Viper, cfg EspeakConfig) EspeakConfig {
	if v.IsSet("espeak.command") {
		cfg.Command = v.GetString("espeak.command")
	}
	if v.IsSet("espeak.timeout") {
		if d, err := time.ParseDuration(v.GetString("espeak.timeout")); err == nil {
			cfg.Timeout = d
		}
	}
	return cfg
}

func loadPiperConfig(v *viper.Viper, cfg PiperConfig) PiperConfig {
	if v.IsSet("piper.command") {
		cfg.Command = v.GetString("piper.command")
	}
	if v.IsSet("piper.model") {
		cfg.Model = v.GetString("piper.model")
	}
	if v.IsSet("piper.sample_rate") {
		cfg.SampleRate = v.GetInt("piper.sample_rate")
	}
	if v.IsSet("piper.timeout") {
		if d, err := time.ParseDuration(v.GetString("piper.timeout")); err == nil {
			cfg.Timeout = d
		}
	}
	return cfg
}

func loadMockConfig(v *viper.Viper, cfg MockConfig) MockConfig {
	if v.IsSet("mock.delay") {
		if d, err := time.ParseDuration(v.GetString("mock.delay")); err == nil {
			cfg.Delay = d
		}
	}
	if v.IsSet("mock.failure_rate") {
		cfg.FailureRate = v.GetFloat64("mock.failure_rate")
	}
	return cfg
}

func loadCacheConfig(v *viper.Viper, cfg CacheConfig) CacheConfig {
	if v.IsSet("cache.enabled") {
		cfg.Enabled = v.GetBool("cache.enabled")
	}
	if v.IsSet("cache.dir") {
		cfg.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.memory_bytes") {
		cfg.MemoryBytes = v.GetInt64("cache.memory_bytes")
	}
	if v.IsSet("cache.disk_bytes") {
		cfg.DiskBytes = v.GetInt64("cache.disk_bytes")
	}
	return cfg
}

// SetDefaults sets default values in viper for the configuration.
func SetDefaults(v *viper.Viper) {
	if v == nil {
		v = viper.GetViper()
	}
	defaults := DefaultConfig()

	v.SetDefault("engine", defaults.Engine)

	v.SetDefault("pitch", defaults.Pitch)
	v.SetDefault("rate", defaults.Rate)
	v.SetDefault("voice", defaults.Voice)
	v.SetDefault("gap", defaults.Gap)
	v.SetDefault("track", defaults.Track)

	v.SetDefault("frame_size", defaults.FrameSize)
	v.SetDefault("slots", defaults.Slots)
	v.SetDefault("markdown", defaults.Markdown)

	v.SetDefault("espeak.command", defaults.Espeak.Command)
	v.SetDefault("espeak.timeout", defaults.Espeak.Timeout.String())

	v.SetDefault("piper.command", defaults.Piper.Command)
	v.SetDefault("piper.sample_rate", defaults.Piper.SampleRate)
	v.SetDefault("piper.timeout", defaults.Piper.Timeout.String())

	v.SetDefault("mock.delay", defaults.Mock.Delay.String())
	v.SetDefault("mock.failure_rate", defaults.Mock.FailureRate)

	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.memory_bytes", defaults.Cache.MemoryBytes)
	v.SetDefault("cache.disk_bytes", defaults.Cache.DiskBytes)
}
