// Package config defines the ctcdecode configuration schema and its
// defaults.
package config

import "fmt"

// Config is the root configuration for the decoder CLI and server.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose"   yaml:"verbose"   json:"verbose"`

	Alphabet AlphabetConfig `mapstructure:"alphabet" yaml:"alphabet" json:"alphabet"`
	Decoder  DecoderConfig  `mapstructure:"decoder"  yaml:"decoder"  json:"decoder"`
	Scorer   ScorerConfig   `mapstructure:"scorer"   yaml:"scorer"   json:"scorer"`
	Batch    BatchConfig    `mapstructure:"batch"    yaml:"batch"    json:"batch"`
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"   json:"server"`
}

// AlphabetConfig locates the label file that maps CTC classes to tokens.
type AlphabetConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// DecoderConfig controls the prefix beam search itself.
type DecoderConfig struct {
	BeamSize   int     `mapstructure:"beam_size"   yaml:"beam_size"   json:"beam_size"`
	CutoffProb float64 `mapstructure:"cutoff_prob" yaml:"cutoff_prob" json:"cutoff_prob"`
	CutoffTopN int     `mapstructure:"cutoff_top_n" yaml:"cutoff_top_n" json:"cutoff_top_n"`
}

// ScorerConfig controls the optional language-model rescorer. LMPath is
// required to enable scoring; when DictPath is empty, the dictionary FST is
// rebuilt from the language model's own vocabulary.
type ScorerConfig struct {
	LMPath   string  `mapstructure:"lm_path"   yaml:"lm_path"   json:"lm_path"`
	DictPath string  `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	Alpha    float64 `mapstructure:"alpha"     yaml:"alpha"     json:"alpha"`
	Beta     float64 `mapstructure:"beta"      yaml:"beta"      json:"beta"`
}

// Enabled reports whether a language model path was configured.
func (s ScorerConfig) Enabled() bool { return s.LMPath != "" }

// BatchConfig controls the multi-utterance worker pool.
type BatchConfig struct {
	NumProcesses int `mapstructure:"num_processes" yaml:"num_processes" json:"num_processes"`
}

// ServerConfig controls the streaming decode HTTP/WebSocket server.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host" json:"host"`
	Port int    `mapstructure:"port" yaml:"port" json:"port"`
}

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Alphabet: AlphabetConfig{
			Path: "",
		},
		Decoder: DecoderConfig{
			BeamSize:   100,
			CutoffProb: 1.0,
			CutoffTopN: 40,
		},
		Scorer: ScorerConfig{
			Alpha: 1.0,
			Beta:  1.0,
		},
		Batch: BatchConfig{
			NumProcesses: 0,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("config: invalid log_level %q, must be one of %v", c.LogLevel, validLogLevels)
	}
	if c.Alphabet.Path == "" {
		return fmt.Errorf("config: alphabet.path is required")
	}
	if c.Decoder.BeamSize <= 0 {
		return fmt.Errorf("config: decoder.beam_size must be positive, got %d", c.Decoder.BeamSize)
	}
	if c.Decoder.CutoffProb <= 0 || c.Decoder.CutoffProb > 1 {
		return fmt.Errorf("config: decoder.cutoff_prob must be in (0, 1], got %g", c.Decoder.CutoffProb)
	}
	if c.Decoder.CutoffTopN < 0 {
		return fmt.Errorf("config: decoder.cutoff_top_n must be >= 0, got %d", c.Decoder.CutoffTopN)
	}
	if c.Scorer.Enabled() {
		if c.Scorer.Alpha < 0 {
			return fmt.Errorf("config: scorer.alpha must be >= 0, got %g", c.Scorer.Alpha)
		}
		if c.Scorer.Beta < 0 {
			return fmt.Errorf("config: scorer.beta must be >= 0, got %g", c.Scorer.Beta)
		}
	}
	if c.Batch.NumProcesses < 0 {
		return fmt.Errorf("config: batch.num_processes must be >= 0, got %d", c.Batch.NumProcesses)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
