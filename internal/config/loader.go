package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "ctcdecode"

	// EnvPrefix is the prefix for environment variables, e.g. CTCDECODE_DECODER_BEAM_SIZE.
	EnvPrefix = "CTCDECODE"
)

// Loader handles loading configuration from files, environment variables and
// command-line flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader bound to the global viper
// instance so command-line flag bindings take effect.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads configuration from files, environment variables and defaults,
// then validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load(true)
}

// LoadWithoutValidation is like Load but skips Config.Validate, for callers
// that operate on a partially-specified config.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load(false)
}

func (l *Loader) load(validate bool) (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	return &cfg, nil
}

// LoadWithFile loads configuration from a specific file path, falling back
// to the standard search path when configFile is empty.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.loadWithFile(configFile, true)
}

// LoadWithFileWithoutValidation is like LoadWithFile but skips validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.loadWithFile(configFile, false)
}

func (l *Loader) loadWithFile(configFile string, validate bool) (*Config, error) {
	if configFile == "" {
		return l.load(validate)
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	return &cfg, nil
}

// BindFlag binds a command-line flag to a configuration key. The actual
// binding happens where cobra flags are registered; this exists so callers
// have a single place to wire it in later.
func (l *Loader) BindFlag(key, flagName string) error {
	return nil
}

// BindFlagSet binds an entire pflag.FlagSet to configuration keys.
func (l *Loader) BindFlagSet(flagSet interface{}) error {
	return nil
}

// Get returns a raw value from the configuration.
func (l *Loader) Get(key string) interface{} { return l.v.Get(key) }

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string { return l.v.GetString(key) }

// Set overrides a value in the configuration, used for binding CLI flags.
func (l *Loader) Set(key string, value interface{}) { l.v.Set(key, value) }

// GetConfigFileUsed returns the path of the config file that was read, if any.
func (l *Loader) GetConfigFileUsed() string { return l.v.ConfigFileUsed() }

// GetViper returns the underlying viper instance for advanced use, such as
// binding cobra flags.
func (l *Loader) GetViper() *viper.Viper { return l.v }

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/ctcdecode")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "ctcdecode"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "ctcdecode"))
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("alphabet.path", defaults.Alphabet.Path)

	l.v.SetDefault("decoder.beam_size", defaults.Decoder.BeamSize)
	l.v.SetDefault("decoder.cutoff_prob", defaults.Decoder.CutoffProb)
	l.v.SetDefault("decoder.cutoff_top_n", defaults.Decoder.CutoffTopN)

	l.v.SetDefault("scorer.lm_path", defaults.Scorer.LMPath)
	l.v.SetDefault("scorer.dict_path", defaults.Scorer.DictPath)
	l.v.SetDefault("scorer.alpha", defaults.Scorer.Alpha)
	l.v.SetDefault("scorer.beta", defaults.Scorer.Beta)

	l.v.SetDefault("batch.num_processes", defaults.Batch.NumProcesses)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
}

// GetResolvedConfig returns the fully resolved configuration as a generic
// map, useful for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the currently resolved configuration to filename.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes a config file containing only the
// built-in defaults.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoader()
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths searched for a configuration file.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	paths = append(paths, "/etc/ctcdecode")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "ctcdecode"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ctcdecode"))
	}

	return paths
}

// PrintConfigInfo prints the resolved config file path and search paths.
func (l *Loader) PrintConfigInfo() {
	fmt.Printf("Configuration file used: %s\n", l.GetConfigFileUsed())
	fmt.Printf("Configuration search paths: %v\n", GetConfigSearchPaths())
	fmt.Printf("Environment prefix: %s\n", EnvPrefix)
}
