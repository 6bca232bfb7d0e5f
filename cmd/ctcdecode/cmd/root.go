// Package cmd implements the ctcdecode command-line interface: decode a
// single utterance, decode a batch concurrently, or serve decoding over
// HTTP/WebSocket.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ctcdecode/ctcdecode/internal/config"
	"github.com/ctcdecode/ctcdecode/internal/logging"
)

var (
	configLoader *config.Loader
	globalConfig *config.Config
	cfgFile      string
	versionInfo  = "dev"
)

// rootCmd is the base command when ctcdecode is invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "ctcdecode",
	Short: "CTC prefix beam search decoder",
	Long: `ctcdecode is a CTC prefix beam search decoder: it turns per-timestep
CTC class probabilities into ranked transcription hypotheses, optionally rescored against an n-gram language
model and a finite-state dictionary.

Examples:
  ctcdecode decode probs.json
  ctcdecode batch utterances.json --out results.json
  ctcdecode serve --port 8080`,
	Version: "dev",
}

// SetVersionInfo sets the version string reported by --version, called from
// main with build-time values.
func SetVersionInfo(v string) {
	versionInfo = v
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCommand returns the root command, for testing.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/ctcdecode, /etc/ctcdecode)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("alphabet", "", "path to the alphabet/charset file (one token per line)")
	rootCmd.PersistentFlags().Int("beam-size", 0, "beam width (overrides config)")
	rootCmd.PersistentFlags().Float64("cutoff-prob", 0, "cumulative probability cutoff per timestep (overrides config)")
	rootCmd.PersistentFlags().Int("cutoff-top-n", 0, "max classes considered per timestep (overrides config)")
	rootCmd.PersistentFlags().String("lm-path", "", "path to an ARPA-format n-gram language model")
	rootCmd.PersistentFlags().String("dict-path", "", "path to a serialized dictionary FST (rebuilt from the LM vocabulary if omitted)")
	rootCmd.PersistentFlags().Float64("alpha", 0, "language model weight (overrides config)")
	rootCmd.PersistentFlags().Float64("beta", 0, "word insertion bonus (overrides config)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("alphabet.path", rootCmd.PersistentFlags().Lookup("alphabet"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}
		logging.Setup(globalConfig.LogLevel, globalConfig.Verbose)
	}
}

// initConfig reads config from file, environment variables and defaults.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFileWithoutValidation(cfgFile)
	} else {
		globalConfig, err = configLoader.LoadWithoutValidation()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the resolved configuration, re-reading viper so CLI flag
// overrides bound after initial load are reflected.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}

	loader := GetConfigLoader()
	var cfg config.Config
	if err := loader.GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig
	}
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// flagOverrideString returns flagVal if the flag was explicitly set, else cur.
func flagOverrideString(cmd *cobra.Command, name, cur string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return cur
}

func flagOverrideInt(cmd *cobra.Command, name string, cur int) int {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetInt(name)
		return v
	}
	return cur
}

func flagOverrideFloat64(cmd *cobra.Command, name string, cur float64) float64 {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetFloat64(name)
		return v
	}
	return cur
}
