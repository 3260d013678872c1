// Package cli implements the looper command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tOgg1/looper/internal/config"
	"github.com/tOgg1/looper/internal/logging"
)

var (
	// Global flags
	cfgFile    string
	jsonOutput bool
	noColor    bool
	logLevel   string
	logFormat  string

	// Global config loader and config
	configLoader *config.Loader
	appConfig    *config.Config
	logger       zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "looper",
	Short: "Drive repeated agent iterations to a stopping condition",
	Long: `Looper runs an autonomous coding agent in a loop until a task-specific
stopping condition is met: the work queue drains, a fixed iteration count
is reached, a review list is exhausted, or refinement plateaus.

Loop definitions live under .claude/loops/<type>/ in the project;
session state and the progress document under .claude/loop-progress/.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute(version, commit, date string) error {
	rootCmd.Version = formatVersion(version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		return handleCLIError(err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/looper/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging format (json, console)")
}

// initConfig loads configuration using Viper with proper precedence:
// defaults < config file < env vars < CLI flags
func initConfig() {
	configLoader = config.NewLoader()

	if cfgFile != "" {
		configLoader.SetConfigFile(cfgFile)
	}

	var err error
	appConfig, err = configLoader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevel != "" {
		appConfig.Logging.Level = logLevel
	}
	if logFormat != "" {
		appConfig.Logging.Format = logFormat
	}

	logging.Init(logging.Config{
		Level:        appConfig.Logging.Level,
		Format:       appConfig.Logging.Format,
		EnableCaller: appConfig.Logging.EnableCaller,
	})
	logger = logging.Component("cli")

	if err := appConfig.EnsureDirectories(); err != nil {
		logger.Warn().Err(err).Msg("failed to create directories")
	}

	if cfgUsed := configLoader.ConfigFileUsed(); cfgUsed != "" {
		logger.Debug().Str("config_file", cfgUsed).Msg("loaded config file")
	}
}

// GetConfig returns the loaded application config.
func GetConfig() *config.Config {
	return appConfig
}

func formatVersion(version, commit, date string) string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}
