package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// ConfigFileUsed returns the config file that was loaded, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadDefault loads configuration using the default search paths.
func LoadDefault() (*Config, error) {
	return NewLoader().Load()
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ProjectDir = expandTilde(cfg.Global.ProjectDir)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "looper"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "looper"))
	}

	v.AddConfigPath(".")

	v.SetEnvPrefix("LOOPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l.setDefaults(cfg)
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.project_dir", cfg.Global.ProjectDir)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	v.SetDefault("loop_defaults.max_iterations", cfg.LoopDefaults.MaxIterations)
	v.SetDefault("loop_defaults.delay", cfg.LoopDefaults.Delay)
	v.SetDefault("loop_defaults.output_tail_lines", cfg.LoopDefaults.OutputTailLines)

	v.SetDefault("agent.command_template", cfg.Agent.CommandTemplate)
	v.SetDefault("agent.prompt_mode", cfg.Agent.PromptMode)
	v.SetDefault("agent.beads_binary", cfg.Agent.BeadsBinary)

	v.SetDefault("notify.enabled", cfg.Notify.Enabled)
	v.SetDefault("notify.command", cfg.Notify.Command)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return nil
		}
		return err
	}

	return nil
}
