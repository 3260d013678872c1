// Package config handles looper configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for looper. It is loaded once
// at startup and passed down explicitly; nothing reads it through globals.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Loop defaults
	LoopDefaults LoopDefaultsConfig `yaml:"loop_defaults" mapstructure:"loop_defaults"`

	// Agent harness settings
	Agent AgentConfig `yaml:"agent" mapstructure:"agent"`

	// Notification settings
	Notify NotifyConfig `yaml:"notify" mapstructure:"notify"`
}

// GlobalConfig contains global looper settings.
type GlobalConfig struct {
	// DataDir is where looper stores run logs and prompt scratch files
	// (default: ~/.local/share/looper).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ProjectDir is the project root the loop operates in (default: cwd).
	// Loop definitions, prompts, and session state live under it.
	ProjectDir string `yaml:"project_dir" mapstructure:"project_dir"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// EnableCaller adds caller info to log lines.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// LoopDefaultsConfig contains per-run loop defaults.
type LoopDefaultsConfig struct {
	// MaxIterations bounds a session when the CLI does not override it.
	MaxIterations int `yaml:"max_iterations" mapstructure:"max_iterations"`

	// Delay is the default inter-iteration delay.
	Delay time.Duration `yaml:"delay" mapstructure:"delay"`

	// OutputTailLines is how many trailing agent-output lines are kept.
	OutputTailLines int `yaml:"output_tail_lines" mapstructure:"output_tail_lines"`
}

// AgentConfig describes how the external agent executor is invoked.
type AgentConfig struct {
	// CommandTemplate is the shell command that runs one iteration. The
	// rendered prompt is delivered per PromptMode.
	CommandTemplate string `yaml:"command_template" mapstructure:"command_template"`

	// PromptMode is how the prompt reaches the command: env, stdin, path.
	PromptMode string `yaml:"prompt_mode" mapstructure:"prompt_mode"`

	// BeadsBinary is the work-queue CLI used by the beads-empty strategy.
	BeadsBinary string `yaml:"beads_binary" mapstructure:"beads_binary"`
}

// NotifyConfig contains desktop notification settings.
type NotifyConfig struct {
	// Enabled toggles completion notifications.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Command overrides the notifier binary (default: notify-send on
	// Linux, osascript on macOS).
	Command string `yaml:"command" mapstructure:"command"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()

	return &Config{
		Global: GlobalConfig{
			DataDir:    filepath.Join(homeDir, ".local", "share", "looper"),
			ProjectDir: cwd,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		LoopDefaults: LoopDefaultsConfig{
			MaxIterations:   25,
			Delay:           2 * time.Second,
			OutputTailLines: 60,
		},
		Agent: AgentConfig{
			CommandTemplate: `claude -p "$LOOPER_PROMPT_CONTENT" --dangerously-skip-permissions`,
			PromptMode:      "env",
			BeadsBinary:     "bd",
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Global.DataDir == "" {
		return fmt.Errorf("global.data_dir is required")
	}
	if c.Global.ProjectDir == "" {
		return fmt.Errorf("global.project_dir is required")
	}
	if c.LoopDefaults.MaxIterations <= 0 {
		return fmt.Errorf("loop_defaults.max_iterations must be > 0")
	}
	if c.LoopDefaults.Delay < 0 {
		return fmt.Errorf("loop_defaults.delay must be >= 0")
	}
	switch c.Agent.PromptMode {
	case "", "env", "stdin", "path":
	default:
		return fmt.Errorf("agent.prompt_mode must be env, stdin, or path")
	}
	if c.Agent.CommandTemplate == "" {
		return fmt.Errorf("agent.command_template is required")
	}
	return nil
}

// EnsureDirectories creates required directories if they don't exist.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		filepath.Join(c.Global.DataDir, "logs", "sessions"),
		filepath.Join(c.Global.DataDir, "prompts"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
