package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectSettingsFile is the per-project override file at the project root.
// It rides along in the repository so a team shares agent and loop settings
// without touching anyone's user config.
const ProjectSettingsFile = ".looper.yaml"

// yamlDuration parses "2s"-style duration strings, which plain time.Duration
// cannot do under yaml.v3.
type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = yamlDuration(parsed)
	return nil
}

// ProjectSettings are optional per-project overrides. Only set fields are
// applied; everything else keeps its user-config value.
type ProjectSettings struct {
	MaxIterations *int          `yaml:"max_iterations"`
	Delay         *yamlDuration `yaml:"delay"`

	Agent struct {
		CommandTemplate *string `yaml:"command_template"`
		PromptMode      *string `yaml:"prompt_mode"`
		BeadsBinary     *string `yaml:"beads_binary"`
	} `yaml:"agent"`

	Notify struct {
		Enabled *bool   `yaml:"enabled"`
		Command *string `yaml:"command"`
	} `yaml:"notify"`
}

// LoadProjectSettings reads the project override file. A missing file is not
// an error and yields nil.
func LoadProjectSettings(projectDir string) (*ProjectSettings, error) {
	path := filepath.Join(projectDir, ProjectSettingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var settings ProjectSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &settings, nil
}

// Apply overlays the project settings onto a loaded config.
func (s *ProjectSettings) Apply(cfg *Config) {
	if s == nil {
		return
	}

	if s.MaxIterations != nil {
		cfg.LoopDefaults.MaxIterations = *s.MaxIterations
	}
	if s.Delay != nil {
		cfg.LoopDefaults.Delay = time.Duration(*s.Delay)
	}

	if s.Agent.CommandTemplate != nil {
		cfg.Agent.CommandTemplate = *s.Agent.CommandTemplate
	}
	if s.Agent.PromptMode != nil {
		cfg.Agent.PromptMode = *s.Agent.PromptMode
	}
	if s.Agent.BeadsBinary != nil {
		cfg.Agent.BeadsBinary = *s.Agent.BeadsBinary
	}

	if s.Notify.Enabled != nil {
		cfg.Notify.Enabled = *s.Notify.Enabled
	}
	if s.Notify.Command != nil {
		cfg.Notify.Command = *s.Notify.Command
	}
}
