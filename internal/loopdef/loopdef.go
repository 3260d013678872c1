// Package loopdef loads line-oriented loop definition files into a LoopConfig.
package loopdef

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tOgg1/looper/internal/models"
)

// DefinitionPath returns the loop definition path for a loop type.
func DefinitionPath(projectDir, loopType string) string {
	return filepath.Join(projectDir, ".claude", "loops", loopType, "loop.config")
}

// LoopDir returns the directory holding a loop type's definition and prompts.
func LoopDir(projectDir, loopType string) string {
	return filepath.Join(projectDir, ".claude", "loops", loopType)
}

// Load reads and parses the definition for a loop type. Returns
// models.ErrConfigNotFound when no definition file exists.
func Load(projectDir, loopType string) (*models.LoopConfig, error) {
	path := DefinitionPath(projectDir, loopType)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrConfigNotFound, path)
		}
		return nil, err
	}
	defer file.Close()

	raw, err := parseLines(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg, err := buildConfig(loopType, raw)
	if err != nil {
		return nil, fmt.Errorf("definition %s: %w", path, err)
	}
	return cfg, nil
}

// parseLines reads `key: value` lines into an ordered map. Comment and blank
// lines are skipped, keys are lowercased with hyphens normalized to
// underscores, and surrounding quotes are stripped from values.
func parseLines(file *os.File) (map[string]string, error) {
	raw := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("line %d: missing ':' separator", lineNo)
		}

		key = normalizeKey(key)
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", lineNo)
		}
		raw[key] = stripQuotes(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return raw, nil
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.ReplaceAll(key, "-", "_")
}

func stripQuotes(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

func buildConfig(loopType string, raw map[string]string) (*models.LoopConfig, error) {
	cfg := &models.LoopConfig{
		Name:  loopType,
		Extra: make(map[string]string),
	}

	for key, value := range raw {
		switch key {
		case "strategy":
			kind, err := models.ParseStrategyKind(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", err, value)
			}
			cfg.Strategy = kind
		case "prompt":
			cfg.PromptName = value
		case "threshold":
			n, err := parseInt(key, value)
			if err != nil {
				return nil, err
			}
			cfg.Threshold = n
		case "min_iterations":
			n, err := parseInt(key, value)
			if err != nil {
				return nil, err
			}
			cfg.MinIterations = n
		case "max_low_change":
			n, err := parseInt(key, value)
			if err != nil {
				return nil, err
			}
			cfg.MaxLowChange = n
		case "items":
			cfg.Items = strings.Fields(value)
		case "check_before":
			cfg.CheckBefore = parseBool(value)
		case "delay_seconds":
			n, err := parseInt(key, value)
			if err != nil {
				return nil, err
			}
			cfg.Delay = time.Duration(n) * time.Second
		case "stop_token":
			cfg.StopToken = value
		case "outputs":
			mappings, err := parseOutputs(value)
			if err != nil {
				return nil, err
			}
			cfg.Outputs = mappings
		default:
			// Unrecognized keys pass through for strategy-specific use.
			cfg.Extra[key] = value
		}
	}

	if cfg.Strategy == "" {
		return nil, fmt.Errorf("%w: definition has no strategy key", models.ErrUnknownStrategy)
	}
	applyDefaultOutputs(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaultOutputs gives the plateau strategies their conventional
// capture mapping when the definition doesn't configure one, so their
// history lookback has data to work with.
func applyDefaultOutputs(cfg *models.LoopConfig) {
	if len(cfg.Outputs) > 0 {
		return
	}
	switch cfg.Strategy {
	case models.StrategyPlateau:
		cfg.Outputs = []models.OutputMapping{
			{StateField: "changes", OutputKey: "CHANGES"},
		}
	case models.StrategyPlateauConsensus:
		cfg.Outputs = []models.OutputMapping{
			{StateField: "plateau", OutputKey: "PLATEAU"},
			{StateField: "reasoning", OutputKey: "REASONING"},
		}
	}
}

// parseOutputs parses ordered `stateField=OUTPUT_KEY` pairs.
func parseOutputs(value string) ([]models.OutputMapping, error) {
	fields := strings.Fields(value)
	mappings := make([]models.OutputMapping, 0, len(fields))
	for _, field := range fields {
		state, key, found := strings.Cut(field, "=")
		if !found || state == "" || key == "" {
			return nil, fmt.Errorf("outputs entry %q must be stateField=OUTPUT_KEY", field)
		}
		mappings = append(mappings, models.OutputMapping{StateField: state, OutputKey: key})
	}
	return mappings, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("key %s: expected integer, got %q", key, value)
	}
	return n, nil
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	default:
		return false
	}
}
