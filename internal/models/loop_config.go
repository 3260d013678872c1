package models

import (
	"errors"
	"time"
)

// StrategyKind identifies a completion strategy variant.
type StrategyKind string

const (
	StrategyBeadsEmpty       StrategyKind = "beads-empty"
	StrategyFixedN           StrategyKind = "fixed-n"
	StrategyAllItems         StrategyKind = "all-items"
	StrategyPlateau          StrategyKind = "plateau"
	StrategyPlateauConsensus StrategyKind = "plateau-consensus"
)

// ParseStrategyKind maps a definition value to a strategy kind.
func ParseStrategyKind(value string) (StrategyKind, error) {
	switch StrategyKind(value) {
	case StrategyBeadsEmpty, StrategyFixedN, StrategyAllItems, StrategyPlateau, StrategyPlateauConsensus:
		return StrategyKind(value), nil
	default:
		return "", ErrUnknownStrategy
	}
}

// OutputMapping is one ordered output-key capture: the OutputKey line from
// agent output lands in the StateField of the iteration record.
type OutputMapping struct {
	StateField string
	OutputKey  string
}

// LoopConfig is the immutable configuration for one loop run, loaded from a
// loop definition file.
type LoopConfig struct {
	Name          string
	Strategy      StrategyKind
	PromptName    string
	Threshold     int
	MinIterations int
	MaxLowChange  int
	Items         []string
	CheckBefore   bool
	Delay         time.Duration
	StopToken     string
	Outputs       []OutputMapping

	// Extra carries unrecognized definition keys through opaquely for
	// strategy-specific use.
	Extra map[string]string
}

// Validate checks the configuration invariants for the selected strategy.
func (c *LoopConfig) Validate() error {
	if c.Name == "" {
		return ErrInvalidLoopType
	}
	if _, err := ParseStrategyKind(string(c.Strategy)); err != nil {
		return err
	}
	if c.Strategy == StrategyAllItems && len(c.Items) == 0 {
		return errors.New("all-items strategy requires a non-empty items list")
	}
	if c.Threshold < 0 || c.MinIterations < 0 || c.MaxLowChange < 0 {
		return errors.New("strategy parameters must be >= 0")
	}
	if c.Delay < 0 {
		return errors.New("delay must be >= 0")
	}
	return nil
}
