// Package strategy implements the pluggable completion policies that decide
// when a loop session stops.
package strategy

import (
	"context"
	"fmt"

	"github.com/tOgg1/looper/internal/models"
)

// Result is a completion verdict.
type Result struct {
	Complete bool
	Reason   string
}

// Strategy decides whether a session is done. Evaluate is called before an
// iteration (with empty output) when the loop is configured check-before,
// and always after the iteration with the real agent output. By the time of
// the post-iteration call the iteration's record is already in state.History.
type Strategy interface {
	Kind() models.StrategyKind
	Evaluate(ctx context.Context, state *models.SessionState, rawOutput string) (Result, error)
}

// StopSignaler is implemented by strategies that honor an in-band stop token
// independent of their main completion condition.
type StopSignaler interface {
	SignalDetected(rawOutput string) bool
}

// PromptSelector is implemented by strategies that pick the prompt variant
// for an iteration (all-items).
type PromptSelector interface {
	// PromptForIndex maps a zero-based iteration index to a prompt name
	// and the current item variable. ok=false degrades to the default
	// prompt.
	PromptForIndex(index int) (name string, ok bool)
}

// WorkQueue is the external work-queue boundary used by beads-empty.
type WorkQueue interface {
	// ReadyCount returns the number of ready items labeled for a session.
	ReadyCount(ctx context.Context, label string) (int, error)
}

// Deps carries collaborators and run-scoped defaults into construction.
type Deps struct {
	Queue WorkQueue

	// MaxIterations is the run's iteration budget, used as the fixed-n
	// default target.
	MaxIterations int
}

// New builds the strategy selected by the loop configuration.
func New(cfg *models.LoopConfig, deps Deps) (Strategy, error) {
	switch cfg.Strategy {
	case models.StrategyBeadsEmpty:
		if deps.Queue == nil {
			return nil, fmt.Errorf("beads-empty strategy requires a work queue")
		}
		token := cfg.StopToken
		if token == "" {
			token = DefaultStopToken
		}
		return &beadsEmpty{queue: deps.Queue, stopToken: token}, nil

	case models.StrategyFixedN:
		target := cfg.Threshold
		if target <= 0 {
			target = deps.MaxIterations
		}
		return &fixedN{target: target}, nil

	case models.StrategyAllItems:
		return &allItems{items: cfg.Items}, nil

	case models.StrategyPlateau:
		return newPlateau(cfg), nil

	case models.StrategyPlateauConsensus:
		return &plateauConsensus{minIterations: cfg.MinIterations}, nil

	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownStrategy, cfg.Strategy)
	}
}
