package strategy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tOgg1/looper/internal/models"
)

// Record field names the plateau strategies read from iteration history.
const (
	FieldChanges   = "changes"
	FieldPlateau   = "plateau"
	FieldReasoning = "reasoning"
)

// Output keys the agent is expected to emit for plateau detection.
const (
	KeyChanges   = "CHANGES"
	KeyPlateau   = "PLATEAU"
	KeyReasoning = "REASONING"
)

const defaultPlateauWindow = 3

// plateau completes once the last N iterations all reported a change count
// at or below the ceiling.
type plateau struct {
	window        int
	minIterations int
	maxLowChange  int
}

func newPlateau(cfg *models.LoopConfig) *plateau {
	window := cfg.Threshold
	if window <= 0 {
		window = defaultPlateauWindow
	}
	minIterations := cfg.MinIterations
	if minIterations < window {
		minIterations = window
	}
	return &plateau{
		window:        window,
		minIterations: minIterations,
		maxLowChange:  cfg.MaxLowChange,
	}
}

func (s *plateau) Kind() models.StrategyKind { return models.StrategyPlateau }

func (s *plateau) Evaluate(ctx context.Context, state *models.SessionState, rawOutput string) (Result, error) {
	if state.Iteration < s.minIterations {
		return Result{Reason: fmt.Sprintf("below minimum of %d iterations", s.minIterations)}, nil
	}
	if len(state.History) < s.window {
		return Result{Reason: fmt.Sprintf("only %d of %d lookback entries", len(state.History), s.window)}, nil
	}

	recent := state.History[len(state.History)-s.window:]
	for _, record := range recent {
		if changeCount(record) > s.maxLowChange {
			return Result{Reason: "recent iterations still report changes"}, nil
		}
	}

	return Result{
		Complete: true,
		Reason:   fmt.Sprintf("last %d iterations reported <= %d changes", s.window, s.maxLowChange),
	}, nil
}

// changeCount reads a record's change count. A missing or non-numeric value
// counts as maximal, never low, so malformed output cannot end the loop by
// accident.
func changeCount(record models.IterationRecord) int {
	value := strings.TrimSpace(record.Field(FieldChanges))
	if value == "" {
		return int(^uint(0) >> 1)
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return int(^uint(0) >> 1)
	}
	return n
}
