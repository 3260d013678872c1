package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/tOgg1/looper/internal/models"
	"github.com/tOgg1/looper/internal/output"
)

// plateauConsensus requires two explicit plateau judgments in direct
// succession. A single affirmative is recorded as suggested-not-confirmed
// and the loop continues; no lone iteration can end a refinement loop.
type plateauConsensus struct {
	minIterations int
}

func (s *plateauConsensus) Kind() models.StrategyKind { return models.StrategyPlateauConsensus }

func (s *plateauConsensus) Evaluate(ctx context.Context, state *models.SessionState, rawOutput string) (Result, error) {
	current := output.ParseField(rawOutput, KeyPlateau)
	if current == "" {
		// Check-before call or malformed output: fall back to what the
		// output mapping captured for the current iteration.
		if record := state.LastRecord(); record != nil && record.Iteration == state.Iteration {
			current = record.Field(FieldPlateau)
		}
	}
	if !plateauAsserted(current) {
		return Result{Reason: "no plateau asserted this iteration"}, nil
	}

	reasoning := output.ParseField(rawOutput, KeyReasoning)
	if reasoning == "" {
		if record := state.LastRecord(); record != nil {
			reasoning = record.Field(FieldReasoning)
		}
	}

	if state.Iteration < s.minIterations {
		return Result{Reason: fmt.Sprintf("plateau suggested before minimum of %d iterations", s.minIterations)}, nil
	}

	if !previousAsserted(state) {
		return Result{Reason: "plateau suggested, not confirmed (no prior agreement)"}, nil
	}

	reason := "plateau confirmed by two consecutive iterations"
	if reasoning != "" {
		reason += ": " + reasoning
	}
	return Result{Complete: true, Reason: reason}, nil
}

// previousAsserted reports whether the immediately preceding history entry
// recorded plateau=true. The current iteration's record is already the last
// history entry when this runs.
func previousAsserted(state *models.SessionState) bool {
	want := state.Iteration - 1
	for i := len(state.History) - 1; i >= 0; i-- {
		record := state.History[i]
		if record.Iteration == want {
			return plateauAsserted(record.Field(FieldPlateau))
		}
		if record.Iteration < want {
			break
		}
	}
	return false
}

func plateauAsserted(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes":
		return true
	default:
		return false
	}
}
