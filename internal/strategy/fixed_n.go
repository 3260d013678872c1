package strategy

import (
	"context"
	"fmt"

	"github.com/tOgg1/looper/internal/models"
)

// fixedN completes once the iteration counter reaches a target.
type fixedN struct {
	target int
}

func (s *fixedN) Kind() models.StrategyKind { return models.StrategyFixedN }

func (s *fixedN) Evaluate(ctx context.Context, state *models.SessionState, rawOutput string) (Result, error) {
	if state.Iteration >= s.target {
		return Result{Complete: true, Reason: fmt.Sprintf("reached %d iterations", s.target)}, nil
	}
	return Result{Reason: fmt.Sprintf("iteration %d of %d", state.Iteration, s.target)}, nil
}
