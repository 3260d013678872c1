package strategy

import (
	"context"
	"fmt"

	"github.com/tOgg1/looper/internal/models"
	"github.com/tOgg1/looper/internal/output"
)

// DefaultStopToken is the in-band signal an agent can emit to end a
// beads-empty loop regardless of queue state.
const DefaultStopToken = "LOOP_COMPLETE"

// beadsEmpty completes when the work queue has no ready items labeled for
// the session.
type beadsEmpty struct {
	queue     WorkQueue
	stopToken string
}

func (s *beadsEmpty) Kind() models.StrategyKind { return models.StrategyBeadsEmpty }

func (s *beadsEmpty) Evaluate(ctx context.Context, state *models.SessionState, rawOutput string) (Result, error) {
	count, err := s.queue.ReadyCount(ctx, state.Session)
	if err != nil {
		return Result{}, fmt.Errorf("work queue ready count: %w", err)
	}
	if count == 0 {
		return Result{Complete: true, Reason: "work queue has no ready items"}, nil
	}
	return Result{Reason: fmt.Sprintf("%d ready items remaining", count)}, nil
}

// SignalDetected reports the in-band stop token, checked by the driver on
// every iteration's output independent of queue state.
func (s *beadsEmpty) SignalDetected(rawOutput string) bool {
	return output.ContainsToken(rawOutput, s.stopToken)
}
