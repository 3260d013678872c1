package strategy

import (
	"context"
	"fmt"

	"github.com/tOgg1/looper/internal/models"
)

// allItems walks a fixed, ordered item list, one iteration per item.
type allItems struct {
	items []string
}

func (s *allItems) Kind() models.StrategyKind { return models.StrategyAllItems }

func (s *allItems) Evaluate(ctx context.Context, state *models.SessionState, rawOutput string) (Result, error) {
	if state.Iteration >= len(s.items) {
		return Result{Complete: true, Reason: fmt.Sprintf("all %d items processed", len(s.items))}, nil
	}
	return Result{Reason: fmt.Sprintf("item %d of %d", state.Iteration, len(s.items))}, nil
}

// PromptForIndex maps a zero-based index to the item's prompt name.
// Out-of-range indices degrade to the default prompt instead of erroring.
func (s *allItems) PromptForIndex(index int) (string, bool) {
	if index < 0 || index >= len(s.items) {
		return "", false
	}
	return s.items[index], true
}
