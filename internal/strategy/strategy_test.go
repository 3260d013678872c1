package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/tOgg1/looper/internal/models"
)

func stateWithHistory(records ...models.IterationRecord) *models.SessionState {
	state := &models.SessionState{
		Session:   "sess",
		LoopType:  "loop",
		StartedAt: time.Now().UTC(),
		Status:    models.SessionStatusRunning,
		Iteration: len(records),
		History:   records,
	}
	return state
}

func record(iteration int, fields map[string]string) models.IterationRecord {
	return models.IterationRecord{Iteration: iteration, Timestamp: time.Now().UTC(), Fields: fields}
}

func TestFixedNBoundary(t *testing.T) {
	strat, err := New(&models.LoopConfig{Name: "n", Strategy: models.StrategyFixedN, Threshold: 3}, Deps{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for i := 0; i < 3; i++ {
		result, err := strat.Evaluate(context.Background(), stateWithHistory(historyOf(i)...), "")
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if result.Complete {
			t.Fatalf("iteration %d should not complete before target", i)
		}
	}

	result, err := strat.Evaluate(context.Background(), stateWithHistory(historyOf(3)...), "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Complete {
		t.Fatal("expected completion at target")
	}
}

func TestFixedNDefaultsToBudget(t *testing.T) {
	strat, err := New(&models.LoopConfig{Name: "n", Strategy: models.StrategyFixedN}, Deps{MaxIterations: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, _ := strat.Evaluate(context.Background(), stateWithHistory(historyOf(2)...), "")
	if !result.Complete {
		t.Fatal("expected budget used as target")
	}
}

func historyOf(n int) []models.IterationRecord {
	records := make([]models.IterationRecord, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, record(i, nil))
	}
	return records
}

func TestAllItemsIndexMapping(t *testing.T) {
	cfg := &models.LoopConfig{
		Name:     "review",
		Strategy: models.StrategyAllItems,
		Items:    []string{"security", "logic", "performance"},
	}
	strat, err := New(cfg, Deps{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	selector := strat.(PromptSelector)
	if name, ok := selector.PromptForIndex(0); !ok || name != "security" {
		t.Fatalf("index 0 = %q, %v", name, ok)
	}
	if name, ok := selector.PromptForIndex(2); !ok || name != "performance" {
		t.Fatalf("index 2 = %q, %v", name, ok)
	}
	if _, ok := selector.PromptForIndex(3); ok {
		t.Fatal("out-of-range index must degrade to default prompt")
	}
	if _, ok := selector.PromptForIndex(-1); ok {
		t.Fatal("negative index must degrade to default prompt")
	}

	result, _ := strat.Evaluate(context.Background(), stateWithHistory(historyOf(2)...), "")
	if result.Complete {
		t.Fatal("not complete before all items processed")
	}
	result, _ = strat.Evaluate(context.Background(), stateWithHistory(historyOf(3)...), "")
	if !result.Complete {
		t.Fatal("complete once iteration reaches item count")
	}
}

func TestPlateauDetection(t *testing.T) {
	cfg := &models.LoopConfig{
		Name:          "polish",
		Strategy:      models.StrategyPlateau,
		Threshold:     3,
		MinIterations: 3,
		MaxLowChange:  2,
	}
	strat, err := New(cfg, Deps{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	low := func(i int) models.IterationRecord {
		return record(i, map[string]string{"changes": "1"})
	}

	state := stateWithHistory(low(1), low(2), low(3))
	result, _ := strat.Evaluate(context.Background(), state, "")
	if !result.Complete {
		t.Fatalf("expected plateau with all-low window: %s", result.Reason)
	}

	state = stateWithHistory(low(1), record(2, map[string]string{"changes": "7"}), low(3))
	result, _ = strat.Evaluate(context.Background(), state, "")
	if result.Complete {
		t.Fatal("high change inside window must block plateau")
	}
}

func TestPlateauFailSafeOnMalformedValues(t *testing.T) {
	cfg := &models.LoopConfig{
		Name:          "polish",
		Strategy:      models.StrategyPlateau,
		Threshold:     3,
		MinIterations: 3,
		MaxLowChange:  2,
	}
	strat, _ := New(cfg, Deps{})

	// Any low value replaced by a missing or non-numeric one counts as
	// maximal and blocks detection.
	malformed := []map[string]string{
		nil,
		{"changes": "a few"},
		{"changes": "-1"},
	}
	for _, fields := range malformed {
		state := stateWithHistory(
			record(1, map[string]string{"changes": "0"}),
			record(2, fields),
			record(3, map[string]string{"changes": "0"}),
		)
		result, _ := strat.Evaluate(context.Background(), state, "")
		if result.Complete {
			t.Fatalf("fields %v must not count as low change", fields)
		}
	}
}

func TestPlateauBelowMinimum(t *testing.T) {
	cfg := &models.LoopConfig{
		Name:          "polish",
		Strategy:      models.StrategyPlateau,
		Threshold:     2,
		MinIterations: 5,
	}
	strat, _ := New(cfg, Deps{})

	state := stateWithHistory(
		record(1, map[string]string{"changes": "0"}),
		record(2, map[string]string{"changes": "0"}),
	)
	result, _ := strat.Evaluate(context.Background(), state, "")
	if result.Complete {
		t.Fatal("plateau before the minimum floor must not complete")
	}
}

func TestConsensusRequiresAgreement(t *testing.T) {
	cfg := &models.LoopConfig{Name: "refine", Strategy: models.StrategyPlateauConsensus, MinIterations: 2}
	strat, _ := New(cfg, Deps{})

	// Iteration 2 asserts plateau but iteration 1 did not: suggested, not
	// confirmed.
	state := stateWithHistory(
		record(1, map[string]string{"plateau": "false"}),
		record(2, map[string]string{"plateau": "true", "reasoning": "no net change"}),
	)
	result, err := strat.Evaluate(context.Background(), state, "PLATEAU: true\nREASONING: no net change\n")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Complete {
		t.Fatal("a lone plateau=true must not stop the loop")
	}
}

func TestConsensusConfirms(t *testing.T) {
	cfg := &models.LoopConfig{Name: "refine", Strategy: models.StrategyPlateauConsensus, MinIterations: 2}
	strat, _ := New(cfg, Deps{})

	state := stateWithHistory(
		record(1, nil),
		record(2, map[string]string{"plateau": "true", "reasoning": "nothing left"}),
		record(3, map[string]string{"plateau": "true", "reasoning": "confirmed"}),
	)
	result, err := strat.Evaluate(context.Background(), state, "PLATEAU: yes\nREASONING: confirmed\n")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.Complete {
		t.Fatalf("consecutive plateau judgments must complete: %s", result.Reason)
	}
}

func TestConsensusIgnoresMalformedAssertion(t *testing.T) {
	cfg := &models.LoopConfig{Name: "refine", Strategy: models.StrategyPlateauConsensus, MinIterations: 1}
	strat, _ := New(cfg, Deps{})

	state := stateWithHistory(
		record(1, map[string]string{"plateau": "true"}),
		record(2, map[string]string{"plateau": "definitely"}),
	)
	result, _ := strat.Evaluate(context.Background(), state, "PLATEAU: definitely\n")
	if result.Complete {
		t.Fatal("only true/yes count as a plateau assertion")
	}
}

func TestConsensusBelowMinimum(t *testing.T) {
	cfg := &models.LoopConfig{Name: "refine", Strategy: models.StrategyPlateauConsensus, MinIterations: 3}
	strat, _ := New(cfg, Deps{})

	state := stateWithHistory(
		record(1, map[string]string{"plateau": "true"}),
		record(2, map[string]string{"plateau": "true"}),
	)
	result, _ := strat.Evaluate(context.Background(), state, "PLATEAU: true\n")
	if result.Complete {
		t.Fatal("consensus below the minimum floor must continue")
	}
}

type fakeQueue struct {
	counts []int
	calls  int
}

func (q *fakeQueue) ReadyCount(ctx context.Context, label string) (int, error) {
	count := q.counts[q.calls]
	if q.calls < len(q.counts)-1 {
		q.calls++
	}
	return count, nil
}

func TestBeadsEmptyCompletesOnEmptyQueue(t *testing.T) {
	queue := &fakeQueue{counts: []int{2, 0}}
	cfg := &models.LoopConfig{Name: "fix", Strategy: models.StrategyBeadsEmpty}
	strat, err := New(cfg, Deps{Queue: queue})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, _ := strat.Evaluate(context.Background(), stateWithHistory(historyOf(1)...), "")
	if result.Complete {
		t.Fatal("non-empty queue must continue")
	}
	result, _ = strat.Evaluate(context.Background(), stateWithHistory(historyOf(2)...), "")
	if !result.Complete {
		t.Fatal("empty queue must complete")
	}
}

func TestBeadsEmptyStopToken(t *testing.T) {
	cfg := &models.LoopConfig{Name: "fix", Strategy: models.StrategyBeadsEmpty, StopToken: "ALL_DONE"}
	strat, _ := New(cfg, Deps{Queue: &fakeQueue{counts: []int{5}}})

	signaler := strat.(StopSignaler)
	if !signaler.SignalDetected("work queue is busy\nALL_DONE\n") {
		t.Fatal("configured stop token must be detected regardless of queue state")
	}
	if signaler.SignalDetected("nothing to see") {
		t.Fatal("no token, no signal")
	}
}

func TestBeadsEmptyRequiresQueue(t *testing.T) {
	cfg := &models.LoopConfig{Name: "fix", Strategy: models.StrategyBeadsEmpty}
	if _, err := New(cfg, Deps{}); err == nil {
		t.Fatal("expected error without a work queue")
	}
}
