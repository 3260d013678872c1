package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/looper/internal/config"
	"github.com/tOgg1/looper/internal/models"
	"github.com/tOgg1/looper/internal/record"
	"github.com/tOgg1/looper/internal/session"
	"github.com/tOgg1/looper/internal/strategy"
)

type testEnv struct {
	cfg     *config.Config
	project string
	store   *session.Store
}

func newTestEnv(t *testing.T, loopType string) *testEnv {
	t.Helper()
	project := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Global.ProjectDir = project
	cfg.Global.DataDir = t.TempDir()

	promptsDir := filepath.Join(project, ".claude", "loops", loopType, "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0o755))
	defaultPrompt := "iteration ${ITERATION} for ${SESSION_NAME}, notes in ${PROGRESS_FILE}"
	require.NoError(t, os.WriteFile(filepath.Join(promptsDir, "default.md"), []byte(defaultPrompt), 0o644))

	store := session.NewStore(project, loopType)
	require.NoError(t, store.Init(loopType))
	t.Cleanup(store.Close)

	return &testEnv{cfg: cfg, project: project, store: store}
}

// scriptedExec returns one canned output per call.
func scriptedExec(outputs []string, calls *int) ExecuteFunc {
	return func(ctx context.Context, agent config.AgentConfig, promptPath, promptContent, workDir string, out io.Writer) (int, string, error) {
		idx := *calls
		*calls++
		if idx >= len(outputs) {
			return 0, "", nil
		}
		_, _ = io.WriteString(out, outputs[idx])
		return 0, "", nil
	}
}

func newDriver(t *testing.T, env *testEnv, loopCfg *models.LoopConfig, strat strategy.Strategy, maxIterations int) *Driver {
	t.Helper()
	recorder := record.NewRecorder(env.project, nil)
	return New(env.cfg, loopCfg, env.store, strat, recorder, maxIterations)
}

func TestFixedNScenario(t *testing.T) {
	env := newTestEnv(t, "batch")
	loopCfg := &models.LoopConfig{Name: "batch", Strategy: models.StrategyFixedN, Threshold: 3}
	strat, err := strategy.New(loopCfg, strategy.Deps{MaxIterations: 25})
	require.NoError(t, err)

	calls := 0
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = scriptedExec([]string{"done 1", "done 2", "done 3"}, &calls)

	outcome, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusComplete, outcome.Status)
	require.Equal(t, 3, outcome.Iterations)
	require.Equal(t, 3, calls)

	state, err := session.Read(session.StatePath(env.project, "batch"))
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusComplete, state.Status)
	require.Len(t, state.History, 3)
	require.NotNil(t, state.CompletedAt)

	entries, err := record.Entries(env.project)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, models.SessionStatusComplete, entries[0].Status)
}

func TestPlateauConsensusScenario(t *testing.T) {
	env := newTestEnv(t, "refine")
	loopCfg := &models.LoopConfig{
		Name:          "refine",
		Strategy:      models.StrategyPlateauConsensus,
		MinIterations: 2,
		Outputs: []models.OutputMapping{
			{StateField: "plateau", OutputKey: "PLATEAU"},
			{StateField: "reasoning", OutputKey: "REASONING"},
		},
	}
	strat, err := strategy.New(loopCfg, strategy.Deps{})
	require.NoError(t, err)

	calls := 0
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = scriptedExec([]string{
		"PLATEAU: false\nREASONING: still improving\n",
		"PLATEAU: true\nREASONING: output stabilized\n",
		"PLATEAU: true\nREASONING: still stable\n",
	}, &calls)

	outcome, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusComplete, outcome.Status)
	// Iteration 2's lone plateau=true must not stop the loop; iteration 3
	// confirms it.
	require.Equal(t, 3, outcome.Iterations)

	state, err := session.Read(session.StatePath(env.project, "refine"))
	require.NoError(t, err)
	require.Equal(t, "true", state.History[1].Field("plateau"))
	require.Equal(t, "still stable", state.History[2].Field("reasoning"))
}

type scriptedQueue struct {
	counts []int
	calls  int
}

func (q *scriptedQueue) ReadyCount(ctx context.Context, label string) (int, error) {
	idx := q.calls
	if idx >= len(q.counts) {
		idx = len(q.counts) - 1
	}
	q.calls++
	return q.counts[idx], nil
}

func TestBeadsEmptyScenario(t *testing.T) {
	env := newTestEnv(t, "fix")
	loopCfg := &models.LoopConfig{Name: "fix", Strategy: models.StrategyBeadsEmpty}
	queue := &scriptedQueue{counts: []int{2, 0}}
	strat, err := strategy.New(loopCfg, strategy.Deps{Queue: queue})
	require.NoError(t, err)

	calls := 0
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = scriptedExec([]string{"fixed a bug", "fixed the last bug"}, &calls)

	outcome, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusComplete, outcome.Status)
	// Ready count dropped 2 -> 0 between iterations: completion lands on
	// the iteration immediately after the drop, not earlier.
	require.Equal(t, 2, outcome.Iterations)
	require.Equal(t, 2, calls)
}

func TestStopTokenOverridesQueue(t *testing.T) {
	env := newTestEnv(t, "fix")
	loopCfg := &models.LoopConfig{Name: "fix", Strategy: models.StrategyBeadsEmpty}
	queue := &scriptedQueue{counts: []int{5}}
	strat, err := strategy.New(loopCfg, strategy.Deps{Queue: queue})
	require.NoError(t, err)

	calls := 0
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = scriptedExec([]string{"blocked on review\nLOOP_COMPLETE\n"}, &calls)

	outcome, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusComplete, outcome.Status)
	require.Equal(t, 1, outcome.Iterations)
	require.Equal(t, "stop token detected", outcome.Reason)
}

func TestCheckBeforeSkipsWork(t *testing.T) {
	env := newTestEnv(t, "fix")
	loopCfg := &models.LoopConfig{Name: "fix", Strategy: models.StrategyBeadsEmpty, CheckBefore: true}
	queue := &scriptedQueue{counts: []int{0}}
	strat, err := strategy.New(loopCfg, strategy.Deps{Queue: queue})
	require.NoError(t, err)

	executed := false
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = func(ctx context.Context, agent config.AgentConfig, promptPath, promptContent, workDir string, out io.Writer) (int, string, error) {
		executed = true
		return 0, "", nil
	}

	outcome, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusComplete, outcome.Status)
	require.Equal(t, 0, outcome.Iterations)
	require.False(t, executed, "pre-check satisfied: agent must not run")
}

func TestExecutorFailureIsAbsorbed(t *testing.T) {
	env := newTestEnv(t, "batch")
	loopCfg := &models.LoopConfig{
		Name:      "batch",
		Strategy:  models.StrategyFixedN,
		Threshold: 2,
		Outputs:   []models.OutputMapping{{StateField: "changes", OutputKey: "CHANGES"}},
	}
	strat, err := strategy.New(loopCfg, strategy.Deps{})
	require.NoError(t, err)

	calls := 0
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = func(ctx context.Context, agent config.AgentConfig, promptPath, promptContent, workDir string, out io.Writer) (int, string, error) {
		calls++
		return 1, "", fmt.Errorf("agent crashed")
	}

	outcome, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusComplete, outcome.Status)
	require.Equal(t, 2, outcome.Iterations)

	// Failed iterations persist with an empty record: absent fields are
	// omitted, the loop is prolonged rather than crashed.
	state, err := session.Read(session.StatePath(env.project, "batch"))
	require.NoError(t, err)
	for _, rec := range state.History {
		require.Empty(t, rec.Field("changes"))
	}
}

func TestMaxIterationsReached(t *testing.T) {
	env := newTestEnv(t, "refine")
	loopCfg := &models.LoopConfig{Name: "refine", Strategy: models.StrategyPlateauConsensus, MinIterations: 2}
	strat, err := strategy.New(loopCfg, strategy.Deps{})
	require.NoError(t, err)

	calls := 0
	d := newDriver(t, env, loopCfg, strat, 3)
	d.Exec = scriptedExec([]string{"PLATEAU: false", "PLATEAU: false", "PLATEAU: false"}, &calls)

	outcome, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusMaxIterations, outcome.Status)
	require.Equal(t, 3, outcome.Iterations)

	entries, err := record.Entries(env.project)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, models.SessionStatusMaxIterations, entries[0].Status)
}

func TestResumedTerminalSessionDoesNotRerun(t *testing.T) {
	env := newTestEnv(t, "batch")
	loopCfg := &models.LoopConfig{Name: "batch", Strategy: models.StrategyFixedN, Threshold: 1}
	strat, err := strategy.New(loopCfg, strategy.Deps{})
	require.NoError(t, err)

	calls := 0
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = scriptedExec([]string{"once"}, &calls)

	_, err = d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// Running again against the same (now terminal) state is a no-op and
	// records no second completion.
	outcome, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusComplete, outcome.Status)
	require.Equal(t, 1, calls)

	entries, err := record.Entries(env.project)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPromptRenderedWithIterationVars(t *testing.T) {
	env := newTestEnv(t, "batch")
	loopCfg := &models.LoopConfig{Name: "batch", Strategy: models.StrategyFixedN, Threshold: 1}
	strat, err := strategy.New(loopCfg, strategy.Deps{})
	require.NoError(t, err)

	var captured string
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = func(ctx context.Context, agent config.AgentConfig, promptPath, promptContent, workDir string, out io.Writer) (int, string, error) {
		captured = promptContent
		return 0, "", nil
	}

	_, err = d.Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, captured, "iteration 1 for batch")
	require.Contains(t, captured, "progress-batch.txt")
}

func TestCancelledContextMarksKilled(t *testing.T) {
	env := newTestEnv(t, "batch")
	loopCfg := &models.LoopConfig{Name: "batch", Strategy: models.StrategyFixedN, Threshold: 5}
	strat, err := strategy.New(loopCfg, strategy.Deps{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = func(ctx context.Context, agent config.AgentConfig, promptPath, promptContent, workDir string, out io.Writer) (int, string, error) {
		cancel()
		return -1, "", ctx.Err()
	}

	outcome, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusKilled, outcome.Status)

	// The cancelled iteration's output is discarded.
	state, err := session.Read(session.StatePath(env.project, "batch"))
	require.NoError(t, err)
	require.Empty(t, state.History)
	require.Equal(t, models.SessionStatusKilled, state.Status)
}

func TestProgressDocumentSeededOnce(t *testing.T) {
	env := newTestEnv(t, "batch")
	loopCfg := &models.LoopConfig{Name: "batch", Strategy: models.StrategyFixedN, Threshold: 1}
	strat, err := strategy.New(loopCfg, strategy.Deps{})
	require.NoError(t, err)

	calls := 0
	d := newDriver(t, env, loopCfg, strat, 25)
	d.Exec = scriptedExec([]string{"ok"}, &calls)
	_, err = d.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(env.project, ".claude", "loop-progress", "progress-batch.txt")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Loop Progress: batch")

	// Agent-appended content survives later runs untouched.
	require.NoError(t, os.WriteFile(path, append(data, []byte("agent notes\n")...), 0o644))
	_, err = d.Run(context.Background())
	require.NoError(t, err)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(after), "agent notes")
}
