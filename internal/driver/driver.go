// Package driver orchestrates loop iterations: prompt render, agent
// invocation, output capture, state persistence, and completion checks.
package driver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/looper/internal/config"
	"github.com/tOgg1/looper/internal/logging"
	"github.com/tOgg1/looper/internal/models"
	"github.com/tOgg1/looper/internal/output"
	"github.com/tOgg1/looper/internal/progress"
	"github.com/tOgg1/looper/internal/prompt"
	"github.com/tOgg1/looper/internal/record"
	"github.com/tOgg1/looper/internal/session"
	"github.com/tOgg1/looper/internal/strategy"
)

const defaultOutputTailLines = 60

// ExecuteFunc runs one agent invocation and returns exit code, output tail,
// and error.
type ExecuteFunc func(ctx context.Context, agent config.AgentConfig, promptPath, promptContent, workDir string, out io.Writer) (int, string, error)

// Driver executes the iteration state machine for one session.
type Driver struct {
	Config          *config.Config
	Loop            *models.LoopConfig
	Store           *session.Store
	Strategy        strategy.Strategy
	Recorder        *record.Recorder
	Logger          zerolog.Logger
	OutputTailLines int
	MaxIterations   int
	Exec            ExecuteFunc
}

// Outcome is the terminal result of a session run.
type Outcome struct {
	Status     models.SessionStatus
	Reason     string
	Iterations int
}

// New creates a driver with default dependencies.
func New(cfg *config.Config, loop *models.LoopConfig, store *session.Store, strat strategy.Strategy, recorder *record.Recorder, maxIterations int) *Driver {
	tail := cfg.LoopDefaults.OutputTailLines
	if tail <= 0 {
		tail = defaultOutputTailLines
	}
	return &Driver{
		Config:          cfg,
		Loop:            loop,
		Store:           store,
		Strategy:        strat,
		Recorder:        recorder,
		Logger:          logging.Component("driver"),
		OutputTailLines: tail,
		MaxIterations:   maxIterations,
		Exec:            defaultExecute,
	}
}

// Run drives iterations until the completion strategy fires, the iteration
// budget is exhausted, or the context is cancelled. Terminal transitions
// invoke the completion recorder exactly once.
func (d *Driver) Run(ctx context.Context) (Outcome, error) {
	state := d.Store.State()
	if state == nil {
		return Outcome{}, fmt.Errorf("session store not initialized")
	}
	if state.Status.Terminal() {
		// Resumed a finished session: nothing to run, nothing to record.
		return Outcome{Status: state.Status, Reason: state.CompletionReason, Iterations: state.Iteration}, nil
	}

	progressFile, err := progress.Ensure(d.Config.Global.ProjectDir, state.Session, state.LoopType)
	if err != nil {
		return Outcome{}, fmt.Errorf("seed progress document: %w", err)
	}

	runLog, err := newRunLog(sessionLogPath(d.Config.Global.DataDir, state.Session))
	if err != nil {
		return Outcome{}, err
	}
	defer runLog.Close()

	runLog.WriteLine(fmt.Sprintf("session %s started (loop=%s iteration=%d)",
		state.Session, state.LoopType, state.Iteration))

	for {
		if ctx.Err() != nil {
			return d.finish(models.SessionStatusKilled, "cancelled before iteration", runLog)
		}

		if state.Iteration >= d.MaxIterations {
			return d.finish(models.SessionStatusMaxIterations,
				fmt.Sprintf("max iterations reached (%d)", d.MaxIterations), runLog)
		}

		if d.Loop.CheckBefore {
			verdict, err := d.Strategy.Evaluate(ctx, state, "")
			if err != nil {
				runLog.WriteLine(fmt.Sprintf("pre-check error (continuing): %v", err))
				d.Logger.Warn().Err(err).Msg("pre-check evaluation failed")
			} else if verdict.Complete {
				runLog.WriteLine("pre-check satisfied: " + verdict.Reason)
				return d.finish(models.SessionStatusComplete, verdict.Reason, runLog)
			}
		}

		iteration := state.Iteration + 1
		rawOut, err := d.runIteration(ctx, state, iteration, progressFile, runLog)
		if err != nil {
			// Only fatal configuration problems surface here.
			runLog.WriteLine(fmt.Sprintf("iteration %d fatal: %v", iteration, err))
			return Outcome{}, err
		}

		if ctx.Err() != nil {
			// Cancelled mid-iteration: the partial output is discarded.
			return d.finish(models.SessionStatusKilled, "cancelled during iteration", runLog)
		}

		fields := output.ParseRecord(rawOut, d.Loop.Outputs)
		if err := d.Store.Update(iteration, fields); err != nil {
			return Outcome{}, fmt.Errorf("persist iteration %d: %w", iteration, err)
		}

		if signaler, ok := d.Strategy.(strategy.StopSignaler); ok && signaler.SignalDetected(rawOut) {
			runLog.WriteLine("stop token detected in output")
			return d.finish(models.SessionStatusComplete, "stop token detected", runLog)
		}

		verdict, err := d.Strategy.Evaluate(ctx, state, rawOut)
		if err != nil {
			runLog.WriteLine(fmt.Sprintf("evaluation error (continuing): %v", err))
			d.Logger.Warn().Err(err).Int("iteration", iteration).Msg("strategy evaluation failed")
		} else if verdict.Complete {
			runLog.WriteLine("complete: " + verdict.Reason)
			return d.finish(models.SessionStatusComplete, verdict.Reason, runLog)
		} else if verdict.Reason != "" {
			runLog.WriteLine("continue: " + verdict.Reason)
		}

		d.sleep(ctx, d.Loop.Delay)
	}
}

// runIteration renders the prompt, invokes the agent, and returns the raw
// combined output. Executor failures are absorbed: a non-zero exit or exec
// error yields whatever output was captured, never an error.
func (d *Driver) runIteration(ctx context.Context, state *models.SessionState, iteration int, progressFile string, runLog *runLog) (string, error) {
	promptName := d.Loop.PromptName
	extra := prompt.Vars{}
	if selector, ok := d.Strategy.(strategy.PromptSelector); ok {
		if item, ok := selector.PromptForIndex(iteration - 1); ok {
			promptName = item
			extra["CURRENT_ITEM"] = item
		}
	}

	template, err := prompt.Resolve(d.Config.Global.ProjectDir, state.LoopType, promptName)
	if err != nil {
		return "", err
	}

	vars := prompt.StandardVars(state.Session, progressFile, iteration).Merge(extra)
	content := prompt.Render(template, vars)

	runID := uuid.New().String()
	promptPath := ""
	if d.Config.Agent.PromptMode == "path" {
		promptPath, err = writePromptFile(d.Config.Global.DataDir, state.Session, runID, content)
		if err != nil {
			return "", err
		}
	}

	runLog.WriteLine(fmt.Sprintf("iteration %d start (run=%s prompt=%s)", iteration, runID, promptName))

	tail := newTailWriter(d.OutputTailLines)
	writer := io.MultiWriter(runLog, tail)

	exitCode, tailText, execErr := d.Exec(ctx, d.Config.Agent, promptPath, content, d.Config.Global.ProjectDir, writer)
	rawOut := tailText
	if rawOut == "" {
		rawOut = tail.String()
	}

	if execErr != nil {
		// Absorbed: weak or empty output naturally prolongs the loop.
		runLog.WriteLine(fmt.Sprintf("iteration %d executor error (exit=%d): %v", iteration, exitCode, execErr))
		d.Logger.Warn().Err(execErr).Int("iteration", iteration).Int("exit_code", exitCode).
			Msg("agent executor failed")
	} else {
		runLog.WriteLine(fmt.Sprintf("iteration %d finished (exit=%d)", iteration, exitCode))
	}

	return rawOut, nil
}

// finish performs the terminal transition: single terminal state write, one
// completion record, one log line.
func (d *Driver) finish(status models.SessionStatus, reason string, runLog *runLog) (Outcome, error) {
	state := d.Store.State()
	if err := d.Store.MarkComplete(status, reason); err != nil {
		d.Logger.Error().Err(err).Msg("failed to persist terminal status")
	}
	if d.Recorder != nil {
		d.Recorder.Record(state.Session, state.LoopType, status, reason)
	}
	runLog.WriteLine(fmt.Sprintf("session %s terminal: %s (%s)", state.Session, status, reason))

	return Outcome{Status: status, Reason: reason, Iterations: state.Iteration}, nil
}

func (d *Driver) sleep(ctx context.Context, duration time.Duration) {
	if duration <= 0 {
		return
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
