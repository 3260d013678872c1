package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/tOgg1/looper/internal/config"
	"github.com/tOgg1/looper/internal/harness"
)

// defaultExecute runs the configured agent command to completion, streaming
// combined stdout/stderr into the given writer.
func defaultExecute(ctx context.Context, agent config.AgentConfig, promptPath, promptContent, workDir string, out io.Writer) (int, string, error) {
	execPlan, err := harness.BuildExecution(ctx, agent, promptPath, promptContent)
	if err != nil {
		return -1, "", err
	}
	execPlan.Cmd.Dir = workDir
	execPlan.Cmd.Stdout = out
	execPlan.Cmd.Stderr = out

	err = execPlan.Cmd.Run()
	return exitCodeFromError(err), "", err
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// writePromptFile writes the rendered prompt to a per-run scratch file for
// path-mode harnesses.
func writePromptFile(dataDir, session, runID, content string) (string, error) {
	dir := filepath.Join(dataDir, "prompts", session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.md", runID))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
