// Package harness prepares and runs the external agent executor command.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/tOgg1/looper/internal/config"
	"github.com/tOgg1/looper/internal/models"
)

// PromptEnvVar carries the rendered prompt to env-mode commands.
const PromptEnvVar = "LOOPER_PROMPT_CONTENT"

// Prompt delivery modes.
const (
	PromptModeEnv   = "env"
	PromptModeStdin = "stdin"
	PromptModePath  = "path"
)

// Execution represents a prepared agent execution.
type Execution struct {
	Cmd   *exec.Cmd
	Stdin io.Reader
	Env   []string
}

// BuildExecution prepares the agent command for one iteration. The rendered
// prompt reaches the command per the configured prompt mode: exported in
// LOOPER_PROMPT_CONTENT, piped on stdin, or substituted for a {prompt}
// placeholder as a file path.
func BuildExecution(ctx context.Context, agent config.AgentConfig, promptPath, promptContent string) (*Execution, error) {
	command := strings.TrimSpace(agent.CommandTemplate)
	if command == "" {
		return nil, errors.New("agent command template is required")
	}

	mode := agent.PromptMode
	if mode == "" {
		mode = PromptModeEnv
	}

	switch mode {
	case PromptModePath:
		if promptPath == "" {
			return nil, errors.New("prompt path is required for path mode")
		}
		command = strings.ReplaceAll(command, "{prompt}", promptPath)
	case PromptModeEnv, PromptModeStdin:
		// no-op
	default:
		return nil, fmt.Errorf("unknown prompt mode %q", mode)
	}

	cmd := exec.CommandContext(ctx, "bash", "-lc", command)
	stdin := io.Reader(nil)

	env := append([]string{}, os.Environ()...)
	if mode == PromptModeEnv {
		env = append(env, PromptEnvVar+"="+promptContent)
	}
	cmd.Env = env

	if mode == PromptModeStdin {
		stdin = strings.NewReader(promptContent)
		cmd.Stdin = stdin
	}

	return &Execution{Cmd: cmd, Stdin: stdin, Env: env}, nil
}

// Check verifies the agent command's executable is available, failing at
// startup instead of on iteration 1.
func Check(agent config.AgentConfig) error {
	command := strings.TrimSpace(agent.CommandTemplate)
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return errors.New("agent command template is required")
	}

	if _, err := exec.LookPath(fields[0]); err != nil {
		return fmt.Errorf("%w: %s (set agent.command_template to an installed agent CLI)",
			models.ErrDependencyMissing, fields[0])
	}
	return nil
}
