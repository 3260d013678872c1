package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/tOgg1/looper/internal/models"
)

// ExitError carries an exit code and whether output was already printed.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func handleCLIError(err error) error {
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Printed {
			return exitErr
		}
		if exitErr.Err != nil {
			err = exitErr.Err
		}
	}

	exitCode := 1
	if exitErr != nil && exitErr.Code != 0 {
		exitCode = exitErr.Code
	}

	fmt.Fprintln(os.Stderr, readableError(err))

	return &ExitError{
		Code:    exitCode,
		Err:     err,
		Printed: true,
	}
}

// readableError attaches a remediation hint to the well-known failures.
func readableError(err error) string {
	switch {
	case errors.Is(err, models.ErrConfigNotFound):
		return fmt.Sprintf("%v\nCreate a loop definition at .claude/loops/<type>/loop.config", err)
	case errors.Is(err, models.ErrPromptNotFound):
		return fmt.Sprintf("%v\nAdd a prompt at .claude/loops/<type>/prompts/default.md", err)
	case errors.Is(err, models.ErrDependencyMissing):
		return fmt.Sprintf("%v\nInstall the tool or adjust the looper config", err)
	case errors.Is(err, models.ErrSessionLocked):
		return fmt.Sprintf("%v\nAnother looper process owns this session; pick a different session name", err)
	default:
		return err.Error()
	}
}
