// Package prompt resolves prompt templates and renders iteration variables.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tOgg1/looper/internal/models"
)

const defaultPromptName = "default"

// Vars is the variable table for one render. Values are substituted
// literally; there is no escaping syntax for `${`.
type Vars map[string]string

// StandardVars builds the variables every prompt can rely on.
func StandardVars(session, progressFile string, iteration int) Vars {
	return Vars{
		"SESSION_NAME":  session,
		"PROGRESS_FILE": progressFile,
		"ITERATION":     strconv.Itoa(iteration),
	}
}

// Merge adds extra variables without letting them shadow existing ones.
func (v Vars) Merge(extra Vars) Vars {
	for name, value := range extra {
		if _, exists := v[name]; exists {
			continue
		}
		v[name] = value
	}
	return v
}

// Resolve loads a named prompt for a loop type, falling back to the default
// prompt. Returns models.ErrPromptNotFound when neither exists.
func Resolve(projectDir, loopType, promptName string) (string, error) {
	promptsDir := filepath.Join(projectDir, ".claude", "loops", loopType, "prompts")

	candidates := make([]string, 0, 2)
	if promptName != "" && promptName != defaultPromptName {
		candidates = append(candidates, filepath.Join(promptsDir, promptName+".md"))
	}
	candidates = append(candidates, filepath.Join(promptsDir, defaultPromptName+".md"))

	for _, path := range candidates {
		content, err := os.ReadFile(path)
		if err == nil {
			return string(content), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: loop %s prompt %q (looked in %s)",
		models.ErrPromptNotFound, loopType, promptName, promptsDir)
}

// Render substitutes `${UPPER_SNAKE}` placeholders from the variable table
// in a single pass. Substituted values are emitted verbatim and never
// re-scanned, so a value containing `${...}` stays literal. Placeholders
// with no table entry are left intact.
func Render(template string, vars Vars) string {
	var out strings.Builder
	out.Grow(len(template))

	rest := template
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			out.WriteString(rest)
			return out.String()
		}
		out.WriteString(rest[:start])

		end := strings.Index(rest[start:], "}")
		if end < 0 {
			out.WriteString(rest[start:])
			return out.String()
		}
		end += start

		name := rest[start+2 : end]
		if value, ok := vars[name]; ok && isVarName(name) {
			out.WriteString(value)
		} else {
			out.WriteString(rest[start : end+1])
		}
		rest = rest[end+1:]
	}
}

func isVarName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return false
	}
	return true
}
