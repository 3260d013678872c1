// Package progress manages the agent-owned cross-iteration progress document.
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Dir returns the loop-progress directory for a project.
func Dir(projectDir string) string {
	return filepath.Join(projectDir, ".claude", "loop-progress")
}

// FilePath returns the progress document path for a session.
func FilePath(projectDir, session string) string {
	return filepath.Join(Dir(projectDir), "progress-"+session+".txt")
}

// Ensure seeds the progress document with a header on first use. Existing
// content is never touched; the agent owns everything after the header.
func Ensure(projectDir, session, loopType string) (string, error) {
	path := FilePath(projectDir, session)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	header := strings.Builder{}
	header.WriteString(fmt.Sprintf("# Loop Progress: %s\n", session))
	header.WriteString(fmt.Sprintf("# Loop type: %s\n", loopType))
	header.WriteString(fmt.Sprintf("# Started: %s\n", time.Now().UTC().Format(time.RFC3339)))
	header.WriteString("# Append iteration notes below. Never overwrite earlier entries.\n\n")

	if err := os.WriteFile(path, []byte(header.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
