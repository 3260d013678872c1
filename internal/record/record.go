// Package record keeps the process-wide completion log and dispatches
// completion notifications.
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/looper/internal/logging"
	"github.com/tOgg1/looper/internal/models"
)

// LogPath returns the completion log path for a project. The log is global
// per project and has mailbox semantics: this process appends, the next
// session startup drains.
func LogPath(projectDir string) string {
	return filepath.Join(projectDir, ".claude", "loop-progress", "completions.json")
}

// Recorder appends terminal session outcomes and notifies best-effort.
type Recorder struct {
	path     string
	notifier Notifier
	logger   zerolog.Logger
}

// NewRecorder creates a recorder for a project. A nil notifier disables
// notifications.
func NewRecorder(projectDir string, notifier Notifier) *Recorder {
	return &Recorder{
		path:     LogPath(projectDir),
		notifier: notifier,
		logger:   logging.Component("record"),
	}
}

// Record appends one completion entry and sends a notification. Neither
// failure is fatal; the terminal status already persisted in session state
// wins.
func (r *Recorder) Record(session, loopType string, status models.SessionStatus, reason string) {
	entry := models.CompletionEntry{
		Session:     session,
		LoopType:    loopType,
		Status:      status,
		CompletedAt: time.Now().UTC(),
	}

	if err := appendEntry(r.path, entry); err != nil {
		r.logger.Warn().Err(err).Str("session", session).Msg("failed to append completion log")
	}

	if r.notifier != nil {
		title := fmt.Sprintf("looper: %s", session)
		body := fmt.Sprintf("loop %s finished with status %s", loopType, status)
		if reason != "" {
			body += ": " + reason
		}
		if err := r.notifier.Notify(title, body); err != nil {
			r.logger.Debug().Err(err).Msg("notification dispatch failed")
		}
	}
}

// Entries reads the completion log without consuming it.
func Entries(projectDir string) ([]models.CompletionEntry, error) {
	return readEntries(LogPath(projectDir))
}

// Drain reads and clears the completion log. This is the mailbox consumer
// surface for the session-startup collaborator.
func Drain(projectDir string) ([]models.CompletionEntry, error) {
	path := LogPath(projectDir)
	entries, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}
	if err := writeEntries(path, []models.CompletionEntry{}); err != nil {
		return nil, err
	}
	return entries, nil
}

func appendEntry(path string, entry models.CompletionEntry) error {
	entries, err := readEntries(path)
	if err != nil {
		return err
	}
	return writeEntries(path, append(entries, entry))
}

func readEntries(path string) ([]models.CompletionEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.CompletionEntry{}, nil
		}
		return nil, err
	}

	var entries []models.CompletionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("completion log %s: %w", path, err)
	}
	return entries, nil
}

func writeEntries(path string, entries []models.CompletionEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".completions-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
