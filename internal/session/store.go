// Package session persists per-session iteration state as a JSON document.
package session

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

// Store owns one session's state file. It is the single writer for that
// file; a pid lock enforces the invariant across processes.
type Store struct {
	session string
	path    string
	lock    *pidLock
	state   *models.SessionState
	logger  zerolog.Logger
}

// StatePath returns the state file path for a session.
func StatePath(projectDir, session string) string {
	return filepath.Join(projectDir, ".claude", "loop-progress", "state-"+session+".json")
}

// NewStore creates a store for a session. Call Init before anything else.
func NewStore(projectDir, session string) *Store {
	path := StatePath(projectDir, session)
	return &Store{
		session: session,
		path:    path,
		lock:    newPidLock(path + ".lock"),
		logger:  logging.Component("session"),
	}
}

// Init acquires the session lock and loads existing state, creating a fresh
// running state at iteration 0 only when no file exists. Existing state is
// never reset, which is what makes resuming after an interruption safe.
func (s *Store) Init(loopType string) error {
	if err := s.lock.Acquire(); err != nil {
		return err
	}

	state, err := Read(s.path)
	if err == nil {
		if state.LoopType != loopType {
			s.lock.Release()
			return fmt.Errorf("session %s belongs to loop type %q, not %q",
				s.session, state.LoopType, loopType)
		}
		s.state = state
		s.logger.Debug().Str("session", s.session).Int("iteration", state.Iteration).
			Msg("resumed existing session state")
		return nil
	}
	if !os.IsNotExist(err) {
		s.lock.Release()
		return err
	}

	s.state = &models.SessionState{
		Session:   s.session,
		LoopType:  loopType,
		StartedAt: time.Now().UTC(),
		Status:    models.SessionStatusRunning,
		Iteration: 0,
		History:   []models.IterationRecord{},
	}
	if err := s.write(); err != nil {
		s.lock.Release()
		return err
	}
	return nil
}

// Close releases the session lock. The state file stays behind for readers.
func (s *Store) Close() {
	s.lock.Release()
}

// State returns the current in-memory state.
func (s *Store) State() *models.SessionState {
	return s.state
}

// History returns the ordered iteration history.
func (s *Store) History() []models.IterationRecord {
	if s.state == nil {
		return nil
	}
	return s.state.History
}

// Update records one finished iteration: sets the iteration counter and
// appends {iteration, timestamp} plus the captured fields to history.
func (s *Store) Update(iteration int, fields map[string]string) error {
	if s.state == nil {
		return fmt.Errorf("session store not initialized")
	}
	if iteration != s.state.Iteration+1 {
		return fmt.Errorf("iteration %d does not follow %d", iteration, s.state.Iteration)
	}

	s.state.Iteration = iteration
	s.state.History = append(s.state.History, models.IterationRecord{
		Iteration: iteration,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	})
	return s.write()
}

// MarkComplete performs the single terminal write of status, timestamp, and
// reason. It refuses to overwrite an earlier terminal status.
func (s *Store) MarkComplete(status models.SessionStatus, reason string) error {
	if s.state == nil {
		return fmt.Errorf("session store not initialized")
	}
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}
	if s.state.Status.Terminal() {
		return fmt.Errorf("%w: status already %s", models.ErrSessionComplete, s.state.Status)
	}

	now := time.Now().UTC()
	s.state.Status = status
	s.state.CompletedAt = &now
	s.state.CompletionReason = reason
	return s.write()
}

// write persists state via temp-file-then-rename so a concurrent reader
// never observes a partial document.
func (s *Store) write() error {
	if err := s.state.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
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
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Read loads and validates a session state file. Corrupt state is reported
// as models.ErrStateCorrupt; callers fail fast rather than resetting
// history.
func Read(path string) (*models.SessionState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrStateCorrupt, path, err)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &state, nil
}
