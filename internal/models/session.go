package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus represents the lifecycle status of a loop session.
type SessionStatus string

const (
	SessionStatusRunning       SessionStatus = "running"
	SessionStatusComplete      SessionStatus = "complete"
	SessionStatusMaxIterations SessionStatus = "max_iterations"
	SessionStatusKilled        SessionStatus = "killed"
)

// Terminal reports whether the status is a terminal one.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusComplete, SessionStatusMaxIterations, SessionStatusKilled:
		return true
	default:
		return false
	}
}

// IterationRecord is one appended history entry. Fields holds whatever the
// output mapping captured for that iteration; absent output keys are simply
// not present.
type IterationRecord struct {
	Iteration int
	Timestamp time.Time
	Fields    map[string]string
}

// Field returns a captured field value, or "" if it was not captured.
func (r IterationRecord) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// MarshalJSON flattens captured fields into the record object, so the state
// file reads as {iteration, timestamp, changes: "...", ...}.
func (r IterationRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["iteration"] = r.Iteration
	flat["timestamp"] = r.Timestamp.UTC().Format(time.RFC3339)
	return json.Marshal(flat)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *IterationRecord) UnmarshalJSON(data []byte) error {
	flat := map[string]any{}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	if raw, ok := flat["iteration"]; ok {
		num, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("iteration must be a number, got %T", raw)
		}
		r.Iteration = int(num)
	}
	if raw, ok := flat["timestamp"]; ok {
		text, ok := raw.(string)
		if !ok {
			return fmt.Errorf("timestamp must be a string, got %T", raw)
		}
		parsed, err := time.Parse(time.RFC3339, text)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		r.Timestamp = parsed
	}
	delete(flat, "iteration")
	delete(flat, "timestamp")

	if len(flat) > 0 {
		r.Fields = make(map[string]string, len(flat))
		for k, v := range flat {
			r.Fields[k] = fmt.Sprintf("%v", v)
		}
	}
	return nil
}

// SessionState is the single source of truth for one session.
type SessionState struct {
	Session          string            `json:"session"`
	LoopType         string            `json:"loop_type"`
	StartedAt        time.Time         `json:"started_at"`
	Status           SessionStatus     `json:"status"`
	Iteration        int               `json:"iteration"`
	History          []IterationRecord `json:"history"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CompletionReason string            `json:"completion_reason,omitempty"`
}

// Validate checks the state invariants.
func (s *SessionState) Validate() error {
	if s.Session == "" {
		return ErrInvalidSessionName
	}
	if s.LoopType == "" {
		return ErrInvalidLoopType
	}
	if len(s.History) != s.Iteration {
		return fmt.Errorf("%w: history length %d does not match iteration %d",
			ErrStateCorrupt, len(s.History), s.Iteration)
	}
	switch s.Status {
	case SessionStatusRunning, SessionStatusComplete, SessionStatusMaxIterations, SessionStatusKilled:
		return nil
	default:
		return fmt.Errorf("%w: invalid status %q", ErrStateCorrupt, s.Status)
	}
}

// LastRecord returns the most recent history entry, or nil when empty.
func (s *SessionState) LastRecord() *IterationRecord {
	if len(s.History) == 0 {
		return nil
	}
	return &s.History[len(s.History)-1]
}
