package models

import "time"

// CompletionEntry is one entry in the process-wide completion log. The log is
// a mailbox: this process only appends, the next session-startup consumer
// drains it.
type CompletionEntry struct {
	Session     string        `json:"session"`
	LoopType    string        `json:"loop_type"`
	Status      SessionStatus `json:"status"`
	CompletedAt time.Time     `json:"completed_at"`
}
