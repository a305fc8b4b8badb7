package seclai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RunStatus is the lifecycle position of an agent run.
//
// Statuses are ordered: Queued < Processing < {Completed, Failed}.
// A run only ever moves forward; Completed and Failed are terminal and
// absorbing. Use Advance to combine a current status with a reported one.
type RunStatus int

const (
	// RunStatusQueued means the run is accepted but not started.
	RunStatusQueued RunStatus = iota

	// RunStatusProcessing means the run is executing.
	RunStatusProcessing

	// RunStatusCompleted means the run finished successfully.
	RunStatusCompleted

	// RunStatusFailed means the run finished with an error.
	RunStatusFailed
)

var runStatusNames = [...]string{
	RunStatusQueued:     "queued",
	RunStatusProcessing: "processing",
	RunStatusCompleted:  "completed",
	RunStatusFailed:     "failed",
}

// String returns the canonical lowercase name.
func (s RunStatus) String() string {
	if s < 0 || int(s) >= len(runStatusNames) {
		return fmt.Sprintf("RunStatus(%d)", int(s))
	}
	return runStatusNames[s]
}

// IsTerminal reports whether no further transition is possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

func (s RunStatus) rank() int {
	switch s {
	case RunStatusProcessing:
		return 1
	case RunStatusCompleted, RunStatusFailed:
		return 2
	default:
		return 0
	}
}

// Advance returns the status after observing next.
// A terminal status never changes; otherwise the later of s and next wins.
func (s RunStatus) Advance(next RunStatus) RunStatus {
	if s.IsTerminal() {
		return s
	}
	if next.rank() > s.rank() {
		return next
	}
	return s
}

// ParseRunStatus maps a server status string onto a RunStatus.
// The second result is false for strings this client does not know.
func ParseRunStatus(v string) (RunStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "queued", "pending", "created", "scheduled":
		return RunStatusQueued, true
	case "processing", "running", "in_progress", "started":
		return RunStatusProcessing, true
	case "completed", "complete", "succeeded", "success", "done":
		return RunStatusCompleted, true
	case "failed", "failure", "error", "cancelled", "canceled":
		return RunStatusFailed, true
	default:
		return RunStatusQueued, false
	}
}

// MarshalJSON encodes the status as its canonical name.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts any status string ParseRunStatus knows.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	st, ok := ParseRunStatus(v)
	if !ok {
		return fmt.Errorf("seclai: unknown run status %q", v)
	}
	*s = st
	return nil
}
