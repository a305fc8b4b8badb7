package seclai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/seclai/seclai-go/internal/sse"
)

// Run stream event names.
const (
	EventInit  = "init"
	EventDone  = "done"
	EventError = "error"
)

// progressEvents are the non-terminal frames merged into the run state.
// Every other non-terminal name is ignored.
var progressEvents = map[string]bool{
	"progress": true,
	"update":   true,
	"status":   true,
	"attempt":  true,
}

// AttemptRecord is one execution attempt of a run.
type AttemptRecord struct {
	Status    string   `json:"status,omitempty"`
	StartedAt string   `json:"started_at,omitempty"`
	EndedAt   string   `json:"ended_at,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// RunState is the accumulated view of a run built from stream events.
type RunState struct {
	RunID      string          `json:"run_id,omitempty"`
	Status     RunStatus       `json:"status"`
	Input      string          `json:"input,omitempty"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	Attempts   []AttemptRecord `json:"attempts,omitempty"`
	ErrorCount int             `json:"error_count"`
	Priority   bool            `json:"priority"`
	Credits    *float64        `json:"credits,omitempty"`
}

// Terminal reports whether the run has completed or failed.
func (s RunState) Terminal() bool {
	return s.Status.IsTerminal()
}

// clone returns a deep copy that shares no memory with s.
func (s RunState) clone() RunState {
	out := s
	if s.Attempts != nil {
		out.Attempts = make([]AttemptRecord, len(s.Attempts))
		for i, a := range s.Attempts {
			if a.Duration != nil {
				d := *a.Duration
				a.Duration = &d
			}
			out.Attempts[i] = a
		}
	}
	if s.Credits != nil {
		c := *s.Credits
		out.Credits = &c
	}
	return out
}

// runPayload is the wire shape of run snapshots and updates.
// Nil fields were absent from the payload and leave state untouched.
type runPayload struct {
	RunID      *string         `json:"run_id"`
	RunIDAlt   *string         `json:"runId"`
	Status     *string         `json:"status"`
	Input      *string         `json:"input"`
	Output     *string         `json:"output"`
	Error      *string         `json:"error"`
	Message    *string         `json:"message"`
	Detail     *string         `json:"detail"`
	Attempts   []AttemptRecord `json:"attempts"`
	Attempt    *AttemptRecord  `json:"attempt"`
	ErrorCount *int            `json:"error_count"`
	Priority   *bool           `json:"priority"`
	Credits    *float64        `json:"credits"`
}

// merge folds p into s. Snapshots replace the attempt list; updates
// append to it.
func (s *RunState) merge(p runPayload, snapshot bool) {
	if p.RunID != nil {
		s.RunID = *p.RunID
	} else if p.RunIDAlt != nil {
		s.RunID = *p.RunIDAlt
	}
	if p.Status != nil {
		if st, ok := ParseRunStatus(*p.Status); ok {
			s.Status = s.Status.Advance(st)
		}
	}
	if p.Input != nil {
		s.Input = *p.Input
	}
	if p.Output != nil {
		s.Output = *p.Output
	}
	if p.Error != nil {
		s.Error = *p.Error
	}
	if p.ErrorCount != nil {
		s.ErrorCount = *p.ErrorCount
	}
	if p.Priority != nil {
		s.Priority = *p.Priority
	}
	if p.Credits != nil {
		c := *p.Credits
		s.Credits = &c
	}

	switch {
	case snapshot && p.Attempts != nil:
		s.Attempts = append([]AttemptRecord(nil), p.Attempts...)
	case p.Attempts != nil:
		s.Attempts = append(s.Attempts, p.Attempts...)
	}
	if p.Attempt != nil {
		s.Attempts = append(s.Attempts, *p.Attempt)
	}
}

// errorText picks the failure message out of an error payload.
func (p runPayload) errorText() string {
	for _, v := range []*string{p.Error, p.Message, p.Detail} {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

// payloadError reports a terminal frame whose payload could not be parsed.
type payloadError struct {
	event   string
	payload string
	err     error
}

func (e *payloadError) Error() string {
	return fmt.Sprintf("malformed %q payload: %v", e.event, e.err)
}

func (e *payloadError) Unwrap() error {
	return e.err
}

// runMachine folds stream frames into a RunState in delivery order.
// It is owned by a single session and is not safe for concurrent use.
type runMachine struct {
	state    RunState
	terminal bool
	logger   *zap.Logger
}

func newRunMachine(logger *zap.Logger) *runMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &runMachine{logger: logger}
}

// apply folds one frame. It reports whether the frame changed the machine.
// Frames after the terminal transition are ignored. A non-nil error is
// always a *payloadError for a terminal frame.
func (m *runMachine) apply(f sse.Frame) (bool, error) {
	if m.terminal {
		return false, nil
	}

	switch {
	case f.Event == EventInit:
		p, err := decodeObject[runPayload]([]byte(f.Data))
		if err != nil {
			m.logger.Warn("skipping malformed init payload", zap.Error(err))
			return false, nil
		}
		m.state.merge(p, true)

	case f.Event == EventDone:
		p, err := decodeObject[runPayload]([]byte(f.Data))
		if err != nil {
			return false, &payloadError{event: f.Event, payload: f.Data, err: err}
		}
		// done always completes the run, whatever status it carries.
		p.Status = nil
		m.state.merge(p, true)
		m.state.Status = m.state.Status.Advance(RunStatusCompleted)
		m.terminal = true

	case f.Event == EventError:
		text, p, err := decodeErrorPayload(f.Data)
		if err != nil {
			return false, &payloadError{event: f.Event, payload: f.Data, err: err}
		}
		p.Status = nil
		m.state.merge(p, true)
		m.state.Status = m.state.Status.Advance(RunStatusFailed)
		m.state.Error = text
		m.terminal = true

	case progressEvents[f.Event]:
		p, err := decodeObject[runPayload]([]byte(f.Data))
		if err != nil {
			m.logger.Warn("skipping malformed progress payload",
				zap.String("event", f.Event), zap.Error(err))
			return false, nil
		}
		m.state.merge(p, false)

	default:
		return false, nil
	}

	// A snapshot or update may itself report a terminal status.
	if m.state.Status.IsTerminal() {
		m.terminal = true
	}
	return true, nil
}

// result returns a copy of the folded state.
func (m *runMachine) result() RunState {
	return m.state.clone()
}

// decodeErrorPayload accepts a JSON string, a JSON object carrying
// error/message/detail, or plain text. The raw payload is used as the text
// when an object names no message. Empty data and broken JSON are errors.
func decodeErrorPayload(data string) (string, runPayload, error) {
	trimmed := bytes.TrimSpace([]byte(data))
	if len(trimmed) == 0 {
		return "", runPayload{}, errEmptyPayload
	}
	if trimmed[0] != '"' && trimmed[0] != '{' {
		return string(trimmed), runPayload{}, nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", runPayload{}, err
		}
		return text, runPayload{}, nil
	}

	p, err := decodeObject[runPayload](trimmed)
	if err != nil {
		return "", runPayload{}, err
	}
	text := p.errorText()
	if text == "" {
		text = string(trimmed)
	}
	return text, p, nil
}
