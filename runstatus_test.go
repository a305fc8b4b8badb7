package seclai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusAdvance(t *testing.T) {
	tests := []struct {
		name string
		from RunStatus
		next RunStatus
		want RunStatus
	}{
		{"queued to processing", RunStatusQueued, RunStatusProcessing, RunStatusProcessing},
		{"queued to completed", RunStatusQueued, RunStatusCompleted, RunStatusCompleted},
		{"processing never reverts", RunStatusProcessing, RunStatusQueued, RunStatusProcessing},
		{"processing to failed", RunStatusProcessing, RunStatusFailed, RunStatusFailed},
		{"completed absorbs failed", RunStatusCompleted, RunStatusFailed, RunStatusCompleted},
		{"failed absorbs completed", RunStatusFailed, RunStatusCompleted, RunStatusFailed},
		{"completed absorbs queued", RunStatusCompleted, RunStatusQueued, RunStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.Advance(tt.next))
		})
	}
}

func TestRunStatusMonotonicOverSequences(t *testing.T) {
	all := []RunStatus{RunStatusQueued, RunStatusProcessing, RunStatusCompleted, RunStatusFailed}

	// Every sequence of three observations never lowers the rank.
	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				s := RunStatusQueued
				prev := s.rank()
				for _, next := range []RunStatus{a, b, c} {
					s = s.Advance(next)
					require.GreaterOrEqual(t, s.rank(), prev)
					prev = s.rank()
				}
			}
		}
	}
}

func TestParseRunStatus(t *testing.T) {
	tests := []struct {
		in   string
		want RunStatus
		ok   bool
	}{
		{"queued", RunStatusQueued, true},
		{"PENDING", RunStatusQueued, true},
		{" running ", RunStatusProcessing, true},
		{"in_progress", RunStatusProcessing, true},
		{"succeeded", RunStatusCompleted, true},
		{"completed", RunStatusCompleted, true},
		{"error", RunStatusFailed, true},
		{"cancelled", RunStatusFailed, true},
		{"paused", RunStatusQueued, false},
		{"", RunStatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRunStatus(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunStatusJSON(t *testing.T) {
	data, err := json.Marshal(RunStatusProcessing)
	require.NoError(t, err)
	assert.JSONEq(t, `"processing"`, string(data))

	var s RunStatus
	require.NoError(t, json.Unmarshal([]byte(`"done"`), &s))
	assert.Equal(t, RunStatusCompleted, s)

	assert.Error(t, json.Unmarshal([]byte(`"paused"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`3`), &s))
}

func TestRunStatusString(t *testing.T) {
	assert.Equal(t, "failed", RunStatusFailed.String())
	assert.Equal(t, "RunStatus(9)", RunStatus(9).String())
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.False(t, RunStatusProcessing.IsTerminal())
}
