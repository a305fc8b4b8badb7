package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func parseFormat(s string) (string, error) {
	switch strings.ToLower(s) {
	case "", formatJSON:
		return formatJSON, nil
	case formatYAML:
		return formatYAML, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json or yaml)", s)
	}
}

// render writes v to the command output in the selected format. YAML keys
// follow the JSON field names.
func (e *env) render(v any) error {
	return render(e.out, e.format, v)
}

func render(w io.Writer, format string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if format == formatYAML {
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// syncWriter serializes writes from concurrent stream goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
