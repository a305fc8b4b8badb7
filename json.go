package seclai

import (
	"bytes"
	"encoding/json"
	"errors"
)

// errEmptyPayload is returned when a payload that must carry a JSON value
// is blank or null.
var errEmptyPayload = errors.New("empty payload")

// decodeJSON parses data into a fresh T.
func decodeJSON[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// decodeObject is decodeJSON for payloads that must be a JSON object.
func decodeObject[T any](data []byte) (T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		var zero T
		return zero, errEmptyPayload
	}
	if trimmed[0] != '{' {
		var zero T
		return zero, errors.New("payload is not a JSON object")
	}
	return decodeJSON[T](trimmed)
}
