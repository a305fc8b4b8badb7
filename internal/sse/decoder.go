// Package sse decodes Server-Sent Events frames for the Seclai run stream.
//
// SSE format consumed:
//   - frames are runs of non-blank lines terminated by a blank line
//   - `event:` names the frame (defaults to "message")
//   - `data:` lines are joined with "\n"
//   - lines starting with `:` are comments; other fields are ignored
package sse

import (
	"bytes"
	"errors"
	"strings"
)

// DefaultEvent is the frame name used when a frame carries no event field.
const DefaultEvent = "message"

// DefaultMaxBufferSize caps the bytes held for a frame that has not been
// terminated yet.
const DefaultMaxBufferSize = 4 << 20

// ErrBufferOverflow is returned when an unterminated frame grows beyond the
// configured buffer limit.
var ErrBufferOverflow = errors.New("sse: frame exceeds buffer limit")

// Frame is one blank-line-delimited SSE event.
type Frame struct {
	Event string
	Data  string
}

// Decoder turns arbitrarily split chunks into frames.
// Write may be called with any slicing of the input; Next yields a frame
// only once its terminating blank line has been seen.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte
	off int

	started bool
	ended   bool

	// Frame under construction.
	pending     bool
	event       string
	data        []string
	pendingSize int

	limit int
	err   error
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write appends a chunk to the decode buffer. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.off > 0 && d.off >= len(d.buf)/2 {
		n := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:n]
		d.off = 0
	}
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// End marks the end of input. A trailing carriage return is then treated
// as a complete line ending. Frames that were never terminated are dropped.
func (d *Decoder) End() {
	d.ended = true
}

// SetLimit caps the bytes the frame under construction may hold. Once a
// frame grows past n, Next returns false and Err reports
// ErrBufferOverflow. n <= 0 means no limit.
func (d *Decoder) SetLimit(n int) {
	d.limit = n
}

// Err returns ErrBufferOverflow once the limit has been exceeded.
func (d *Decoder) Err() error {
	return d.err
}

// Buffered reports the bytes held for lines and frames not yet emitted.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off + d.pendingSize
}

// Next returns the next completed frame, or false if more input is needed.
func (d *Decoder) Next() (Frame, bool) {
	for d.err == nil {
		line, ok := d.readLine()
		if !ok {
			return Frame{}, false
		}
		if f, ok := d.processLine(line); ok {
			return f, true
		}
		if d.limit > 0 && d.pendingSize > d.limit {
			d.err = ErrBufferOverflow
		}
	}
	return Frame{}, false
}

// readLine consumes one line terminated by \n, \r\n or \r.
func (d *Decoder) readLine() (string, bool) {
	rest := d.buf[d.off:]
	i := bytes.IndexAny(rest, "\r\n")
	if i < 0 {
		return "", false
	}

	n := 1
	if rest[i] == '\r' {
		if i+1 == len(rest) {
			// The matching \n may arrive in the next chunk.
			if !d.ended {
				return "", false
			}
		} else if rest[i+1] == '\n' {
			n = 2
		}
	}

	line := string(rest[:i])
	d.off += i + n

	if !d.started {
		d.started = true
		line = strings.TrimPrefix(line, "\ufeff")
	}
	return line, true
}

func (d *Decoder) processLine(line string) (Frame, bool) {
	if line == "" {
		return d.dispatch()
	}
	if line[0] == ':' {
		return Frame{}, false
	}

	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "event":
		d.pendingSize += len(value) - len(d.event)
		d.event = value
		d.pending = true
	case "data":
		d.data = append(d.data, value)
		d.pendingSize += len(value) + 1
		d.pending = true
	}
	// Ignore other fields (id:, retry:, unknown)
	return Frame{}, false
}

// dispatch emits the frame under construction, if any, and resets state.
func (d *Decoder) dispatch() (Frame, bool) {
	if !d.pending {
		return Frame{}, false
	}

	f := Frame{
		Event: d.event,
		Data:  strings.Join(d.data, "\n"),
	}
	if f.Event == "" {
		f.Event = DefaultEvent
	}

	d.pending = false
	d.event = ""
	d.data = nil
	d.pendingSize = 0
	return f, true
}
