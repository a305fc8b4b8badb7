package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, r *Reader) ([]Frame, error) {
	t.Helper()
	var out []Frame
	for {
		f, err := r.Next()
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
}

func TestReaderOneByteReads(t *testing.T) {
	r := NewReader(iotest.OneByteReader(strings.NewReader(sampleStream)))
	frames, err := collect(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, sampleFrames, frames)
}

func TestReaderHalfReads(t *testing.T) {
	r := NewReader(iotest.HalfReader(strings.NewReader(sampleStream)))
	frames, err := collect(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, sampleFrames, frames)
}

func TestReaderDataErrReader(t *testing.T) {
	// Data and EOF returned together must not lose the last frame.
	r := NewReader(iotest.DataErrReader(strings.NewReader(sampleStream)))
	frames, err := collect(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, sampleFrames, frames)
}

func TestReaderTrailingCarriageReturnAtEOF(t *testing.T) {
	r := NewReader(strings.NewReader("event: done\rdata: {}\r\r"))
	frames, err := collect(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []Frame{{Event: "done", Data: "{}"}}, frames)
}

func TestReaderPropagatesSourceError(t *testing.T) {
	boom := errors.New("connection reset")
	src := io.MultiReader(
		strings.NewReader("event: init\ndata: x\n\nevent: done\n"),
		iotest.ErrReader(boom),
	)
	r := NewReader(src)

	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "init", f.Event)

	_, err = r.Next()
	assert.ErrorIs(t, err, boom)

	// Sticky.
	_, err = r.Next()
	assert.ErrorIs(t, err, boom)
}

func TestReaderBufferOverflow(t *testing.T) {
	long := "data: " + strings.Repeat("x", 64) + "\n"
	r := NewReader(strings.NewReader(strings.Repeat(long, 4)), WithMaxBufferSize(100))

	_, err := r.Next()
	assert.ErrorIs(t, err, ErrBufferOverflow)
}

func TestReaderBufferOverflowWithinOneRead(t *testing.T) {
	// The whole frame arrives in a single Read well under the chunk size.
	frame := "event: done\ndata: " + strings.Repeat("x", 500) + "\n\n"
	r := NewReader(strings.NewReader(frame), WithMaxBufferSize(64))

	_, err := r.Next()
	assert.ErrorIs(t, err, ErrBufferOverflow)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrBufferOverflow)
}

func TestReaderFramesWithinLimit(t *testing.T) {
	small := "event: progress\ndata: " + strings.Repeat("x", 40) + "\n\n"
	r := NewReader(strings.NewReader(strings.Repeat(small, 20)), WithMaxBufferSize(64))

	frames, err := collect(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Len(t, frames, 20)
}
