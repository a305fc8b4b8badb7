package sse

import (
	"io"
)

const readChunkSize = 4 << 10

// Option configures a Reader.
type Option func(*Reader)

// WithMaxBufferSize sets the most bytes a single undelivered frame may
// occupy, counting both its decoded fields and any partial line still
// buffered. Values <= 0 keep the default.
func WithMaxBufferSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxBuffer = n
		}
	}
}

// Reader pulls frames from an io.Reader.
// Each call to Next performs at most as many reads as needed to complete
// one frame, so a blocked Read on the source blocks Next.
type Reader struct {
	src       io.Reader
	dec       *Decoder
	chunk     []byte
	maxBuffer int
	err       error
}

// NewReader creates a Reader over src.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{
		src:       src,
		dec:       NewDecoder(),
		chunk:     make([]byte, readChunkSize),
		maxBuffer: DefaultMaxBufferSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dec.SetLimit(r.maxBuffer)
	return r
}

// Next returns the next frame.
// Returns io.EOF when the source ends; an unterminated trailing frame is
// discarded. Any other error from the source is returned as is and is
// sticky.
func (r *Reader) Next() (Frame, error) {
	for {
		if f, ok := r.dec.Next(); ok {
			return f, nil
		}
		if err := r.dec.Err(); err != nil {
			r.err = err
			return Frame{}, r.err
		}
		if r.err != nil {
			return Frame{}, r.err
		}
		if r.dec.Buffered() > r.maxBuffer {
			r.err = ErrBufferOverflow
			return Frame{}, r.err
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.dec.Write(r.chunk[:n])
		}
		if err != nil {
			if err == io.EOF {
				r.dec.End()
			}
			r.err = err
		}
	}
}
