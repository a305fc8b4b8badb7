package seclai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/seclai/seclai-go/internal/sse"
)

// errSessionDeadline is the context cause recorded when a stream's own
// timeout or deadline fires.
var errSessionDeadline = errors.New("seclai: stream deadline exceeded")

// session owns one run stream response. It reads frames, folds them into
// a runMachine and closes the body exactly once.
type session struct {
	body       io.ReadCloser
	reader     *sse.Reader
	machine    *runMachine
	onProgress func(RunState)
	metrics    *Metrics
	logger     *zap.Logger

	releaseOnce sync.Once
}

func newSession(body io.ReadCloser, cfg streamConfig, metrics *Metrics, logger *zap.Logger) *session {
	var readerOpts []sse.Option
	if cfg.maxFrameBuffer > 0 {
		readerOpts = append(readerOpts, sse.WithMaxBufferSize(cfg.maxFrameBuffer))
	}
	return &session{
		body:       body,
		reader:     sse.NewReader(body, readerOpts...),
		machine:    newRunMachine(logger),
		onProgress: cfg.onProgress,
		metrics:    metrics,
		logger:     logger,
	}
}

// release closes the body. Safe to call from any goroutine, any number of
// times. Closing unblocks a Read in progress.
func (s *session) release() {
	s.releaseOnce.Do(func() {
		if err := s.body.Close(); err != nil {
			s.logger.Debug("closing stream body", zap.Error(err))
		}
	})
}

// run reads frames until a terminal event, a read failure or ctx ends.
// The body is released before run returns.
func (s *session) run(ctx context.Context) (RunState, error) {
	stop := context.AfterFunc(ctx, s.release)
	defer func() {
		stop()
		s.release()
	}()

	for {
		f, err := s.reader.Next()
		if err != nil {
			return RunState{}, s.fail(ctx, err)
		}
		// A frame that raced the teardown is not folded.
		if ctx.Err() != nil {
			return RunState{}, s.fail(ctx, ctx.Err())
		}

		s.metrics.observeFrame(f.Event)
		applied, err := s.machine.apply(f)
		if err != nil {
			var pe *payloadError
			if errors.As(err, &pe) {
				return RunState{}, &StreamError{
					Kind:    StreamMalformed,
					RunID:   s.machine.state.RunID,
					Event:   pe.event,
					Payload: pe.payload,
					Err:     pe.err,
				}
			}
			return RunState{}, s.fail(ctx, err)
		}

		if applied && s.onProgress != nil {
			s.onProgress(s.machine.result())
		}
		if s.machine.terminal {
			return s.machine.result(), nil
		}
	}
}

// fail classifies the end of a session that saw no terminal event.
func (s *session) fail(ctx context.Context, readErr error) *StreamError {
	se := classify(ctx, readErr)
	se.RunID = s.machine.state.RunID
	return se
}

// classify maps why a stream stopped onto a StreamErrorKind. The context
// is consulted first, so a read error caused by teardown reports the
// reason for the teardown rather than the closed body.
func classify(ctx context.Context, err error) *StreamError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		kind := StreamCancelled
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			kind = StreamTimeout
		}
		cause := context.Cause(ctx)
		if cause != nil && cause != ctxErr && cause != errSessionDeadline {
			return &StreamError{Kind: kind, Err: fmt.Errorf("%w: %w", ctxErr, cause)}
		}
		return &StreamError{Kind: kind, Err: ctxErr}
	}

	switch {
	case errors.Is(err, io.EOF):
		return &StreamError{Kind: StreamIncomplete, Err: io.EOF}
	case errors.Is(err, sse.ErrBufferOverflow):
		return &StreamError{Kind: StreamMalformed, Err: err}
	default:
		return &StreamError{Kind: StreamTransport, Err: err}
	}
}
