package protocol

import (
	"errors"
	"io"
)

// MaxWriteFailures is the number of consecutive failed or zero-progress
// writes a BufferedSink tolerates. The next failure drops its queue and
// marks it disconnected.
const MaxWriteFailures = 10

var (
	ErrSinkFull         = errors.New("output queue full")
	ErrSinkDisconnected = errors.New("output disconnected")
	ErrShortWrite       = errors.New("output made no progress")
)

// Sink consumes formatted output bytes. Send may block.
type Sink interface {
	Send(p []byte) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(p []byte) error

func (f SinkFunc) Send(p []byte) error {
	return f(p)
}

// WriterSink sends directly to an io.Writer, blocking until every byte is
// written or the writer fails.
type WriterSink struct {
	w io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Send(p []byte) error {
	for len(p) > 0 {
		n, err := s.w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// BufferedSink queues lines in a FifoBuffer and drains them into an
// io.Writer, handling partial writes. A line that does not fit in the
// queue is rejected whole.
type BufferedSink struct {
	fifo *FifoBuffer
	w    io.Writer

	consecutiveWriteFailures uint32
	disconnected             bool

	BytesSent     uint32
	LinesDropped  uint32
	WriteFailures uint32 // failed drains, transient or not
}

// NewBufferedSink creates a sink with a queue of capacity bytes
func NewBufferedSink(w io.Writer, capacity int) *BufferedSink {
	return &BufferedSink{
		fifo: NewFifoBuffer(capacity),
		w:    w,
	}
}

// Send queues p and tries to drain the queue. Once p is queued a failed
// drain is not an error for p; it stays queued for the next Flush. Send
// fails only when p is lost: ErrSinkFull when it does not fit, and
// ErrSinkDisconnected when the queue holding it was dropped.
func (s *BufferedSink) Send(p []byte) error {
	if s.fifo.Free() < len(p) {
		// Make room by draining first
		if err := s.Flush(); errors.Is(err, ErrSinkDisconnected) {
			s.LinesDropped++
			return err
		}
		if s.fifo.Free() < len(p) {
			s.LinesDropped++
			return ErrSinkFull
		}
	}
	s.fifo.Write(p)
	if err := s.Flush(); errors.Is(err, ErrSinkDisconnected) {
		s.LinesDropped++
		return err
	}
	return nil
}

// Flush writes queued data until the queue is empty or the writer fails.
func (s *BufferedSink) Flush() error {
	for !s.fifo.IsEmpty() {
		seg := s.fifo.Peek()
		n, err := s.w.Write(seg)
		if n > 0 {
			s.fifo.Pop(n)
			s.BytesSent += uint32(n)
		}
		if err != nil {
			return s.writeFailed(err)
		}
		if n == 0 {
			// No progress - likely disconnect
			return s.writeFailed(ErrShortWrite)
		}
		s.consecutiveWriteFailures = 0
		s.disconnected = false
	}
	return nil
}

func (s *BufferedSink) writeFailed(err error) error {
	s.WriteFailures++
	s.consecutiveWriteFailures++
	if s.consecutiveWriteFailures > MaxWriteFailures {
		// Don't keep trying to send stale data
		s.disconnected = true
		s.consecutiveWriteFailures = 0
		s.fifo.Reset()
		return ErrSinkDisconnected
	}
	return err
}

// Disconnected reports whether the queue was dropped after repeated failures.
// It clears on the next successful write.
func (s *BufferedSink) Disconnected() bool {
	return s.disconnected
}

// Queued returns the number of bytes waiting to be written
func (s *BufferedSink) Queued() int {
	return s.fifo.Available()
}
