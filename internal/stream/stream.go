// Package stream implements the typed table-stream contract: a bounded
// MPSC queue of Rows plus a frozen []ColumnType header, with
// single-receiver/many-sender semantics and cooperative cancellation via
// recv-with-timeout.
package stream

import (
	"sync"
	"time"

	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/value"
)

// DefaultCapacity is the default bounded-channel capacity, in rows.
// internal/config may override this per the ambient settings file.
const DefaultCapacity = 128

// pipe is the shared state behind one TableStream's Sender(s)/Receiver.
type pipe struct {
	cols []value.ColumnType
	ch   chan value.Row

	mu       sync.Mutex
	senders  int
	failure  error
	recvOnce sync.Once
	doneCh   chan struct{}
}

// New creates a bounded stream pipe with the given frozen header and
// capacity. Returns one Sender and the sole Receiver.
func New(cols []value.ColumnType, capacity int) (*Sender, *Receiver) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &pipe{
		cols:    cols,
		ch:      make(chan value.Row, capacity),
		senders: 1,
		doneCh:  make(chan struct{}),
	}
	return &Sender{p: p}, &Receiver{p: p}
}

// Sender is one send end of a TableStream.
type Sender struct {
	p      *pipe
	closed bool
}

// Fork returns an additional Sender onto the same pipe. Each fork must eventually Close.
func (s *Sender) Fork() *Sender {
	s.p.mu.Lock()
	s.p.senders++
	s.p.mu.Unlock()
	return &Sender{p: s.p}
}

// Columns returns the frozen header.
func (s *Sender) Columns() []value.ColumnType { return s.p.cols }

// Send blocks when the channel is full and fails if the receiver has
// dropped. It validates row.len() == header.len() and
// per-cell type compatibility.
func (s *Sender) Send(row value.Row) error {
	if len(row) != len(s.p.cols) {
		return crusherr.New(crusherr.DataError, "row has %d cells, header declares %d", len(row), len(s.p.cols))
	}
	for i, cell := range row {
		if !value.CompatibleWith(cell.Type(), s.p.cols[i].Element) {
			return crusherr.New(crusherr.DataError, "column %q: value of type %s is not compatible with %s",
				s.p.cols[i].Name, cell.Type(), s.p.cols[i].Element)
		}
	}
	// Deliver without consulting doneCh while buffer space remains, so a
	// receiver that drops after the producer has logically finished cannot
	// fail sends that would have fit anyway.
	select {
	case s.p.ch <- row:
		return nil
	default:
	}
	select {
	case s.p.ch <- row:
		return nil
	case <-s.p.doneCh:
		return ErrReceiverGone
	}
}

// Fail records err as the stream's terminal failure and closes this sender:
// the receiver drains any buffered rows, then observes err instead of a
// clean EOF. The first failure wins.
func (s *Sender) Fail(err error) {
	if err != nil {
		s.p.mu.Lock()
		if s.p.failure == nil {
			s.p.failure = err
		}
		s.p.mu.Unlock()
	}
	s.Close()
}

// Close drops this sender. When the last sender of a pipe closes, the
// channel closes and the receiver observes EOF.
func (s *Sender) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.p.mu.Lock()
	s.p.senders--
	done := s.p.senders == 0
	s.p.mu.Unlock()
	if done {
		close(s.p.ch)
	}
}

// Receiver is the sole receive end of a TableStream.
type Receiver struct {
	p *pipe
}

// Columns returns the frozen header.
func (r *Receiver) Columns() []value.ColumnType { return r.p.cols }

// Recv blocks until a row is available or all senders have dropped (EOF).
// An EOF caused by a sender's Fail surfaces that failure instead.
// Implements value.StreamHandle.
func (r *Receiver) Recv() (value.Row, bool, error) {
	row, ok := <-r.p.ch
	if !ok {
		return nil, false, r.failure()
	}
	return row, true, nil
}

func (r *Receiver) failure() error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	return r.p.failure
}

// RecvTimeout returns (row, true, nil), (nil, false, nil) at EOF, or
// (nil, false, ErrTimeout) if d elapses first — required to implement
// cooperative cancellation and break/continue checks inside long-running
// reads.
func (r *Receiver) RecvTimeout(d time.Duration) (value.Row, bool, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case row, ok := <-r.p.ch:
		if !ok {
			return nil, false, r.failure()
		}
		return row, true, nil
	case <-t.C:
		return nil, false, ErrTimeout
	}
}

// Drop signals every sender that the receiver is gone, so blocked or
// future Send calls fail fast instead of hanging forever.
func (r *Receiver) Drop() {
	r.p.recvOnce.Do(func() {
		close(r.p.doneCh)
	})
}

// ErrTimeout is returned by RecvTimeout when the deadline elapses with no
// row and no EOF.
var ErrTimeout = crusherr.New(crusherr.InternalError, "recv timeout")

// ErrReceiverGone is returned by Send once the receiver has been dropped.
// A stage that sees it stops producing; it is teardown, not a failure of
// the sending stage itself.
var ErrReceiverGone = crusherr.New(crusherr.DataError, "send on stream with no receiver")
