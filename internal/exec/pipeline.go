package exec

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/crushshell/crush/internal/command"
	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/plan"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/stream"
	"github.com/crushshell/crush/internal/value"
	"golang.org/x/sync/errgroup"
)

// pipeColumn is the header used for the internal connector streams wired
// between pipeline stages whose declared output_type is Unknown. A single
// Any-typed "value" column accepts whatever a stage actually sends; per-cell
// type compatibility is still enforced by stream.Sender.Send against this
// header.
func pipeColumn() []value.ColumnType {
	return []value.ColumnType{{Name: "value", Element: value.Any}}
}

// stageCapacity is the bounded connector capacity used between stages,
// overridable at runtime through the config file's stream_capacity setting.
var stageCapacity atomic.Int64

// SetStageCapacity overrides the per-stage channel capacity. Zero or
// negative restores the stream default.
func SetStageCapacity(n int) { stageCapacity.Store(int64(n)) }

func currentStageCapacity() int {
	if n := stageCapacity.Load(); n > 0 {
		return int(n)
	}
	return stream.DefaultCapacity
}

// runPipeline runs a multi-stage Job as concurrent stages connected by
// internal/stream channels: stage i's output feeds stage i+1's input, the
// first stage reads from the job's external input (if any) and the last
// stage writes to the job's external output (if any).
//
// The join goes through golang.org/x/sync/errgroup so the first stage error
// is captured while every stage still runs to completion.
func runPipeline(callScope *scope.Scope, invs []plan.Invocation, input stream.Readable, output *stream.Sender, global *command.GlobalState) (value.Value, error) {
	n := len(invs)
	readables := make([]stream.Readable, n)
	senders := make([]*stream.Sender, n)
	receivers := make([]*stream.Receiver, n)

	readables[0] = input
	for i := 0; i < n-1; i++ {
		s, r := stream.New(pipeColumn(), currentStageCapacity())
		senders[i] = s
		readables[i+1] = r
		receivers[i+1] = r
	}
	senders[n-1] = output

	g, _ := errgroup.WithContext(context.Background())
	results := make([]value.Value, n)

	for i := 0; i < n; i++ {
		i := i
		inv := invs[i]
		g.Go(func() (stageErr error) {
			// A panic in a stage body poisons only that stage; it surfaces
			// at the job boundary as an InternalError.
			defer func() {
				if r := recover(); r != nil {
					stageErr = crusherr.New(crusherr.InternalError, "stage panicked: %v", r)
				}
			}()
			// Closing this stage's own output sender on every exit path
			// propagates EOF downstream; dropping this stage's own input receiver
			// unblocks an upstream Send that would otherwise wait forever
			// for a consumer that is no longer reading.
			defer func() {
				if senders[i] != nil {
					senders[i].Close()
				}
			}()
			defer func() {
				if receivers[i] != nil {
					receivers[i].Drop()
				}
			}()

			v, err := runInvocation(callScope, inv, readables[i], senders[i], global)
			if err != nil {
				if errors.Is(err, stream.ErrReceiverGone) {
					// Downstream stopped reading; this stage is simply done.
					return nil
				}
				return err
			}
			if senders[i] != nil {
				// A stage that returned a plain value instead of writing to
				// its output (list:of, a variable reference, a substitution)
				// still has to feed the next stage: unroll the value into
				// rows on the connector stream.
				if err := forwardValue(v, senders[i]); err != nil {
					if errors.Is(err, stream.ErrReceiverGone) {
						return nil
					}
					return err
				}
			} else if _, streaming := v.(value.TableStream); streaming {
				// The stage's result is still being produced on a background
				// goroutine that reads this stage's input; dropping the
				// receiver now would tear the stream down mid-flight. The
				// producer drops it itself once it finishes.
				receivers[i] = nil
			}
			results[i] = v
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}
	return results[n-1], nil
}

// forwardValue unrolls a stage's returned value into rows on its output
// connector. Containers stream element-wise (one row per element, a
// multi-column row collapsed to a Struct so it fits the single-column
// connector header); a scalar becomes a single row; Empty contributes
// nothing, since a transform that already wrote to its output returns Empty.
func forwardValue(v value.Value, out *stream.Sender) error {
	var r stream.Readable
	switch t := v.(type) {
	case value.Empty:
		return nil
	case value.TableStream:
		if err := t.MarkConsumed(); err != nil {
			return err
		}
		r = handleReadable{h: t.Handle()}
	case value.Table:
		r = stream.NewTableReader(t)
	case value.List:
		r = stream.NewListReader("value", t)
	case value.Dict:
		r = stream.NewDictReader(t)
	default:
		return out.Send(value.Row{v})
	}
	cols := r.Types()
	for {
		row, ok, err := r.Read()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		var cell value.Value
		if len(cols) == 1 {
			cell = row[0]
		} else {
			s := value.NewStruct(nil)
			for i, c := range cols {
				s.Set(c.Name, row[i])
			}
			cell = s
		}
		if err := out.Send(value.Row{cell}); err != nil {
			return err
		}
	}
}

// handleReadable adapts a value.StreamHandle to stream.Readable.
type handleReadable struct{ h value.StreamHandle }

func (r handleReadable) Read() (value.Row, bool, error) { return r.h.Recv() }
func (r handleReadable) Types() []value.ColumnType      { return r.h.Columns() }
