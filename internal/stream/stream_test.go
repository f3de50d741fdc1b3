package stream_test

import (
	"errors"
	"testing"
	"time"

	"github.com/crushshell/crush/internal/stream"
	"github.com/crushshell/crush/internal/value"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intCols() []value.ColumnType {
	return []value.ColumnType{{Name: "value", Element: value.TypeInteger}}
}

// Stream header immutability: for every (sender, receiver, H)
// and every sequence of sends, receiver.types() equals H at all times.
func TestHeaderImmutableAcrossSends(t *testing.T) {
	cols := intCols()
	sender, receiver := stream.New(cols, 4)
	before := receiver.Columns()
	require.NoError(t, sender.Send(value.Row{value.NewInt(1)}))
	require.NoError(t, sender.Send(value.Row{value.NewInt(2)}))
	sender.Close()
	after := receiver.Columns()
	assert.Empty(t, cmp.Diff(before, after))
	assert.Empty(t, cmp.Diff(cols, after))
}

// Row well-formedness: every row sent must satisfy
// row.len() == H.len() and per-cell type compatibility.
func TestSendRejectsWrongArity(t *testing.T) {
	sender, _ := stream.New(intCols(), 1)
	defer sender.Close()
	err := sender.Send(value.Row{value.NewInt(1), value.NewInt(2)})
	assert.Error(t, err)
}

func TestSendRejectsIncompatibleCellType(t *testing.T) {
	sender, _ := stream.New(intCols(), 1)
	defer sender.Close()
	err := sender.Send(value.Row{value.Str("not an integer")})
	assert.Error(t, err)
}

func TestSendAcceptsAnyColumnForAnyElement(t *testing.T) {
	cols := []value.ColumnType{{Name: "value", Element: value.Any}}
	sender, receiver := stream.New(cols, 2)
	require.NoError(t, sender.Send(value.Row{value.NewInt(1)}))
	require.NoError(t, sender.Send(value.Row{value.Str("x")}))
	sender.Close()
	_, ok, err := receiver.Recv()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMultiSenderEOFOnlyAfterLastClose(t *testing.T) {
	sender, receiver := stream.New(intCols(), 4)
	forked := sender.Fork()

	require.NoError(t, sender.Send(value.Row{value.NewInt(1)}))
	sender.Close()

	// The forked sender is still open: EOF must not have been signaled yet.
	select {
	case _, ok := <-recvAsync(receiver):
		require.True(t, ok, "receiver must not see EOF while a forked sender is still open")
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected the already-buffered row to be readable immediately")
	}

	forked.Close()
	_, ok, err := receiver.Recv()
	require.NoError(t, err)
	assert.False(t, ok, "receiver must observe EOF once every sender has closed")
}

func recvAsync(r *stream.Receiver) <-chan struct {
	row value.Row
	ok  bool
} {
	ch := make(chan struct {
		row value.Row
		ok  bool
	}, 1)
	go func() {
		row, ok, _ := r.Recv()
		ch <- struct {
			row value.Row
			ok  bool
		}{row, ok}
	}()
	return ch
}

func TestDropCancelsBlockedSend(t *testing.T) {
	sender, receiver := stream.New(intCols(), 1)
	require.NoError(t, sender.Send(value.Row{value.NewInt(1)})) // fills the buffer

	done := make(chan error, 1)
	go func() {
		done <- sender.Send(value.Row{value.NewInt(2)}) // blocks: buffer full, nobody reading
	}()

	// Give the goroutine a moment to actually reach the blocking send.
	time.Sleep(20 * time.Millisecond)
	receiver.Drop()

	select {
	case err := <-done:
		assert.Error(t, err, "a blocked Send must fail once the receiver drops")
	case <-time.After(time.Second):
		t.Fatal("Send did not unblock after Drop; stage would leak a goroutine")
	}
}

func TestRecvTimeoutReturnsErrTimeout(t *testing.T) {
	_, receiver := stream.New(intCols(), 1)
	_, ok, err := receiver.RecvTimeout(10 * time.Millisecond)
	assert.False(t, ok)
	assert.ErrorIs(t, err, stream.ErrTimeout)
}

func TestTableReader(t *testing.T) {
	tbl := value.Table{
		Columns: intCols(),
		Rows:    []value.Row{{value.NewInt(1)}, {value.NewInt(2)}},
	}
	r := stream.NewTableReader(tbl)
	var got []value.Value
	for {
		row, ok, err := r.Read()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row[0])
	}
	assert.Equal(t, []value.Value{value.NewInt(1), value.NewInt(2)}, got)
}

func TestListReaderSynthesizesOneColumn(t *testing.T) {
	l := value.NewList(value.TypeInteger, []value.Value{value.NewInt(7)})
	r := stream.NewListReader("value", l)
	require.Equal(t, "value", r.Types()[0].Name)
	row, ok, err := r.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.NewInt(7), row[0])
	_, ok, err = r.Read()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDictReaderSynthesizesKeyValueColumns(t *testing.T) {
	d := value.NewDict(value.TypeString, value.TypeInteger)
	require.NoError(t, d.Set(value.Str("a"), value.NewInt(1)))
	r := stream.NewDictReader(d)
	cols := r.Types()
	require.Len(t, cols, 2)
	assert.Equal(t, "key", cols[0].Name)
	assert.Equal(t, "value", cols[1].Name)
	row, ok, err := r.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Str("a"), row[0])
	assert.Equal(t, value.NewInt(1), row[1])
}

// A sender's Fail turns the EOF its receiver eventually observes into the
// recorded error, after any already-buffered rows have been drained.
func TestSenderFailSurfacesAfterBufferedRows(t *testing.T) {
	sender, receiver := stream.New(intCols(), 4)
	require.NoError(t, sender.Send(value.Row{value.NewInt(1)}))
	boom := errors.New("boom")
	sender.Fail(boom)

	row, ok, err := receiver.Recv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.NewInt(1), row[0])

	_, ok, err = receiver.Recv()
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestFailNilIsCleanClose(t *testing.T) {
	sender, receiver := stream.New(intCols(), 1)
	sender.Fail(nil)
	_, ok, err := receiver.Recv()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestBlockedSendFailsWithErrReceiverGone(t *testing.T) {
	sender, receiver := stream.New(intCols(), 1)
	require.NoError(t, sender.Send(value.Row{value.NewInt(1)}))
	receiver.Drop()
	err := sender.Send(value.Row{value.NewInt(2)})
	assert.ErrorIs(t, err, stream.ErrReceiverGone)
}

// A Send that still fits in the buffer succeeds even when the receiver has
// already dropped: teardown must not race completed production.
func TestBufferedSendSucceedsAfterDrop(t *testing.T) {
	sender, receiver := stream.New(intCols(), 4)
	receiver.Drop()
	assert.NoError(t, sender.Send(value.Row{value.NewInt(1)}))
}
