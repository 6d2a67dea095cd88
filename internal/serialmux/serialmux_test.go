package serialmux

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		require.True(t, ok, "subscriber closed early")
		return line
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for board line")
		return ""
	}
}

func TestInitialize_SendsSafeState(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.Initialize())
	assert.Equal(t, []string{"M,0,0", "T,0,0", "L,0,0,0", "D,C", "D,S"}, port.Written())
	assert.Equal(t, uint64(5), mux.Stats().Commands)
}

func TestInitialize_WriteError(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteError = errors.New("unplugged")

	err := NewSerialMux(port).Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "M,0,0")
}

func TestSendCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		short   bool
		want    string
		wantErr error
	}{
		{"appends newline", "M,10,-10", false, "M,10,-10\n", nil},
		{"trailing newline kept single", "U\r\n", false, "U\n", nil},
		{"embedded newline rejected", "M,1,1\nM,2,2", false, "", errors.New("spans")},
		{"short write", "U", true, "", ErrWriteFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := NewTestableSerialPort()
			port.ShortWrite = tt.short
			mux := NewSerialMux(port)

			err := mux.SendCommand(tt.command)
			switch {
			case tt.wantErr == ErrWriteFailed:
				assert.ErrorIs(t, err, ErrWriteFailed)
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				assert.Empty(t, port.GetWrittenData())
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, string(port.GetWrittenData()))
			}
		})
	}
}

func TestSendCommand_Concurrent(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, mux.SendCommand("M,12,12"))
		}()
	}
	wg.Wait()

	written := port.Written()
	require.Len(t, written, 20)
	for _, w := range written {
		assert.Equal(t, "M,12,12", w, "commands must not interleave")
	}
}

func TestMonitor_FansOutToSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.Feed("R,800,780,200,790,810", "E,1765", "# board v1.3")
	for _, ch := range []chan string{a, b} {
		assert.Equal(t, "R,800,780,200,790,810", recv(t, ch))
		assert.Equal(t, "E,1765", recv(t, ch))
		assert.Equal(t, "# board v1.3", recv(t, ch))
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after cancel")
	}

	st := mux.Stats()
	assert.Equal(t, uint64(1), st.Records[EventTypeReflectance])
	assert.Equal(t, uint64(1), st.Records[EventTypeEcho])
	assert.Equal(t, uint64(1), st.Records[EventTypeInfo])
	assert.Equal(t, uint64(0), st.Records[EventTypeProximity])
	assert.False(t, st.LastRecord.IsZero())
	assert.Equal(t, 2, st.Subscribers)
}

func TestMonitor_EOFReturnsNil(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	port.Feed("P,0,0")
	port.End()

	assert.NoError(t, mux.Monitor(context.Background()))
	assert.Equal(t, uint64(1), mux.Stats().Records[EventTypeProximity])
}

func TestMonitor_SlowSubscriberDropsRecords(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	lines := make([]string, subscriberBuffer+4)
	for i := range lines {
		lines[i] = "E,100"
	}
	port.Feed(lines...)
	port.End()

	require.NoError(t, mux.Monitor(context.Background()))
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, uint64(4), mux.Stats().Dropped)
}

func TestUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)
	mux.Unsubscribe(id)
	mux.Unsubscribe("unknown")

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, mux.Stats().Subscribers)
}

func TestClose(t *testing.T) {
	port := NewTestableSerialPort()
	port.CloseError = errors.New("already gone")
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	assert.EqualError(t, mux.Close(), "already gone")
	assert.NoError(t, mux.Close(), "second close is a no-op")
	assert.True(t, port.IsClosed())

	_, ok := <-ch
	assert.False(t, ok)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after Close")
	}

	assert.ErrorIs(t, mux.SendCommand("U"), ErrClosed)
	_, late := mux.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")
}
