package fakestream_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/dispatch/executor"
	"github.com/badu/dispatch/fakestream"
)

func TestRoundTrip(t *testing.T) {
	s := fakestream.New(executor.NewGo(), executor.NewGo())

	writes := []string{"hello, ", "world", "!"}
	for _, w := range writes {
		n, err := s.WriteSome([]byte(w))
		require.NoError(t, err)
		require.Equal(t, len(w), n)
	}
	s.Close()

	var got []byte
	buf := make([]byte, 4)
	for {
		n, err := s.ReadSome(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}
	assert.Equal(t, "hello, world!", string(got))
}

func TestEOFIsSticky(t *testing.T) {
	s := fakestream.New(executor.NewGo(), executor.NewGo())
	s.Close()

	n, err := s.WriteSome([]byte("too late"))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	n, err = s.ReadSome(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestAsyncReadCompletesOffCallerGoroutine(t *testing.T) {
	s := fakestream.New(executor.NewGo(), executor.NewGo())

	writerGoroutine := make(chan struct{})
	done := make(chan struct{})

	buf := make([]byte, 16)
	s.AsyncReadSome(buf, func(err error, n int) {
		select {
		case <-writerGoroutine:
		case <-time.After(500 * time.Millisecond):
			t.Error("handler ran inline on the writer goroutine")
		}
		close(done)
	})

	s.WriteSome([]byte("async"))
	close(writerGoroutine)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async read never completed")
	}
}

func TestCancelDoesNotStickError(t *testing.T) {
	s := fakestream.New(executor.NewGo(), executor.NewGo())

	done := make(chan error, 1)
	s.AsyncReadSome(make([]byte, 4), func(err error, n int) {
		done <- err
	})
	s.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, fakestream.ErrAborted)
	case <-time.After(time.Second):
		t.Fatal("cancel never completed the pending read")
	}

	n, err := s.WriteSome([]byte("resumed"))
	assert.NoError(t, err)
	assert.Equal(t, len("resumed"), n)
}

func TestResetReopensStream(t *testing.T) {
	s := fakestream.New(executor.NewGo(), executor.NewGo())
	s.Close()
	s.Reset()

	n, err := s.WriteSome([]byte("fresh"))
	require.NoError(t, err)
	require.Equal(t, len("fresh"), n)

	buf := make([]byte, 5)
	n, err = s.ReadSome(buf)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(buf[:n]))
}
