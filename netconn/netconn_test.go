package netconn_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/dispatch/executor"
	"github.com/badu/dispatch/netconn"
)

func TestAsyncReadSomeDeliversData(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	c := netconn.Wrap(server, executor.NewGo(), executor.NewGo())

	done := make(chan struct{})
	buf := make([]byte, 16)
	var gotN int
	var gotErr error
	c.AsyncReadSome(buf, func(err error, n int) {
		gotErr, gotN = err, n
		close(done)
	})

	go client.Write([]byte("hello"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for read completion")
	}

	require.NoError(t, gotErr)
	assert.Equal(t, "hello", string(buf[:gotN]))
}

func TestAsyncWriteSomeSendsData(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	c := netconn.Wrap(server, executor.NewGo(), executor.NewGo())

	readBuf := make([]byte, 16)
	readDone := make(chan int)
	go func() {
		n, _ := client.Read(readBuf)
		readDone <- n
	}()

	done := make(chan struct{})
	c.AsyncWriteSome([]byte("world"), func(err error, n int) {
		assert.NoError(t, err)
		assert.Equal(t, 5, n)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write completion")
	}

	select {
	case n := <-readDone:
		assert.Equal(t, "world", string(readBuf[:n]))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for peer read")
	}
}

func TestCancelAbortsPendingRead(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	c := netconn.Wrap(server, executor.NewGo(), executor.NewGo())

	done := make(chan error, 1)
	c.AsyncReadSome(make([]byte, 8), func(err error, n int) {
		done <- err
	})

	c.Cancel()

	select {
	case err := <-done:
		if err != netconn.ErrAborted && err != io.EOF {
			t.Fatalf("expected ErrAborted, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not unblock pending read")
	}
}
