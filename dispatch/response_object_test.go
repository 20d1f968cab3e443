package dispatch

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/dispatch/executor"
	"github.com/badu/dispatch/fakestream"
)

func newTestContext(reqMajor, reqMinor int) *RequestContext {
	rc := NewRequestContext(NewConnectionID(), executor.NewGo(), executor.NewGo())
	rc.RequestHeader.Major = reqMajor
	rc.RequestHeader.Minor = reqMinor
	return rc
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func drainResponse(t *testing.T, rc *RequestContext) []byte {
	t.Helper()
	data, err := io.ReadAll(readerFunc(func(p []byte) (int, error) {
		return rc.ResponseStream.ReadSome(p)
	}))
	require.NoError(t, err)
	return data
}

func TestResponseObjectFlushFixedLength(t *testing.T) {
	rc := newTestContext(1, 1)
	resp := newResponseObject(rc)
	resp.MutableHeader().SetStatus(200, "OK")

	n, err := resp.Flush([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	cl, ok := resp.Header().Headers.Get("Content-Length")
	require.True(t, ok)
	assert.Equal(t, "5", cl)
}

func TestResponseObjectModeFinalityChunkedThenFixedIsNoop(t *testing.T) {
	rc := newTestContext(1, 1)
	resp := newResponseObject(rc)

	resp.SetContentLengthVariable()
	resp.SetContentLengthFixed(10)

	_, ok := resp.Header().Headers.Get("Content-Length")
	assert.False(t, ok, "first mode decision wins; later calls are no-ops")
}

func TestResponseObjectChunkedFramingHTTP11(t *testing.T) {
	rc := newTestContext(1, 1)
	resp := newResponseObject(rc)
	resp.MutableHeader().SetStatus(200, "OK")

	_, err := resp.WriteSome([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, resp.Close())

	data := drainResponse(t, rc)
	assert.Contains(t, string(data), "Transfer-Encoding: chunked")
	assert.Contains(t, string(data), "3\r\nabc\r\n")
	assert.Contains(t, string(data), "0\r\n\r\n")
}

func TestResponseObjectRawFramingHTTP10(t *testing.T) {
	rc := newTestContext(1, 0)
	resp := newResponseObject(rc)
	resp.MutableHeader().SetStatus(200, "OK")

	_, err := resp.WriteSome([]byte("xyz"))
	require.NoError(t, err)

	assert.Equal(t, "close", resp.Header().Headers.GetOr("Connection", ""))
	_, hasCL := resp.Header().Headers.Get("Content-Length")
	assert.False(t, hasCL)
}

func TestResponseObjectCloseWithUndecidedModeSynthesizesNoResponse(t *testing.T) {
	rc := newTestContext(1, 1)
	resp := newResponseObject(rc)

	err := resp.Close()
	require.NoError(t, err)

	require.True(t, resp.Header().HasStatus())
	assert.Equal(t, 500, resp.Header().GetStatus().Code)

	data := drainResponse(t, rc)
	assert.Contains(t, string(data), `"what":"server did not respond"`)
}

func TestResponseObjectSetExceptionBeforeHeaderCommit(t *testing.T) {
	rc := newTestContext(1, 1)
	resp := newResponseObject(rc)

	resp.SetException(testError{"boom"})

	assert.Equal(t, 500, resp.Header().GetStatus().Code)
	data := drainResponse(t, rc)
	assert.Contains(t, string(data), `"what":"boom"`)
	assert.Contains(t, string(data), "Content-Type: application/json")
}

func TestResponseObjectSetExceptionAfterHeaderCommitAbortsStream(t *testing.T) {
	rc := newTestContext(1, 1)
	resp := newResponseObject(rc)
	resp.MutableHeader().SetStatus(200, "OK")
	require.NoError(t, resp.CommitHeader())

	resp.SetException(testError{"late failure"})

	buf := make([]byte, 256)
	for {
		_, err := rc.ResponseStream.ReadSome(buf)
		if err != nil {
			assert.ErrorIs(t, err, fakestream.ErrAborted)
			return
		}
	}
}

func TestResponseObjectConnectionCloseWhenRequestHasNoConnectionHeader(t *testing.T) {
	rc := newTestContext(1, 1)
	resp := newResponseObject(rc)

	resp.SetContentLengthFixed(3)

	assert.Equal(t, "close", resp.Header().Headers.GetOr("Connection", ""))
}

func TestResponseObjectConnectionKeepAliveWhenRequested(t *testing.T) {
	rc := newTestContext(1, 1)
	rc.RequestHeader.Headers.Add("Connection", "keep-alive")
	resp := newResponseObject(rc)

	resp.SetContentLengthFixed(3)

	assert.Equal(t, "keep-alive", resp.Header().Headers.GetOr("Connection", ""))
}

func TestResponseObjectConnectionCloseWhenRequestAsksClose(t *testing.T) {
	rc := newTestContext(1, 1)
	rc.RequestHeader.Headers.Add("Connection", "close")
	resp := newResponseObject(rc)

	resp.SetContentLengthFixed(3)

	assert.Equal(t, "close", resp.Header().Headers.GetOr("Connection", ""))
}

func TestResponseObjectHTTP10WithoutKeepAliveMustClose(t *testing.T) {
	rc := newTestContext(1, 0)
	resp := newResponseObject(rc)

	resp.SetContentLengthFixed(3)

	assert.Equal(t, "close", resp.Header().Headers.GetOr("Connection", ""))
}

type testError struct{ msg string }

func (e testError) Error() string { return e.msg }
