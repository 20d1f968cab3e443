package reqparser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/dispatch/reqparser"
)

type captured struct {
	began        bool
	url          string
	fields       []string
	values       []string
	method       string
	major, minor int
	body         []byte
	complete     bool
}

func newCapture() (*captured, reqparser.Settings) {
	c := &captured{}
	s := reqparser.Settings{
		OnMessageBegin: func() { c.began = true },
		OnURL: func(data []byte) error {
			c.url = string(data)
			return nil
		},
		OnHeaderField: func(data []byte) error {
			c.fields = append(c.fields, string(data))
			return nil
		},
		OnHeaderValue: func(data []byte) error {
			c.values = append(c.values, string(data))
			return nil
		},
		OnHeadersComplete: func(method string, major, minor int) error {
			c.method, c.major, c.minor = method, major, minor
			return nil
		},
		OnBody: func(data []byte) error {
			c.body = append(c.body, data...)
			return nil
		},
		OnMessageComplete: func() error {
			c.complete = true
			return nil
		},
	}
	return c, s
}

func TestParsesSimpleGetWithNoBody(t *testing.T) {
	c, settings := newCapture()
	p := reqparser.New(settings)

	msg := "GET /fink?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n"
	n, err := p.Execute([]byte(msg))
	require.Nil(t, err)
	assert.Equal(t, len(msg), n)

	assert.True(t, c.began)
	assert.Equal(t, "/fink?x=1", c.url)
	assert.Equal(t, "GET", c.method)
	assert.Equal(t, 1, c.major)
	assert.Equal(t, 1, c.minor)
	assert.Equal(t, []string{"host"}, c.fields)
	assert.Equal(t, []string{"example.com"}, c.values)
	assert.True(t, c.complete)
	assert.Empty(t, c.body)
}

func TestParsesContentLengthBody(t *testing.T) {
	c, settings := newCapture()
	p := reqparser.New(settings)

	msg := "POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	_, err := p.Execute([]byte(msg))
	require.Nil(t, err)

	assert.Equal(t, "POST", c.method)
	assert.Equal(t, "hello", string(c.body))
	assert.True(t, c.complete)
}

func TestParsesChunkedBody(t *testing.T) {
	c, settings := newCapture()
	p := reqparser.New(settings)

	msg := "POST /submit HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	_, err := p.Execute([]byte(msg))
	require.Nil(t, err)

	assert.Equal(t, "Wikipedia", string(c.body))
	assert.True(t, c.complete)
}

// TestByteAtATimeMatchesWholeMessage is property S7: feeding the request
// one byte per Execute call must produce identical callbacks to feeding it
// in a single call.
func TestByteAtATimeMatchesWholeMessage(t *testing.T) {
	msg := "POST /submit HTTP/1.1\r\nTransfer-Encoding: chunked\r\nX-Trace: a-b-c\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"

	whole, wholeSettings := newCapture()
	wp := reqparser.New(wholeSettings)
	_, err := wp.Execute([]byte(msg))
	require.Nil(t, err)

	split, splitSettings := newCapture()
	sp := reqparser.New(splitSettings)
	for i := 0; i < len(msg); i++ {
		n, err := sp.Execute([]byte(msg)[i : i+1])
		require.Nil(t, err)
		require.Equal(t, 1, n)
	}

	assert.Equal(t, whole.method, split.method)
	assert.Equal(t, whole.url, split.url)
	assert.Equal(t, whole.fields, split.fields)
	assert.Equal(t, whole.values, split.values)
	assert.Equal(t, string(whole.body), string(split.body))
	assert.Equal(t, whole.complete, split.complete)
}

func TestRejectsInvalidMethodByte(t *testing.T) {
	_, settings := newCapture()
	p := reqparser.New(settings)

	_, err := p.Execute([]byte("GE#T / HTTP/1.1\r\n\r\n"))
	require.NotNil(t, err)
	assert.Equal(t, reqparser.HPEInvalidMethod, err.Name)
}

func TestRejectsBadVersion(t *testing.T) {
	_, settings := newCapture()
	p := reqparser.New(settings)

	_, err := p.Execute([]byte("GET / HTTX/1.1\r\n\r\n"))
	require.NotNil(t, err)
	assert.Equal(t, reqparser.HPEInvalidVersion, err.Name)
}

func TestRejectsMissingLF(t *testing.T) {
	_, settings := newCapture()
	p := reqparser.New(settings)

	_, err := p.Execute([]byte("GET / HTTP/1.1\rX"))
	require.NotNil(t, err)
	assert.Equal(t, reqparser.HPELFExpected, err.Name)
}

func TestResetAllowsPipelinedRequests(t *testing.T) {
	c, settings := newCapture()
	p := reqparser.New(settings)

	first := "GET /one HTTP/1.1\r\n\r\n"
	n, err := p.Execute([]byte(first))
	require.Nil(t, err)
	assert.Equal(t, len(first), n)
	assert.True(t, c.complete)
	assert.Equal(t, "/one", c.url)

	p.Reset()

	second := "GET /two HTTP/1.1\r\n\r\n"
	_, err = p.Execute([]byte(second))
	require.Nil(t, err)
	assert.Equal(t, "/two", c.url)
}
