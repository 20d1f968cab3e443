package wire

import (
	"fmt"
	"strconv"
)

// EncodeResponseHeader renders the status line, headers, and terminating
// blank line for h, per §4.6:
//
//	HTTP/<major>.<minor> <code> <message>\r\n
//	<name>: <value>\r\n  (repeated)
//	\r\n
//
// It is a precondition that h.HasStatus() is true.
func EncodeResponseHeader(h *ResponseHeader) []byte {
	if !h.HasStatus() {
		panic("wire: EncodeResponseHeader requires a status line")
	}
	status := h.GetStatus()

	size := len("HTTP/") + 1 + 1 + 1 + len(strconv.Itoa(h.Major)) + len(strconv.Itoa(h.Minor)) +
		1 + len(strconv.Itoa(status.Code)) + 1 + len(status.Message) + 2
	for _, f := range h.Headers {
		size += len(f.Name) + 2 + len(f.Value) + 2
	}
	size += 2

	buf := make([]byte, 0, size)
	buf = append(buf, "HTTP/"...)
	buf = strconv.AppendInt(buf, int64(h.Major), 10)
	buf = append(buf, '.')
	buf = strconv.AppendInt(buf, int64(h.Minor), 10)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(status.Code), 10)
	buf = append(buf, ' ')
	buf = append(buf, status.Message...)
	buf = append(buf, '\r', '\n')
	for _, f := range h.Headers {
		buf = append(buf, f.Name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, f.Value...)
		buf = append(buf, '\r', '\n')
	}
	buf = append(buf, '\r', '\n')
	return buf
}

// EncodeChunkHeader renders the hex length line that precedes a chunk's
// data in chunked transfer encoding.
func EncodeChunkHeader(size int) []byte {
	return []byte(fmt.Sprintf("%x\r\n", size))
}

// CRLF is the two-byte line terminator used throughout the HTTP/1.x wire
// format.
var CRLF = []byte("\r\n")

// FinalChunk is the terminating zero-length chunk plus trailing blank line.
var FinalChunk = []byte("0\r\n\r\n")
