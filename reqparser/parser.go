// Package reqparser implements an incremental, push-style HTTP/1.x request
// parser: a Go-native replacement for the original design's dependency on
// an external http_parser library. Execute may be called with arbitrarily
// small or large slices of the incoming byte stream — the parser carries
// enough state across calls to produce the same sequence of callbacks
// regardless of how the caller chunks the input.
package reqparser

import (
	"strconv"
	"strings"
)

type state int

const (
	stateMethod state = iota
	stateURL
	stateVersionH
	stateVersionT1
	stateVersionT2
	stateVersionP
	stateVersionSlash
	stateVersionMajor
	stateVersionMinor
	stateVersionCR
	stateVersionLF
	stateHeaderFieldStart
	stateHeaderField
	stateHeaderValueStart
	stateHeaderValueOWS
	stateHeaderValue
	stateHeaderValueCR
	stateHeadersAlmostDone
	stateBodyIdentity
	stateBodyUntilClose
	stateChunkSizeStart
	stateChunkSize
	stateChunkExtension
	stateChunkSizeCR
	stateChunkData
	stateChunkDataCR
	stateChunkDataLF
	stateChunkTrailerStart
	stateChunkTrailerCR
	stateMessageDone
)

// Settings holds the callbacks a Parser invokes as it recognizes pieces of
// a request. Every field is optional; a nil callback is simply skipped.
// Returning a non-nil error from any callback aborts parsing and is
// surfaced from Execute, wrapped the same way a parser-detected syntax
// error would be.
type Settings struct {
	OnMessageBegin    func()
	OnURL             func(data []byte) error
	OnHeaderField     func(data []byte) error
	OnHeaderValue     func(data []byte) error
	OnHeadersComplete func(method string, major, minor int) error
	OnBody            func(data []byte) error
	OnMessageComplete func() error
}

// Parser is an incremental request parser bound to one connection. It is
// not safe for concurrent use; pair one Parser with one strand.
type Parser struct {
	settings Settings

	state state

	method strings.Builder
	url    strings.Builder

	major, minor int

	fieldBuf strings.Builder
	valueBuf strings.Builder
	curField string

	contentLength    int64
	hasContentLength bool
	isChunked        bool
	bodyRemaining    int64
	chunkSizeDigits  strings.Builder
}

// New returns a Parser that invokes settings' callbacks as it recognizes
// request components.
func New(settings Settings) *Parser {
	return &Parser{settings: settings}
}

// Reset prepares the parser to read a new pipelined request, discarding any
// partial state from the previous one. It may safely be called from within
// an OnMessageComplete callback itself; Execute re-reads p.state on every
// iteration of its loop, so resetting mid-callback correctly resumes parsing
// the next pipelined request's first byte.
func (p *Parser) Reset() {
	*p = Parser{settings: p.settings}
}

// Execute feeds data to the parser, returning the number of bytes consumed
// (always len(data), unless an error is returned, in which case it is the
// offset at which the error was detected) and a non-nil *ParseError on
// malformed input.
func (p *Parser) Execute(data []byte) (int, *ParseError) {
	i := 0
	for i < len(data) {
		c := data[i]
		switch p.state {
		case stateMethod:
			if c == ' ' {
				if p.method.Len() == 0 {
					return i, newErr(HPEInvalidMethod, "empty method")
				}
				if p.settings.OnMessageBegin != nil {
					p.settings.OnMessageBegin()
				}
				p.state = stateURL
				i++
				continue
			}
			if !isUpperAlpha(c) {
				return i, newErr(HPEInvalidMethod, "invalid method token byte")
			}
			p.method.WriteByte(c)
			i++

		case stateURL:
			if c == ' ' {
				if p.url.Len() == 0 {
					return i, newErr(HPEInvalidMethod, "empty request target")
				}
				if p.settings.OnURL != nil {
					if err := p.settings.OnURL([]byte(p.url.String())); err != nil {
						return i, newErr(HPEInvalidMethod, err.Error())
					}
				}
				p.state = stateVersionH
				i++
				continue
			}
			if c < 0x20 || c == 0x7f {
				return i, newErr(HPEInvalidMethod, "control byte in request target")
			}
			p.url.WriteByte(c)
			i++

		case stateVersionH:
			if c != 'H' {
				return i, newErr(HPEInvalidVersion, "expected 'H'")
			}
			p.state = stateVersionT1
			i++
		case stateVersionT1:
			if c != 'T' {
				return i, newErr(HPEInvalidVersion, "expected 'T'")
			}
			p.state = stateVersionT2
			i++
		case stateVersionT2:
			if c != 'T' {
				return i, newErr(HPEInvalidVersion, "expected second 'T'")
			}
			p.state = stateVersionP
			i++
		case stateVersionP:
			if c != 'P' {
				return i, newErr(HPEInvalidVersion, "expected 'P'")
			}
			p.state = stateVersionSlash
			i++
		case stateVersionSlash:
			if c != '/' {
				return i, newErr(HPEInvalidVersion, "expected '/'")
			}
			p.state = stateVersionMajor
			i++
		case stateVersionMajor:
			if !isDigit(c) {
				return i, newErr(HPEInvalidVersion, "expected major version digit")
			}
			p.major = int(c - '0')
			p.state = stateVersionMinor
			i++

		case stateVersionMinor:
			if c == '.' {
				i++
				continue
			}
			if !isDigit(c) {
				return i, newErr(HPEInvalidVersion, "expected minor version digit")
			}
			p.minor = int(c - '0')
			p.state = stateVersionCR
			i++

		case stateVersionCR:
			if c != '\r' {
				return i, newErr(HPEInvalidVersion, "expected CR after version")
			}
			p.state = stateVersionLF
			i++
		case stateVersionLF:
			if c != '\n' {
				return i, newErr(HPELFExpected, "expected LF after request line CR")
			}
			p.state = stateHeaderFieldStart
			i++

		case stateHeaderFieldStart:
			if c == '\r' {
				p.state = stateHeadersAlmostDone
				i++
				continue
			}
			if !isHeaderTokenChar(c) {
				return i, newErr(HPEInvalidHeaderToken, "invalid header field start byte")
			}
			p.fieldBuf.Reset()
			p.fieldBuf.WriteByte(lowerByte(c))
			p.state = stateHeaderField
			i++

		case stateHeaderField:
			if c == ':' {
				p.curField = p.fieldBuf.String()
				if p.settings.OnHeaderField != nil {
					if err := p.settings.OnHeaderField([]byte(p.curField)); err != nil {
						return i, newErr(HPEInvalidHeaderToken, err.Error())
					}
				}
				p.valueBuf.Reset()
				p.state = stateHeaderValueStart
				i++
				continue
			}
			if !isHeaderTokenChar(c) {
				return i, newErr(HPEInvalidHeaderToken, "invalid header field byte")
			}
			p.fieldBuf.WriteByte(lowerByte(c))
			i++

		case stateHeaderValueStart:
			p.state = stateHeaderValueOWS
			// fallthrough without consuming c

		case stateHeaderValueOWS:
			if c == ' ' || c == '\t' {
				i++
				continue
			}
			p.state = stateHeaderValue
			// fallthrough without consuming c

		case stateHeaderValue:
			if c == '\r' {
				p.state = stateHeaderValueCR
				i++
				continue
			}
			p.valueBuf.WriteByte(c)
			i++

		case stateHeaderValueCR:
			if c != '\n' {
				return i, newErr(HPELFExpected, "expected LF after header value CR")
			}
			value := strings.TrimRight(p.valueBuf.String(), " \t")
			if p.settings.OnHeaderValue != nil {
				if err := p.settings.OnHeaderValue([]byte(value)); err != nil {
					return i, newErr(HPEInvalidHeaderToken, err.Error())
				}
			}
			p.trackFramingHeader(p.curField, value)
			p.state = stateHeaderFieldStart
			i++

		case stateHeadersAlmostDone:
			if c != '\n' {
				return i, newErr(HPELFExpected, "expected LF to end header block")
			}
			i++
			if err := p.enterBody(); err != nil {
				return i, err
			}

		case stateBodyIdentity:
			n := int64(len(data) - i)
			if n > p.bodyRemaining {
				n = p.bodyRemaining
			}
			if n > 0 && p.settings.OnBody != nil {
				if err := p.settings.OnBody(data[i : i+int(n)]); err != nil {
					return i, newErr(HPEInvalidConstant, err.Error())
				}
			}
			i += int(n)
			p.bodyRemaining -= n
			if p.bodyRemaining == 0 {
				if err := p.finishMessage(); err != nil {
					return i, err
				}
			}

		case stateBodyUntilClose:
			if len(data[i:]) > 0 && p.settings.OnBody != nil {
				if err := p.settings.OnBody(data[i:]); err != nil {
					return i, newErr(HPEInvalidConstant, err.Error())
				}
			}
			i = len(data)

		case stateChunkSizeStart:
			if !isHexDigit(c) {
				return i, newErr(HPEInvalidChunkSize, "expected hex digit at chunk size start")
			}
			p.chunkSizeDigits.Reset()
			p.chunkSizeDigits.WriteByte(c)
			p.state = stateChunkSize
			i++

		case stateChunkSize:
			if isHexDigit(c) {
				p.chunkSizeDigits.WriteByte(c)
				i++
				continue
			}
			if c == ';' {
				p.state = stateChunkExtension
				i++
				continue
			}
			if c == '\r' {
				if err := p.latchChunkSize(); err != nil {
					return i, err
				}
				p.state = stateChunkSizeCR
				i++
				continue
			}
			return i, newErr(HPEInvalidChunkSize, "unexpected byte in chunk size")

		case stateChunkExtension:
			if c == '\r' {
				if err := p.latchChunkSize(); err != nil {
					return i, err
				}
				p.state = stateChunkSizeCR
			}
			i++

		case stateChunkSizeCR:
			if c != '\n' {
				return i, newErr(HPELFExpected, "expected LF after chunk size")
			}
			i++
			if p.bodyRemaining == 0 {
				p.state = stateChunkTrailerStart
			} else {
				p.state = stateChunkData
			}

		case stateChunkData:
			n := int64(len(data) - i)
			if n > p.bodyRemaining {
				n = p.bodyRemaining
			}
			if n > 0 && p.settings.OnBody != nil {
				if err := p.settings.OnBody(data[i : i+int(n)]); err != nil {
					return i, newErr(HPEInvalidConstant, err.Error())
				}
			}
			i += int(n)
			p.bodyRemaining -= n
			if p.bodyRemaining == 0 {
				p.state = stateChunkDataCR
			}

		case stateChunkDataCR:
			if c != '\r' {
				return i, newErr(HPEInvalidConstant, "expected CR after chunk data")
			}
			p.state = stateChunkDataLF
			i++
		case stateChunkDataLF:
			if c != '\n' {
				return i, newErr(HPELFExpected, "expected LF after chunk data CR")
			}
			p.state = stateChunkSizeStart
			i++

		case stateChunkTrailerStart:
			if c == '\r' {
				p.state = stateChunkTrailerCR
				i++
				continue
			}
			// Trailer headers are parsed but not surfaced as framing data;
			// skip to end of line.
			if !isHeaderTokenChar(c) && c != ' ' && c != '\t' {
				return i, newErr(HPEInvalidHeaderToken, "invalid trailer byte")
			}
			i++
		case stateChunkTrailerCR:
			if c != '\n' {
				return i, newErr(HPELFExpected, "expected LF to end trailers")
			}
			i++
			if err := p.finishMessage(); err != nil {
				return i, err
			}

		case stateMessageDone:
			return i, newErr(HPEInvalidConstant, "data after message complete; call Reset")

		default:
			return i, newErr(HPEInvalidConstant, "parser in unknown state")
		}
	}
	return i, nil
}

func (p *Parser) trackFramingHeader(field, value string) {
	switch field {
	case "content-length":
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && n >= 0 {
			p.contentLength = n
			p.hasContentLength = true
		}
	case "transfer-encoding":
		if strings.Contains(strings.ToLower(value), "chunked") {
			p.isChunked = true
		}
	}
}

func (p *Parser) enterBody() *ParseError {
	method := p.method.String()
	if p.settings.OnHeadersComplete != nil {
		if err := p.settings.OnHeadersComplete(method, p.major, p.minor); err != nil {
			return newErr(HPEInvalidConstant, err.Error())
		}
	}
	switch {
	case p.isChunked:
		p.state = stateChunkSizeStart
	case p.hasContentLength && p.contentLength > 0:
		p.bodyRemaining = p.contentLength
		p.state = stateBodyIdentity
	case p.hasContentLength:
		return p.finishMessage()
	default:
		return p.finishMessage()
	}
	return nil
}

func (p *Parser) latchChunkSize() *ParseError {
	n, err := strconv.ParseUint(p.chunkSizeDigits.String(), 16, 63)
	if err != nil {
		return newErr(HPEInvalidChunkSize, "chunk size overflow or malformed hex")
	}
	p.bodyRemaining = int64(n)
	return nil
}

func (p *Parser) finishMessage() *ParseError {
	p.state = stateMessageDone
	if p.settings.OnMessageComplete != nil {
		if err := p.settings.OnMessageComplete(); err != nil {
			return newErr(HPEInvalidConstant, err.Error())
		}
	}
	return nil
}

func isUpperAlpha(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isHeaderTokenChar(c byte) bool {
	if c < 0x21 || c > 0x7e {
		return false
	}
	switch c {
	case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/', '[', ']', '?', '=', '{', '}':
		return false
	}
	return true
}
