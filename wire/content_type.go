package wire

import (
	"fmt"
	"strings"
)

// ContentTypeParam is one ";name[=value]" parameter of a Content-Type
// header, in the order parsed.
type ContentTypeParam struct {
	Name     string
	Value    string
	HasValue bool
}

// ContentType is the parsed form of a Content-Type header value, e.g.
// "text/html; charset=ISO-8859-4" -> Type "text", Subtype "html",
// Params [{charset ISO-8859-4 true}].
type ContentType struct {
	Type    string
	Subtype string
	Params  []ContentTypeParam
}

// ParseContentType parses a raw Content-Type header value. It is lenient in
// the same places the source's hand-rolled tokenizer is: tokens are any run
// of non-separator, non-control bytes; quoted parameter values support
// backslash-free doubled-quote escaping ("" -> ") per the source grammar.
func ParseContentType(headerValue string) (ContentType, error) {
	var ct ContentType
	p := ctParser{s: headerValue}

	p.skipWhite()
	typ, err := p.consumeToken()
	if err != nil {
		return ct, fmt.Errorf("content-type: %w", err)
	}
	if err := p.consumeLit('/'); err != nil {
		return ct, fmt.Errorf("content-type: %w", err)
	}
	subtype, err := p.consumeToken()
	if err != nil {
		return ct, fmt.Errorf("content-type: %w", err)
	}
	ct.Type = strings.ToLower(typ)
	ct.Subtype = strings.ToLower(subtype)

	for !p.done() {
		p.skipWhite()
		if p.consumeCharIf(';') {
			p.skipWhite()
			name, err := p.consumeToken()
			if err != nil {
				return ct, fmt.Errorf("content-type: %w", err)
			}
			param := ContentTypeParam{Name: strings.ToLower(name)}
			p.skipWhite()
			if p.consumeCharIf('=') {
				p.skipWhite()
				value, err := p.consumeTokenOrQuoted()
				if err != nil {
					return ct, fmt.Errorf("content-type: %w", err)
				}
				param.Value = value
				param.HasValue = true
			}
			ct.Params = append(ct.Params, param)
		} else if p.consumeCharIf(',') {
			return ct, fmt.Errorf("content-type: invalid use of , in Content-Type")
		} else {
			break
		}
	}
	return ct, nil
}

// FindParam returns the named parameter's value and whether it was present
// (and carried a value).
func (c ContentType) FindParam(name string) (string, bool) {
	for _, p := range c.Params {
		if strings.EqualFold(p.Name, name) && p.HasValue {
			return p.Value, true
		}
	}
	return "", false
}

type ctParser struct {
	s   string
	pos int
}

func (p *ctParser) done() bool { return p.pos >= len(p.s) }

func isSeparator(c byte) bool {
	return strings.IndexByte("()<>@,;:\\/[]?={} \t\"", c) >= 0
}

func isControl(c byte) bool { return c < 0x20 || c == 0x7f }
func isWhite(c byte) bool   { return c == ' ' || c == '\t' }

func (p *ctParser) peek() (byte, bool) {
	if p.done() {
		return 0, false
	}
	return p.s[p.pos], true
}

func (p *ctParser) consumeCharIf(c byte) bool {
	if v, ok := p.peek(); ok && v == c {
		p.pos++
		return true
	}
	return false
}

func (p *ctParser) consumeLit(c byte) error {
	if v, ok := p.peek(); ok && v == c {
		p.pos++
		return nil
	}
	return fmt.Errorf("missing literal: %q", c)
}

func (p *ctParser) skipWhite() {
	for !p.done() && isWhite(p.s[p.pos]) {
		p.pos++
	}
}

func (p *ctParser) consumeToken() (string, error) {
	start := p.pos
	for !p.done() {
		c := p.s[p.pos]
		if isControl(c) || isSeparator(c) {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("invalid separator at %d", start)
	}
	return p.s[start:p.pos], nil
}

func (p *ctParser) consumeTokenOrQuoted() (string, error) {
	if !p.consumeCharIf('"') {
		return p.consumeToken()
	}
	var sb strings.Builder
	for !p.done() {
		if p.consumeCharIf('"') {
			if p.consumeCharIf('"') {
				sb.WriteByte('"')
				continue
			}
			return sb.String(), nil
		}
		sb.WriteByte(p.s[p.pos])
		p.pos++
	}
	return "", fmt.Errorf("no closing quote on parameter")
}
