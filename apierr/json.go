package apierr

import (
	"bytes"
	"encoding/json"
)

// jsonOptions mirrors the source's json_options()/pretty_json/compact_json
// functional-option builder, adapted to encoding/json's MarshalIndent.
type jsonOptions struct {
	indent string
}

// Option configures AsJSON's rendering.
type Option func(*jsonOptions)

// Pretty renders the Exception with two-space indentation, matching the
// source's default pretty_json option.
func Pretty() Option {
	return func(o *jsonOptions) { o.indent = "  " }
}

// Compact renders the Exception with no extra whitespace.
func Compact() Option {
	return func(o *jsonOptions) { o.indent = "" }
}

// AsJSON renders e as JSON. With no options it defaults to Pretty, matching
// the source's default (pretty_json, include_defaults).
func AsJSON(e *Exception, opts ...Option) ([]byte, error) {
	o := jsonOptions{indent: "  "}
	for _, opt := range opts {
		opt(&o)
	}

	if o.indent == "" {
		return json.Marshal(e)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", o.indent)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
