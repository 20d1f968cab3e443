// Package wire holds the HTTP/1.x message types (request header, response
// header, content type, chunk framing) and their wire encoders/decoders.
// Header storage is an ordered list rather than a map: the design requires
// duplicate header names to preserve insertion order on the wire, and
// requires Set to behave as "erase all occurrences, insert one" while
// Add preserves duplicates -- a map of slices cannot express the first
// of those two without extra bookkeeping, so a plain ordered slice is used
// throughout, matching the original source's protobuf-repeated-field model.
package wire

import "strings"

// Field is a single (name, value) header pair. Case is preserved as given
// on the wire; comparisons against a Field's Name are case-insensitive.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered list of header fields.
type Fields []Field

// Get returns the value of the first field whose name matches (case
// insensitively), and whether one was found.
func (f Fields) Get(name string) (string, bool) {
	for _, h := range f {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// GetOr is Get with a caller-supplied default for the not-found case.
func (f Fields) GetOr(name, def string) string {
	if v, ok := f.Get(name); ok {
		return v
	}
	return def
}

// Has reports whether any field matches name.
func (f Fields) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Add appends a new field, preserving any existing fields of the same name.
func (f *Fields) Add(name, value string) {
	*f = append(*f, Field{Name: name, Value: value})
}

// Set replaces all fields named name with a single field carrying value,
// keeping the position of the first match (or appending if none existed).
// This mirrors the original design's set_header: "erase all, insert one".
func (f *Fields) Set(name, value string) {
	list := *f
	firstIdx := -1
	out := list[:0]
	for i, h := range list {
		if strings.EqualFold(h.Name, name) {
			if firstIdx == -1 {
				firstIdx = len(out)
				out = append(out, Field{Name: name, Value: value})
			}
			continue
		}
		out = append(out, h)
	}
	if firstIdx == -1 {
		out = append(out, Field{Name: name, Value: value})
	}
	*f = out
}

// Del removes every field named name.
func (f *Fields) Del(name string) {
	list := *f
	out := list[:0]
	for _, h := range list {
		if !strings.EqualFold(h.Name, name) {
			out = append(out, h)
		}
	}
	*f = out
}

// FindAll returns every field named name, in order.
func (f Fields) FindAll(name string) []Field {
	var out []Field
	for _, h := range f {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h)
		}
	}
	return out
}
