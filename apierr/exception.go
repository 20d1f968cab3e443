// Package apierr builds the wire-level error report sent back to clients
// when a handler fails or panics, the Go-native replacement for the
// original design's protobuf-based Exception message. Exception is encoded
// as JSON rather than protobuf: no protobuf toolchain travels with this
// module, and encoding/json already gives every field the stable,
// self-describing representation the original used util::JsonOptions for.
package apierr

import (
	"errors"
	"fmt"
)

// Exception mirrors the original Exception protobuf message: a type name,
// a human-readable message, and an optional nested cause.
type Exception struct {
	Name   string     `json:"name"`
	What   string     `json:"what"`
	Nested *Exception `json:"nested,omitempty"`
}

// causer is satisfied by errors produced with github.com/pkg/errors (for
// example by a handler that wraps its own failures with it), whose Cause
// chain this package walks to populate Nested the way the source walked
// std::rethrow_if_nested.
type causer interface {
	Cause() error
}

// named is satisfied by sentinel errors that want to control the Name
// field directly instead of taking the Go type name, e.g. the core's
// synthesised std::logic_error("server did not respond") equivalent.
type named interface {
	ExceptionName() string
}

// FromError populates an Exception tree from err, walking both
// github.com/pkg/errors' Cause chain and the standard library's Unwrap
// chain so nested causes produced by either survive the translation.
func FromError(err error) *Exception {
	if err == nil {
		return &Exception{Name: "none", What: "no exception"}
	}
	return populate(err)
}

func populate(err error) *Exception {
	// A Cause layer that reports the same text as its cause (the stack layer
	// github.com/pkg/errors.Wrap puts over its message layer) is not a
	// separate exception: descend past it.
	for {
		if _, isNamed := err.(named); isNamed {
			break
		}
		v, ok := err.(causer)
		if !ok {
			break
		}
		cause := v.Cause()
		if cause == nil || cause == err || cause.Error() != err.Error() {
			break
		}
		err = cause
	}

	e := &Exception{
		Name: typeName(err),
		What: err.Error(),
	}

	if v, ok := err.(causer); ok {
		if cause := v.Cause(); cause != nil && cause != err {
			e.Nested = populate(cause)
			return e
		}
	}
	if unwrapped := errors.Unwrap(err); unwrapped != nil && unwrapped != err {
		e.Nested = populate(unwrapped)
	}
	return e
}

func typeName(err error) string {
	if n, ok := err.(named); ok {
		return n.ExceptionName()
	}
	return fmt.Sprintf("%T", err)
}

// FromText builds a leaf Exception from a plain string, for call sites
// (such as a recovered panic value) that carry no error/exception type.
func FromText(text string) *Exception {
	return &Exception{Name: "text", What: text}
}

// FromRecover builds an Exception from the value recovered by a deferred
// recover() call, dispatching on whether it is an error, a string, or
// something else entirely (mirroring the original's catch(...) fallback).
func FromRecover(r interface{}) *Exception {
	switch v := r.(type) {
	case nil:
		return &Exception{Name: "none", What: "no exception"}
	case error:
		return FromError(v)
	case string:
		return FromText(v)
	default:
		return &Exception{Name: "unknown", What: fmt.Sprintf("%v", v)}
	}
}
