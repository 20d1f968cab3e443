package apierr_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/dispatch/apierr"
)

func TestFromErrorFlatError(t *testing.T) {
	e := apierr.FromError(fmt.Errorf("boom"))
	assert.Equal(t, "boom", e.What)
	assert.Nil(t, e.Nested)
}

func TestFromErrorWalksPkgErrorsCause(t *testing.T) {
	root := errors.New("disk full")
	wrapped := errors.Wrap(root, "flush failed")

	e := apierr.FromError(wrapped)
	assert.Equal(t, "flush failed: disk full", e.What)
	require.NotNil(t, e.Nested)
	assert.Equal(t, "disk full", e.Nested.What)
}

func TestFromErrorWalksStdlibUnwrap(t *testing.T) {
	root := fmt.Errorf("timeout")
	wrapped := fmt.Errorf("request failed: %w", root)

	e := apierr.FromError(wrapped)
	require.NotNil(t, e.Nested)
	assert.Equal(t, "timeout", e.Nested.What)
}

func TestFromRecoverDispatchesOnType(t *testing.T) {
	assert.Equal(t, "no exception", apierr.FromRecover(nil).What)
	assert.Equal(t, "boom", apierr.FromRecover(fmt.Errorf("boom")).What)
	assert.Equal(t, "panic text", apierr.FromRecover("panic text").What)
	assert.Equal(t, "unknown", apierr.FromRecover(42).Name)
}

func TestAsJSONRoundTrips(t *testing.T) {
	e := apierr.FromError(errors.Wrap(errors.New("root cause"), "outer"))

	data, err := apierr.AsJSON(e)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "outer: root cause", decoded["what"])
	assert.NotNil(t, decoded["nested"])
}

type namedError struct{ name, what string }

func (e *namedError) Error() string         { return e.what }
func (e *namedError) ExceptionName() string { return e.name }

func TestFromErrorUsesExceptionNameWhenProvided(t *testing.T) {
	e := apierr.FromError(&namedError{name: "std::logic_error", what: "server did not respond"})
	assert.Equal(t, "std::logic_error", e.Name)
	assert.Equal(t, "server did not respond", e.What)
}

func TestAsJSONCompactHasNoNewlines(t *testing.T) {
	e := apierr.FromText("flat")
	data, err := apierr.AsJSON(e, apierr.Compact())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\n")
}
