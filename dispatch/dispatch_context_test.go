package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchContextRunCommitsHandlerWrittenResponse(t *testing.T) {
	rc := newRC()
	dc := newDispatchContext(rc)

	dc.Run(func(d *DispatchContext) error {
		d.Response.MutableHeader().SetStatus(200, "OK")
		_, err := d.Response.Flush([]byte("ok"))
		return err
	})

	data := drainResponse(t, rc)
	assert.Contains(t, string(data), "200 OK")
	assert.Contains(t, string(data), "ok")
}

func TestDispatchContextRunFinalizesOnReturnedError(t *testing.T) {
	rc := newRC()
	dc := newDispatchContext(rc)

	dc.Run(func(d *DispatchContext) error {
		return errors.New("handler failed")
	})

	assert.Equal(t, 500, dc.Response.Header().GetStatus().Code)
	data := drainResponse(t, rc)
	assert.Contains(t, string(data), `"what":"handler failed"`)
}

func TestDispatchContextRunFinalizesOnPanic(t *testing.T) {
	rc := newRC()
	dc := newDispatchContext(rc)

	dc.Run(func(d *DispatchContext) error {
		panic("boom")
	})

	assert.Equal(t, 500, dc.Response.Header().GetStatus().Code)
	data := drainResponse(t, rc)
	assert.Contains(t, string(data), `"what":"boom"`)
}

func TestDispatchContextRunFinalizesSilentHandlerAsNoResponse(t *testing.T) {
	rc := newRC()
	dc := newDispatchContext(rc)

	dc.Run(func(d *DispatchContext) error {
		return nil
	})

	assert.Equal(t, 500, dc.Response.Header().GetStatus().Code)
	data := drainResponse(t, rc)
	assert.Contains(t, string(data), `"what":"server did not respond"`)
}
