package signalgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreconditionError(t *testing.T) {
	err := &PreconditionError{Op: "attach", Message: "boom"}
	assert.Contains(t, err.Error(), "attach")
	assert.Contains(t, err.Error(), "boom")

	assert.PanicsWithValue(t, err, func() { panic(err) })
}

func TestPanicPrecondition(t *testing.T) {
	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		perr, ok := rec.(*PreconditionError)
		require.True(t, ok, "expected *PreconditionError, got %T", rec)
		assert.Equal(t, "attach", perr.Op)
		assert.Contains(t, perr.Message, "n=3")
	}()
	panicPrecondition("attach", "n=%d", 3)
}

func TestPanicError(t *testing.T) {
	e := &PanicError{Value: "oops", Stage: "my-stage"}
	assert.Contains(t, e.Error(), "my-stage")
	assert.Contains(t, e.Error(), "oops")
	assert.Nil(t, e.Unwrap())

	cause := errors.New("wrapped")
	e2 := &PanicError{Value: cause}
	assert.Equal(t, cause, e2.Unwrap())
	assert.True(t, errors.Is(e2, cause))
}

func TestRecoverToEnd(t *testing.T) {
	end, ok := recoverToEnd("stage", nil)
	assert.False(t, ok)
	assert.Equal(t, End{}, end)

	end, ok = recoverToEnd("stage", "kaboom")
	require.True(t, ok)
	assert.Equal(t, EndOther, end.Reason)
	var perr *PanicError
	assert.True(t, errors.As(end.Err, &perr))
	assert.Equal(t, "kaboom", perr.Value)
	assert.Equal(t, "stage", perr.Stage)
}
