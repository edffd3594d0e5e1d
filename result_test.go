package signalgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_ValueAndEnd(t *testing.T) {
	v := ValueResult(42)
	require.True(t, v.IsValue())
	require.False(t, v.IsEnd())
	assert.Equal(t, 42, v.Value())
	assert.Panics(t, func() { v.End() })

	e := EndResult[int](Closed())
	require.True(t, e.IsEnd())
	require.False(t, e.IsValue())
	assert.Equal(t, Closed(), e.End())
	assert.Panics(t, func() { e.Value() })
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "value(7)", ValueResult(7).String())
	assert.Equal(t, "end(closed)", EndResult[int](Closed()).String())
}

func TestMapResult(t *testing.T) {
	v := MapResult(ValueResult(3), func(i int) string { return "x" })
	assert.Equal(t, "x", v.Value())

	e := MapResult(EndResult[int](Cancelled()), func(i int) string { return "x" })
	assert.True(t, e.IsEnd())
	assert.Equal(t, Cancelled(), e.End())
}

func TestEnd_ErrorAndIs(t *testing.T) {
	assert.Equal(t, "signalgraph: closed", Closed().Error())
	assert.Equal(t, "signalgraph: cancelled", Cancelled().Error())

	cause := errors.New("boom")
	e := Other(cause)
	assert.Equal(t, "signalgraph: boom", e.Error())
	assert.True(t, errors.Is(e, cause))
	assert.True(t, errors.Is(e, Other(errors.New("unrelated"))), "End.Is matches on Reason, not Err")
	assert.False(t, errors.Is(e, Closed()))
}

func TestEnd_EndReasonString(t *testing.T) {
	assert.Equal(t, "closed", EndClosed.String())
	assert.Equal(t, "cancelled", EndCancelled.String())
	assert.Equal(t, "other", EndOther.String())
	assert.Contains(t, EndReason(99).String(), "EndReason")
}
