package signalgraph

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler is a minimal slog.Handler test double that captures every
// record it's handed, for assertions on what this package actually logs.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) attr(r slog.Record, key string) (string, bool) {
	var val string
	var found bool
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			val = a.Value.String()
			found = true
			return false
		}
		return true
	})
	return val, found
}

func (h *recordingHandler) snapshot() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]slog.Record, len(h.records))
	copy(out, h.records)
	return out
}

func TestSetLogger_NilFallsBackToSlogDefault(t *testing.T) {
	prev := packageLogger()
	defer SetLogger(prev)

	SetLogger(nil)
	assert.NotNil(t, packageLogger())
}

func TestSetSlogHandler_RoutesPackageLoggingThroughHandler(t *testing.T) {
	prev := packageLogger()
	defer SetLogger(prev)

	h := &recordingHandler{}
	SetSlogHandler(h)

	logPanicRecovered("test-component", "boom")

	records := h.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "recovered panic", records[0].Message)
	component, ok := h.attr(records[0], "component")
	require.True(t, ok)
	assert.Equal(t, "test-component", component)
}

func TestLogStageError_IncludesStageNameAndError(t *testing.T) {
	prev := packageLogger()
	defer SetLogger(prev)

	h := &recordingHandler{}
	SetSlogHandler(h)

	logStageError(packageLogger(), "my-stage", errTimeout)

	records := h.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "stage ended with error", records[0].Message)
	stage, ok := h.attr(records[0], "stage")
	require.True(t, ok)
	assert.Equal(t, "my-stage", stage)
}

func TestLogStageActivation_IncludesFromAndToStates(t *testing.T) {
	prev := packageLogger()
	defer SetLogger(prev)

	h := &recordingHandler{}
	SetSlogHandler(h)

	logStageActivation(packageLogger(), "my-stage", StateInactive, StateActivating)

	records := h.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "activation state transition", records[0].Message)
	from, ok := h.attr(records[0], "from")
	require.True(t, ok)
	assert.Equal(t, StateInactive.String(), from)
	to, ok := h.attr(records[0], "to")
	require.True(t, ok)
	assert.Equal(t, StateActivating.String(), to)
}

func TestWithStageLogger_StageUsesOverrideNotPackageDefault(t *testing.T) {
	prev := packageLogger()
	defer SetLogger(prev)

	packageHandler := &recordingHandler{}
	SetSlogHandler(packageHandler)

	stageHandler := &recordingHandler{}
	stageLogger := newLoggerFromHandler(stageHandler)

	s, in := Create[int](Direct, WithStageLogger(stageLogger))
	s.Subscribe(func(Result[int]) {})

	in.SendEnd(Other(errTimeout))

	assert.NotEmpty(t, stageHandler.snapshot(), "activation logging for this stage must go through its own override")
	assert.Empty(t, packageHandler.snapshot(), "stage-level override must not leak to the package default handler")
}
