package signalgraph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveStageOptions_SkipsNils(t *testing.T) {
	cfg := resolveStageOptions([]StageOption{nil, WithName("custom"), nil})
	assert.Equal(t, "custom", cfg.name)
	assert.Nil(t, cfg.logger)
}

func TestResolveStageOptions_Empty(t *testing.T) {
	cfg := resolveStageOptions(nil)
	assert.Equal(t, "", cfg.name)
	assert.Nil(t, cfg.logger)
}

func TestWithName_OverridesCreateStageName(t *testing.T) {
	s, _ := Create[int](Direct, WithName("widgets"))
	assert.Equal(t, "widgets", s.st.core.name)
}

func TestCreate_DefaultNameWhenUnset(t *testing.T) {
	s, _ := Create[int](Direct)
	assert.Equal(t, "source", s.st.core.name)
}

func TestWithStageLogger_OverridesEffectiveLogger(t *testing.T) {
	custom := newLoggerFromHandler(slog.NewTextHandler(io.Discard, nil))

	s, _ := Create[int](Direct, WithStageLogger(custom))
	assert.Same(t, custom, s.st.core.effectiveLogger())
}

func TestWithStageLogger_UnsetFallsBackToPackageDefault(t *testing.T) {
	s, _ := Create[int](Direct)
	assert.Same(t, packageLogger(), s.st.core.effectiveLogger())
}

func TestResolveContextOptions_SkipsNils(t *testing.T) {
	cfg := resolveContextOptions([]ContextOption{nil, WithWorkers(4), nil})
	assert.Equal(t, 4, cfg.workers)
}

func TestResolveContextOptions_Empty(t *testing.T) {
	cfg := resolveContextOptions(nil)
	assert.Equal(t, 0, cfg.workers)
}
