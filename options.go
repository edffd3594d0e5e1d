package signalgraph

// This file mirrors eventloop/options.go's functional-options shape:
// a small config struct, an exported interface wrapping an apply func, and
// a resolve helper that skips nils. Options here cannot fail, so the
// resolvers return no error.

// stageConfig holds the optional configuration any stage-constructing
// combinator accepts.
type stageConfig struct {
	name   string
	logger *Logger
}

// StageOption configures a stage at construction time.
type StageOption interface {
	applyStage(*stageConfig)
}

type stageOptionImpl struct {
	applyStageFunc func(*stageConfig)
}

func (o *stageOptionImpl) applyStage(cfg *stageConfig) { o.applyStageFunc(cfg) }

// WithName overrides a stage's diagnostic name (used in logs).
func WithName(name string) StageOption {
	return &stageOptionImpl{func(cfg *stageConfig) { cfg.name = name }}
}

// WithStageLogger overrides the logger used for this stage's own log
// lines, without affecting the package-level default (see SetLogger).
func WithStageLogger(l *Logger) StageOption {
	return &stageOptionImpl{func(cfg *stageConfig) { cfg.logger = l }}
}

func resolveStageOptions(opts []StageOption) *stageConfig {
	cfg := &stageConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyStage(cfg)
	}
	return cfg
}

// contextConfig holds the optional configuration the NewXContext
// constructors in context.go could accept. Kept separate from stageConfig
// since a context's lifetime is typically broader than any one stage's.
type contextConfig struct {
	workers int
}

// ContextOption configures an ExecutionContext at construction time.
type ContextOption interface {
	applyContext(*contextConfig)
}

type contextOptionImpl struct {
	applyContextFunc func(*contextConfig)
}

func (o *contextOptionImpl) applyContext(cfg *contextConfig) { o.applyContextFunc(cfg) }

// WithWorkers configures a concurrent-pool context's worker limit.
func WithWorkers(n int) ContextOption {
	return &contextOptionImpl{func(cfg *contextConfig) { cfg.workers = n }}
}

func resolveContextOptions(opts []ContextOption) *contextConfig {
	cfg := &contextConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyContext(cfg)
	}
	return cfg
}
