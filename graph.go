package signalgraph

import (
	"context"
	"io"
	"sync"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	longpoll "github.com/joeycumines/go-longpoll"
	microbatch "github.com/joeycumines/go-microbatch"
)

// Create returns a fresh source Signal paired with the SignalInput used to
// drive it. This is the root of most graphs: everything else is built by
// attaching combinators to a Signal, ultimately tracing back to one or
// more Create (or Generate/Timer/FromSequence/FromChannel) sources.
func Create[V any](ctx ExecutionContext, opts ...StageOption) (Signal[V], SignalInput[V]) {
	cfg := resolveStageOptions(opts)
	name := cfg.name
	if name == "" {
		name = "source"
	}
	st := newStage[V](name, ctx, nil)
	if cfg.logger != nil {
		st.core.loggerOverride = cfg.logger
	}
	return newSignal(st), newSignalInput(st)
}

// Generate returns a source Signal that runs generate exactly once per
// activation (on first attach, and again on any later re-activation after
// having gone fully inactive), with an Emitter it can use to produce
// values and, eventually, an End. Unlike CustomActivation, there is no
// upstream: generate is the sole producer.
func Generate[V any](ctx ExecutionContext, generate func(Emitter[V])) Signal[V] {
	out := newStage[V]("generate", ctx, nil)
	em := emitter[V]{s: out}
	out.core.onActivating = func() {
		safeInvoke(func() { generate(em) })
	}
	return newSignal(out)
}

// Timer returns a Signal emitting the current time every interval (subject
// to leeway, see ExecutionContext.PeriodicTimer), starting on activation
// and stopping once the stage goes inactive.
func Timer(ctx ExecutionContext, interval, leeway time.Duration) Signal[time.Time] {
	out := newStage[time.Time]("timer", ctx, nil)
	var lifetime Lifetime
	out.core.onActivating = func() {
		lifetime = ctx.PeriodicTimer(interval, leeway, func() {
			out.send(ValueResult(ctx.Timestamp()))
		})
	}
	out.core.onInactive = func() {
		if lifetime != nil {
			lifetime.Cancel()
			lifetime = nil
		}
	}
	return newSignal(out)
}

// FromSequence returns a Signal that, on activation, emits every element
// of values in order and then closes.
func FromSequence[V any](ctx ExecutionContext, values []V) Signal[V] {
	return Generate(ctx, func(em Emitter[V]) {
		for _, v := range values {
			em.Value(v)
		}
		em.End(Closed())
	})
}

// FromChannel bridges a plain Go channel into the graph: on activation, it
// starts a goroutine that drains ch using longpoll.Channel in a loop,
// forwarding every received value and closing the signal once ch is
// closed. cfg may be nil to accept longpoll's defaults. Grounded on the
// longpoll package's batched-channel-drain idiom.
func FromChannel[V any](ctx ExecutionContext, ch <-chan V, cfg *longpoll.ChannelConfig) Signal[V] {
	out := newStage[V]("from-channel", ctx, nil)
	var cancel context.CancelFunc

	out.core.onActivating = func() {
		var runCtx context.Context
		runCtx, cancel = context.WithCancel(context.Background())
		go func() {
			for {
				err := longpoll.Channel(runCtx, cfg, ch, func(v V) error {
					out.send(ValueResult(v))
					return nil
				})
				switch {
				case err == nil:
					continue
				case err == io.EOF:
					out.send(EndResult[V](Closed()))
					return
				default:
					out.send(EndResult[V](Cancelled()))
					return
				}
			}
		}()
	}
	out.core.onInactive = func() {
		if cancel != nil {
			cancel()
			cancel = nil
		}
	}

	return newSignal(out)
}

// Merge fan-in's any number of same-typed signals into one: every value
// from every input is forwarded as it arrives, and the merged signal ends
// once every input has ended, with whichever End reason was observed last.
func Merge[V any](ctx ExecutionContext, signals ...Signal[V]) Signal[V] {
	preds := make([]*stageCore, len(signals))
	for i, s := range signals {
		preds[i] = s.st.core
	}
	out, em := combineBase[V](ctx, preds...)

	remaining := newSyncCounter(len(signals))
	for _, s := range signals {
		s.subscribe(out.core, func(r Result[V]) {
			if r.IsEnd() {
				if remaining.decrement() == 0 {
					em.End(r.End())
				}
				return
			}
			em.Value(r.Value())
		})
	}

	return newSignal(out)
}

// RateLimited decorates ctx so that Invoke blocks until permitted by rates,
// a sliding-window limiter (one shared category, since it wraps a single
// context's worth of dispatch): e.g. map[time.Duration]int{time.Second: 100}
// allows at most 100 Invoke calls per rolling second. Built directly on the
// catrate package.
func RateLimited(ctx ExecutionContext, rates map[time.Duration]int) ExecutionContext {
	return &rateLimitedContext{ExecutionContext: ctx, limiter: catrate.NewLimiter(rates)}
}

type rateLimitedContext struct {
	ExecutionContext
	limiter *catrate.Limiter
}

const rateLimitCategory = "signalgraph"

func (c *rateLimitedContext) Invoke(f func()) {
	c.await()
	c.ExecutionContext.Invoke(f)
}

func (c *rateLimitedContext) InvokeAsync(f func()) {
	c.await()
	c.ExecutionContext.InvokeAsync(f)
}

func (c *rateLimitedContext) await() {
	for {
		next, ok := c.limiter.Allow(rateLimitCategory)
		if ok {
			return
		}
		time.Sleep(time.Until(next))
	}
}

// Batch groups the values of s into slices of up to size elements,
// flushing early after flushInterval if fewer have accumulated. The
// terminal End passes through once any pending (possibly short) batch has
// been flushed. Built directly on the microbatch package.
func Batch[V any](s Signal[V], ctx ExecutionContext, size int, flushInterval time.Duration) Signal[[]V] {
	out := newStage[[]V]("batch", ctx, &bufferUntilAttachPolicy[[]V]{})
	out.core.addPredecessor(s.st.core)
	em := emitter[[]V]{s: out}

	batcher := microbatch.NewBatcher[V](&microbatch.BatcherConfig{
		MaxSize:       size,
		FlushInterval: flushInterval,
	}, func(_ context.Context, jobs []V) error {
		batch := append([]V{}, jobs...)
		em.Value(batch)
		return nil
	})

	s.subscribe(out.core, func(r Result[V]) {
		if r.IsEnd() {
			_ = batcher.Shutdown(context.Background())
			em.End(r.End())
			return
		}
		_, _ = batcher.Submit(context.Background(), r.Value())
	})

	return newSignal(out)
}

// syncCounter is a tiny atomic down-counter used by Merge to know when
// every input has ended.
type syncCounter struct {
	mu    sync.Mutex
	count int
}

func newSyncCounter(n int) *syncCounter {
	return &syncCounter{count: n}
}

func (c *syncCounter) decrement() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count--
	return c.count
}
