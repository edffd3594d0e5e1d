package signalgraph

import (
	"errors"
	"fmt"
)

// EndReason classifies why a signal stopped producing values.
type EndReason int

const (
	// EndClosed is an expected, successful termination by the producer.
	EndClosed EndReason = iota
	// EndCancelled indicates a consumer or owner released the producer.
	EndCancelled
	// EndOther wraps an unexpected error, including a recovered processor panic.
	EndOther
)

// String implements fmt.Stringer.
func (r EndReason) String() string {
	switch r {
	case EndClosed:
		return "closed"
	case EndCancelled:
		return "cancelled"
	case EndOther:
		return "other"
	default:
		return fmt.Sprintf("EndReason(%d)", int(r))
	}
}

// End is the terminating reason carried by the last Result on an edge.
// It implements error, so it composes with errors.Is/errors.As the same
// way the rest of this module's error types do.
type End struct {
	Reason EndReason
	Err    error // non-nil only when Reason == EndOther
}

// Closed returns the expected-termination End variant.
func Closed() End { return End{Reason: EndClosed} }

// Cancelled returns the consumer/owner-released End variant.
func Cancelled() End { return End{Reason: EndCancelled} }

// Other wraps an unexpected error as an End. Passing a nil err still
// produces an EndOther result, with a generic message.
func Other(err error) End {
	if err == nil {
		err = errors.New("signalgraph: unspecified error")
	}
	return End{Reason: EndOther, Err: err}
}

// Error implements the error interface.
func (e End) Error() string {
	switch e.Reason {
	case EndClosed:
		return "signalgraph: closed"
	case EndCancelled:
		return "signalgraph: cancelled"
	case EndOther:
		if e.Err != nil {
			return "signalgraph: " + e.Err.Error()
		}
		return "signalgraph: other"
	default:
		return "signalgraph: " + e.Reason.String()
	}
}

// Unwrap exposes the wrapped cause, for errors.Is/errors.As.
func (e End) Unwrap() error { return e.Err }

// Is reports whether target is an End with the same Reason (ignoring Err).
// A non-End target is matched against the wrapped Err by errors.Is itself,
// through Unwrap.
func (e End) Is(target error) bool {
	var other End
	if errors.As(target, &other) {
		return other.Reason == e.Reason
	}
	return false
}

// Result is the sum type carrying every stream item: either a value of
// type V, or a terminating End. The zero value is not a valid Result; use
// ValueResult or EndResult to construct one.
type Result[V any] struct {
	isEnd bool
	value V
	end   End
}

// ValueResult constructs a Result carrying a value.
func ValueResult[V any](v V) Result[V] {
	return Result[V]{value: v}
}

// EndResult constructs a Result carrying a terminating End.
func EndResult[V any](e End) Result[V] {
	return Result[V]{isEnd: true, end: e}
}

// IsValue reports whether this Result carries a value.
func (r Result[V]) IsValue() bool { return !r.isEnd }

// IsEnd reports whether this Result carries a terminating End.
func (r Result[V]) IsEnd() bool { return r.isEnd }

// Value returns the carried value. It panics if IsValue is false.
func (r Result[V]) Value() V {
	if r.isEnd {
		panic("signalgraph: Result.Value called on an end result")
	}
	return r.value
}

// End returns the carried End. It panics if IsEnd is false.
func (r Result[V]) End() End {
	if !r.isEnd {
		panic("signalgraph: Result.End called on a value result")
	}
	return r.end
}

// String implements fmt.Stringer for debugging/logging.
func (r Result[V]) String() string {
	if r.isEnd {
		return fmt.Sprintf("end(%s)", r.end.Reason)
	}
	return fmt.Sprintf("value(%v)", r.value)
}

// MapResult transforms the value of a Result, leaving an end untouched.
func MapResult[In, Out any](r Result[In], f func(In) Out) Result[Out] {
	if r.isEnd {
		return EndResult[Out](r.end)
	}
	return ValueResult(f(r.value))
}

// Emitter is the sink a processor uses to produce zero or more out-Results.
// After Emit(EndResult) is called, a processor must emit nothing further for
// that invocation; violating this is a programming error the stage rejects.
type Emitter[Out any] interface {
	// Emit delivers one Result to the downstream edge.
	Emit(Result[Out])
	// Value is a convenience for Emit(ValueResult(v)).
	Value(v Out)
	// End is a convenience for Emit(EndResult(e)).
	End(e End)
}
