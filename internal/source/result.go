package source

// Result is the outcome of one signal-source read. It is either Ok with a
// value or Empty with an optional cause; Value is always safe to call and
// yields the zero value for Empty.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

// Ok wraps a successful read.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Empty marks a source as unavailable. A nil cause means the absence is an
// expected state (e.g. an organization without a tracking tag).
func Empty[T any](cause error) Result[T] {
	return Result[T]{err: cause}
}

// Value returns the read value, or the zero value when empty.
func (r Result[T]) Value() T {
	return r.value
}

// OK reports whether the source answered.
func (r Result[T]) OK() bool {
	return r.ok
}

// Err returns the cause of an empty result, if any.
func (r Result[T]) Err() error {
	return r.err
}

// Or returns the value when OK and fallback otherwise.
func (r Result[T]) Or(fallback T) T {
	if r.ok {
		return r.value
	}
	return fallback
}
