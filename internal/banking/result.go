package banking

import "fmt"

// Result is the outcome of a challenge-aware operation: either the final
// payload, or a challenge the caller must answer (via Conn.SendTAN)
// before the payload becomes available.
type Result[T any] struct {
	data T
	tan  *Challenge
}

// Done wraps a final payload.
func Done[T any](data T) Result[T] {
	return Result[T]{data: data}
}

// NeedTAN wraps a pending challenge.
func NeedTAN[T any](ch *Challenge) Result[T] {
	return Result[T]{tan: ch}
}

// TAN returns the pending challenge, if any.
func (r Result[T]) TAN() (*Challenge, bool) {
	return r.tan, r.tan != nil
}

// Data returns the final payload. Only meaningful when no challenge is
// pending.
func (r Result[T]) Data() T {
	return r.data
}

// Narrow converts an untyped resubmission result back to the type of the
// operation that raised the challenge.
func Narrow[T any](r Result[any]) (Result[T], error) {
	if ch, ok := r.TAN(); ok {
		return NeedTAN[T](ch), nil
	}
	data, ok := r.Data().(T)
	if !ok {
		var want T
		return Result[T]{}, fmt.Errorf("endpoint returned %T after challenge, want %T", r.Data(), want)
	}
	return Done(data), nil
}
