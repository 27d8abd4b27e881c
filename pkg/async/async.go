// Package async models the state of a value produced by a collaborator call
// that may not have completed yet.
package async

import "errors"

// State is the resolution state of a Result.
type State int

const (
	StatePending State = iota
	StateOk
	StateErr
)

func (s State) String() string {
	switch s {
	case StateOk:
		return "ok"
	case StateErr:
		return "err"
	default:
		return "pending"
	}
}

// Result is Pending, Ok(value) or Err(reason). The zero value is Pending.
type Result[T any] struct {
	state State
	value T
	err   error
}

// Pending returns an unresolved result.
func Pending[T any]() Result[T] {
	return Result[T]{}
}

// Ok returns a resolved result carrying v.
func Ok[T any](v T) Result[T] {
	return Result[T]{state: StateOk, value: v}
}

// Err returns a failed result. A nil err is replaced so the result never
// reads as failed without a reason.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = errors.New("async: unspecified failure")
	}
	return Result[T]{state: StateErr, err: err}
}

// From converts a (value, error) pair into an Ok or Err result.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

func (r Result[T]) State() State    { return r.state }
func (r Result[T]) IsPending() bool { return r.state == StatePending }
func (r Result[T]) IsOk() bool      { return r.state == StateOk }
func (r Result[T]) IsErr() bool     { return r.state == StateErr }

// Value returns the carried value and whether the result is Ok.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.state == StateOk
}

// Err returns the failure reason, or nil unless the result is Err.
func (r Result[T]) Err() error {
	return r.err
}
