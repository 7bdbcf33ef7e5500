package xla

import "errors"

// CapturedObject holds a single value captured from a callback that runs
// out of line with its consumer. Capturing twice is an internal error.
type CapturedObject[T any] struct {
	object   T
	captured bool
}

// Capture stores o. It fails if the holder already captured a value.
func (c *CapturedObject[T]) Capture(o T) error {
	if c.captured {
		return errors.New("internal error: CapturedObject can capture only once")
	}
	c.object = o
	c.captured = true
	return nil
}

// Get returns the captured value, or the zero value if nothing was
// captured.
func (c *CapturedObject[T]) Get() T {
	return c.object
}

// ScaffoldFrom retrieves a scaffold from a captured constructor. A missing
// constructor yields nil; a constructor returning nil is an error.
func ScaffoldFrom[S any](captured *CapturedObject[func() *S]) (*S, error) {
	build := captured.Get()
	if build == nil {
		return nil, nil
	}
	scaffold := build()
	if scaffold == nil {
		return nil, errors.New("scaffold callback returned nil, which is not allowed")
	}
	return scaffold, nil
}
