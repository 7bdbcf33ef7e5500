// Package vscope holds the process-wide variable-scope settings consulted
// during graph construction. Graph construction is single-threaded, so the
// scope carries no locking.
package vscope

// Scope holds variable-creation settings.
type Scope struct {
	useResource bool
}

var current = &Scope{}

// Current returns the process-wide scope.
func Current() *Scope {
	return current
}

// UseResource reports whether new variables use the resource-handle
// representation.
func (s *Scope) UseResource() bool {
	return s.useResource
}

// SetUseResource switches the representation used for new variables.
func (s *Scope) SetUseResource(use bool) {
	s.useResource = use
}
