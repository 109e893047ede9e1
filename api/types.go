// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// SourceState enumerates the lifecycle of a writer source's endpoint.
type SourceState int32

const (
	StateDetached SourceState = iota
	StateAttaching
	StateAttached
	StateDraining
)

func (s SourceState) String() string {
	switch s {
	case StateAttaching:
		return "attaching"
	case StateAttached:
		return "attached"
	case StateDraining:
		return "draining"
	default:
		return "detached"
	}
}
