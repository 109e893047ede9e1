// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for writer sources and the host loop.
//
// Provides concurrent-safe state handling primitives including:
//   - a metrics registry that sources publish their counters into
//   - named debug probes that render live state on demand
package control
