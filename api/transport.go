// File: api/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint is the non-blocking byte channel a writer source drains into.

package api

// Endpoint is a connected, non-blocking, stream-oriented OS handle.
// Read and Write must return syscall.EAGAIN instead of blocking.
type Endpoint interface {
	Fd() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error

	// Readable reports whether the engine should watch the read half.
	Readable() bool
	// Writable reports whether the handle accepts writes at all.
	Writable() bool
}
