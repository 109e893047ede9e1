// File: api/handler.go
// Package api defines the writer source callback set.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Handler receives the outcome of a writer source's I/O. Every method runs on
// the loop goroutine and never concurrently with another method of the same
// handler.
type Handler interface {
	// OnDisconnected is called exactly once per attachment, after every other
	// callback of that attachment. unwritten holds the unsent messages in
	// enqueue order; ownership passes to the callee.
	OnDisconnected(fromPeer bool, unwritten [][]byte)

	// OnWriteResult is called once per message that was fully written (err == nil,
	// written == len(msg)) or that failed (err != nil, written is the prefix
	// length the endpoint accepted).
	OnWriteResult(err error, msg []byte, written int)

	// OnReceivedData is called with bytes read from the endpoint. data is only
	// valid for the duration of the call.
	OnReceivedData(data []byte)

	// OnException receives panics from the other callbacks and internal fatal
	// conditions.
	OnException(err error)
}
