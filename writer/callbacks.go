// File: writer/callbacks.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package writer

import "github.com/momentics/hioload-writer/api"

var _ api.Handler = (*Callbacks)(nil)

// Callbacks adapts four independently assignable functions to api.Handler.
// Nil fields are ignored.
type Callbacks struct {
	Disconnected func(fromPeer bool, unwritten [][]byte)
	WriteResult  func(err error, msg []byte, written int)
	ReceivedData func(data []byte)
	Exception    func(err error)
}

func (c *Callbacks) OnDisconnected(fromPeer bool, unwritten [][]byte) {
	if c.Disconnected != nil {
		c.Disconnected(fromPeer, unwritten)
	}
}

func (c *Callbacks) OnWriteResult(err error, msg []byte, written int) {
	if c.WriteResult != nil {
		c.WriteResult(err, msg, written)
	}
}

func (c *Callbacks) OnReceivedData(data []byte) {
	if c.ReceivedData != nil {
		c.ReceivedData(data)
	}
}

func (c *Callbacks) OnException(err error) {
	if c.Exception != nil {
		c.Exception(err)
	}
}
