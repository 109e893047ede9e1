// File: writer/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package writer

import (
	"log"
	"time"

	"github.com/momentics/hioload-writer/api"
	"github.com/momentics/hioload-writer/control"
)

// Config holds parameters fixed for the lifetime of a Source.
type Config struct {
	Name           string        // Identifier used in logs, metric keys and probe names; generated when empty
	QueueCapacity  int           // Maximum number of messages queued or in flight
	ReadBufferSize int           // Size of the buffer handed to OnReceivedData
	PollBatchSize  int           // Events requested from the kernel per wait; extras are served by later ticks (see Source.Backlog)
	PollTimeout    time.Duration // Upper bound ProcessOne waits for an event; 0 polls, negative blocks

	Logger  *log.Logger              // Destination for diagnostics; log.Default() when nil
	Metrics *control.MetricsRegistry // Optional sink for counters, updated after every tick
	Debug   *control.DebugProbes     // Optional probe registry; the source registers itself as "writer.<Name>"
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:  1024,      // 1024 messages
		ReadBufferSize: 64 * 1024, // 64 KiB read buffer
		PollBatchSize:  1,         // one event per kernel wait, fair interleaving in the host loop
		PollTimeout:    0,         // the host loop already polled PollFd
	}
}

// Validate checks sizes.
func (c Config) Validate() error {
	if c.QueueCapacity <= 0 {
		return api.WrapError(api.ErrCodeInvalidArgument, "queue capacity must be positive", api.ErrInvalidArgument).
			WithContext("queue_capacity", c.QueueCapacity)
	}
	if c.ReadBufferSize <= 0 {
		return api.WrapError(api.ErrCodeInvalidArgument, "read buffer size must be positive", api.ErrInvalidArgument).
			WithContext("read_buffer_size", c.ReadBufferSize)
	}
	if c.PollBatchSize < 0 {
		return api.WrapError(api.ErrCodeInvalidArgument, "poll batch size must not be negative", api.ErrInvalidArgument).
			WithContext("poll_batch_size", c.PollBatchSize)
	}
	return nil
}
