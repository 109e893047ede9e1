// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer used by writer sources:
// an epoll set plus a handle -> callback registry, dispatching one event per
// WaitOne call so that a host loop can interleave many sources fairly.
package reactor
