// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package transport provides concrete non-blocking endpoints for writer
// sources: raw descriptors, pipes, socket pairs and FIFOs.
package transport
