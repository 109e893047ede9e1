// File: writer/errors.go
// Author: momentics <momentics@gmail.com>
//
// Classification of endpoint I/O errors.

package writer

import (
	"errors"
	"syscall"
)

// isTransient reports would-block and interrupted results.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR)
}

// isPeerLoss reports errors that mean the other side went away.
func isPeerLoss(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ENOTCONN)
}
