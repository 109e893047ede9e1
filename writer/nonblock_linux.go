//go:build linux
// +build linux

package writer

import (
	"github.com/momentics/hioload-writer/api"
	"golang.org/x/sys/unix"
)

func checkNonBlocking(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return api.WrapError(api.ErrCodeInvalidArgument, "fcntl getfl", err).WithContext("fd", fd)
	}
	if flags&unix.O_NONBLOCK == 0 {
		return api.WrapError(api.ErrCodeBlocking, "attach", api.ErrBlockingEndpoint).WithContext("fd", fd)
	}
	return nil
}
