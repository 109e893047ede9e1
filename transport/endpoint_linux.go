//go:build linux
// +build linux

// transport/endpoint_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Descriptor-backed endpoints using golang.org/x/sys/unix.

package transport

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/momentics/hioload-writer/api"
	"golang.org/x/sys/unix"
)

var _ api.Endpoint = (*FdEndpoint)(nil)

// FdEndpoint is an api.Endpoint over a raw non-blocking descriptor.
type FdEndpoint struct {
	fd        int
	readable  bool
	writable  bool
	closeOnce sync.Once
}

// NewEndpoint wraps fd, switching it to non-blocking mode. The endpoint owns
// fd from now on.
func NewEndpoint(fd int, readable, writable bool) (*FdEndpoint, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblock fd %d: %w", fd, err)
	}
	return &FdEndpoint{fd: fd, readable: readable, writable: writable}, nil
}

// NewSocketEndpoint wraps a connected stream socket.
func NewSocketEndpoint(fd int) (*FdEndpoint, error) {
	return NewEndpoint(fd, true, true)
}

func (e *FdEndpoint) Fd() int        { return e.fd }
func (e *FdEndpoint) Readable() bool { return e.readable }
func (e *FdEndpoint) Writable() bool { return e.writable }

// Read performs one non-blocking read.
func (e *FdEndpoint) Read(p []byte) (int, error) {
	n, err := unix.Read(e.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Write performs one non-blocking write.
func (e *FdEndpoint) Write(p []byte) (int, error) {
	n, err := unix.Write(e.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the descriptor once.
func (e *FdEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = unix.Close(e.fd)
	})
	return err
}

// Pipe creates a pipe whose write half is a non-blocking endpoint. The read
// half is returned as a blocking *os.File for the consumer.
func Pipe() (*os.File, *FdEndpoint, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, nil, fmt.Errorf("pipe2: %w", err)
	}
	w, err := NewEndpoint(fds[1], false, true)
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	return os.NewFile(uintptr(fds[0]), "pipe-reader"), w, nil
}

// SocketPair creates a connected AF_UNIX stream pair. The first half is a
// non-blocking endpoint, the peer is a blocking *os.File.
func SocketPair() (*FdEndpoint, *os.File, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	ep, err := NewSocketEndpoint(fds[0])
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	return ep, os.NewFile(uintptr(fds[1]), "socketpair-peer"), nil
}

// OpenFIFO opens the write side of a named pipe without blocking. It fails
// with api.ErrNoReader while no process has the FIFO open for reading.
func OpenFIFO(path string) (*FdEndpoint, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return nil, api.WrapError(api.ErrCodeNotFound, "open fifo", api.ErrNoReader).WithContext("path", path)
		}
		return nil, fmt.Errorf("open fifo %s: %w", path, err)
	}
	return &FdEndpoint{fd: fd, writable: true}, nil
}

// MakeFIFO creates a named pipe at path.
func MakeFIFO(path string, mode uint32) error {
	if err := unix.Mkfifo(path, mode); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}
