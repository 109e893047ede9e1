//go:build linux
// +build linux

// transport/tcp/connector_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"errors"
	"fmt"
	"net"

	"github.com/momentics/hioload-writer/api"
	"github.com/momentics/hioload-writer/transport"
	"github.com/momentics/hioload-writer/writer"
	"golang.org/x/sys/unix"
)

// Connector is a writer source that dials its own TCP endpoint. Messages
// written while the connect is in progress are sent once it completes, or
// surfaced as unwritten if it fails.
type Connector struct {
	*writer.Source
	pending int // socket of the connect in progress, -1 when none
	addr    string
}

// NewConnector creates a detached connector.
func NewConnector(cfg writer.Config, h api.Handler) (*Connector, error) {
	src, err := writer.New(cfg, h)
	if err != nil {
		return nil, err
	}
	return &Connector{Source: src, pending: -1}, nil
}

// Addr returns the address of the last Connect call.
func (c *Connector) Addr() string { return c.addr }

// Connecting reports whether a connect is in progress.
func (c *Connector) Connecting() bool { return c.pending >= 0 }

// Connect starts a non-blocking connect to addr. Loop goroutine only.
func (c *Connector) Connect(addr string) error {
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	sa, domain, err := sockaddr(raddr)
	if err != nil {
		return err
	}
	if err := c.BeginAttach(); err != nil {
		return err
	}
	c.addr = addr

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		err = fmt.Errorf("socket: %w", err)
		c.AbortAttach(err)
		return err
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	err = unix.Connect(fd, sa)
	switch {
	case err == nil:
		return c.establish(fd)
	case errors.Is(err, unix.EINPROGRESS):
		err = c.RegisterFdCallback(fd, c.handleConnectEvent)
		if err == nil {
			err = c.AddFd(fd, api.Interest{Write: true, OneShot: true})
		}
		if err != nil {
			c.UnregisterFdCallback(fd)
			unix.Close(fd)
			c.AbortAttach(err)
			return err
		}
		c.pending = fd
		return nil
	default:
		unix.Close(fd)
		err = fmt.Errorf("connect %s: %w", addr, err)
		c.AbortAttach(err)
		return err
	}
}

// handleConnectEvent fires once when the connecting socket becomes writable
// or fails.
func (c *Connector) handleConnectEvent(ev api.Event) {
	fd := c.pending
	if fd < 0 || ev.Fd != fd {
		return
	}
	c.pending = -1
	_ = c.RemoveFd(fd)
	c.UnregisterFdCallback(fd)

	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err == nil && soerr != 0 {
		err = unix.Errno(soerr)
	}
	if err != nil {
		unix.Close(fd)
		c.AbortAttach(fmt.Errorf("connect %s: %w", c.addr, err))
		return
	}
	_ = c.establish(fd)
}

func (c *Connector) establish(fd int) error {
	ep, err := transport.NewSocketEndpoint(fd)
	if err == nil {
		err = c.Attach(ep)
	}
	if err != nil {
		unix.Close(fd)
		c.AbortAttach(err)
		return err
	}
	return nil
}

// Close abandons a pending connect and closes the source.
func (c *Connector) Close() error {
	if fd := c.pending; fd >= 0 {
		c.pending = -1
		_ = c.RemoveFd(fd)
		c.UnregisterFdCallback(fd)
		unix.Close(fd)
	}
	return c.Source.Close()
}

func sockaddr(addr *net.TCPAddr) (unix.Sockaddr, int, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	if ip6 := addr.IP.To16(); ip6 != nil {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], ip6)
		if addr.Zone != "" {
			if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
				sa.ZoneId = uint32(ifi.Index)
			}
		}
		return sa, unix.AF_INET6, nil
	}
	return nil, 0, api.WrapError(api.ErrCodeInvalidArgument, "unsupported address", api.ErrInvalidArgument).WithContext("addr", addr.String())
}
