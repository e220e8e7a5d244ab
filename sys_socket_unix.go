//go:build darwin || freebsd || linux || netbsd || openbsd

package dispatch

import (
	"fmt"
	"net/netip"
	"syscall"

	"golang.org/x/sys/unix"
)

func setReceiveBuffer(c interface {
	SyscallConn() (syscall.RawConn, error)
}, bytes int) error {
	rawConn, err := c.SyscallConn()
	if err != nil {
		return fmt.Errorf("couldn't get syscall.RawConn: %w", err)
	}
	var serr error
	if err := rawConn.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, bytes)
	}); err != nil {
		return err
	}
	return serr
}

// pollReadFrom attempts a non-blocking receive. ok reports whether a
// datagram was read; would-block is (0, zero, false, nil).
func pollReadFrom(rawConn syscall.RawConn, buf []byte) (int, netip.AddrPort, bool, error) {
	var (
		n    int
		sa   unix.Sockaddr
		serr error
	)
	if err := rawConn.Control(func(fd uintptr) {
		n, sa, serr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
	}); err != nil {
		return 0, netip.AddrPort{}, false, err
	}
	if serr == unix.EAGAIN || serr == unix.EWOULDBLOCK || serr == unix.EINTR {
		return 0, netip.AddrPort{}, false, nil
	}
	if serr != nil {
		return 0, netip.AddrPort{}, false, serr
	}
	return n, sockaddrToAddrPort(sa), true, nil
}

// pollWriteTo attempts a non-blocking send. ok reports whether the datagram
// left; a full socket buffer is (0, false, nil).
func pollWriteTo(rawConn syscall.RawConn, data []byte, to netip.AddrPort, ipv6 bool) (int, bool, error) {
	sa, err := addrPortToSockaddr(to, ipv6)
	if err != nil {
		return 0, false, err
	}
	var serr error
	if err := rawConn.Control(func(fd uintptr) {
		serr = unix.Sendto(int(fd), data, unix.MSG_DONTWAIT, sa)
	}); err != nil {
		return 0, false, err
	}
	if serr == unix.EAGAIN || serr == unix.EWOULDBLOCK || serr == unix.EINTR || serr == unix.ENOBUFS {
		return 0, false, nil
	}
	if serr != nil {
		return 0, false, serr
	}
	return len(data), true, nil
}

func sockaddrToAddrPort(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port))
	default:
		return netip.AddrPort{}
	}
}

func addrPortToSockaddr(to netip.AddrPort, ipv6 bool) (unix.Sockaddr, error) {
	if ipv6 {
		// As16 maps IPv4 targets, which is what a dual-stack socket expects
		return &unix.SockaddrInet6{Port: int(to.Port()), Addr: to.Addr().As16()}, nil
	}
	addr := to.Addr().Unmap()
	if !addr.Is4() {
		return nil, fmt.Errorf("cannot send to %s on an IPv4 socket", to)
	}
	return &unix.SockaddrInet4{Port: int(to.Port()), Addr: addr.As4()}, nil
}
