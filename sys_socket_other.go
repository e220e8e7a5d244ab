//go:build !darwin && !freebsd && !linux && !netbsd && !openbsd

package dispatch

import (
	"net/netip"
	"syscall"
)

func setReceiveBuffer(interface {
	SyscallConn() (syscall.RawConn, error)
}, int) error {
	return nil
}

// Without a non-blocking poll every operation parks on the pump.

func pollReadFrom(syscall.RawConn, []byte) (int, netip.AddrPort, bool, error) {
	return 0, netip.AddrPort{}, false, nil
}

func pollWriteTo(syscall.RawConn, []byte, netip.AddrPort, bool) (int, bool, error) {
	return 0, false, nil
}
