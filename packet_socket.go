package dispatch

import (
	"net"
	"net/netip"
)

// A PacketSocket is the completion-based socket capability the dispatch
// layer runs on. At most one receive and one send may be outstanding at a
// time. A Start call either completes immediately (pending == false) or
// parks the operation; a parked operation fires the corresponding completion
// signal exactly once, after which the Finish call retrieves the result.
//
// The buffer handed to a Start call is owned by the socket until the
// operation completes. Any error other than the would-block path handled
// internally is fatal to the socket.
type PacketSocket interface {
	StartRecv(buf []byte) (n int, from netip.AddrPort, pending bool, err error)
	FinishRecv() (n int, from netip.AddrPort, err error)
	StartSend(data []byte, to netip.AddrPort) (n int, pending bool, err error)
	FinishSend() (n int, err error)
	// RecvSignal fires once for every parked receive.
	RecvSignal() <-chan struct{}
	// SendSignal fires once for every parked send.
	SendSignal() <-chan struct{}
	LocalAddr() net.Addr
	Close() error
}
