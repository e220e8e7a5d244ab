package dispatch

import (
	"net"
	"net/netip"
)

// SlotState is the state of one outstanding-operation slot.
type SlotState uint8

const (
	// SlotIdle: no operation outstanding, the buffer may be written.
	SlotIdle SlotState = iota
	// SlotInFlight: an operation was parked and its completion signal has
	// not fired yet. The buffer belongs to the socket.
	SlotInFlight
	// SlotReady: the completion signal fired; the result is waiting to be
	// retrieved with the Finish call.
	SlotReady
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotInFlight:
		return "in-flight"
	case SlotReady:
		return "ready"
	default:
		return "invalid"
	}
}

// A Channel couples a PacketSocket with the two shared I/O buffers and
// enforces the single-outstanding-operation protocol on each slot. The
// buffers are reused by every connection served in a dispatch pass; a slot
// must return to SlotIdle before its buffer may be touched again.
type Channel struct {
	sock PacketSocket

	recvBuf   []byte
	recvState SlotState

	sendBuf   []byte
	sendState SlotState
}

// NewChannel creates a Channel with a receive buffer of recvBufSize bytes
// and a send buffer of sendBufSize bytes.
func NewChannel(sock PacketSocket, recvBufSize, sendBufSize int) *Channel {
	return &Channel{
		sock:    sock,
		recvBuf: make([]byte, recvBufSize),
		sendBuf: make([]byte, sendBufSize),
	}
}

// RecvBuffer returns the shared receive buffer.
func (c *Channel) RecvBuffer() []byte { return c.recvBuf }

// SendBuffer returns the shared send buffer. It must only be written while
// the send slot is SlotIdle.
func (c *Channel) SendBuffer() []byte { return c.sendBuf }

// RecvState returns the state of the receive slot.
func (c *Channel) RecvState() SlotState { return c.recvState }

// SendState returns the state of the send slot.
func (c *Channel) SendState() SlotState { return c.sendState }

// RecvSignal exposes the socket's receive completion signal.
func (c *Channel) RecvSignal() <-chan struct{} { return c.sock.RecvSignal() }

// SendSignal exposes the socket's send completion signal.
func (c *Channel) SendSignal() <-chan struct{} { return c.sock.SendSignal() }

// LocalAddr returns the socket's local address.
func (c *Channel) LocalAddr() net.Addr { return c.sock.LocalAddr() }

// StartRecv issues a receive into the shared receive buffer. If the datagram
// was available immediately it returns completed == true together with the
// result; otherwise the slot moves to SlotInFlight and the caller must wait
// for the receive completion signal.
func (c *Channel) StartRecv() (n int, from netip.AddrPort, completed bool, err error) {
	if c.recvState != SlotIdle {
		return 0, netip.AddrPort{}, false, ErrSlotBusy
	}
	n, from, pending, err := c.sock.StartRecv(c.recvBuf)
	if err != nil {
		return 0, netip.AddrPort{}, false, err
	}
	if pending {
		c.recvState = SlotInFlight
		return 0, netip.AddrPort{}, false, nil
	}
	return n, from, true, nil
}

// SignalRecv records that the completion signal for the in-flight receive
// fired.
func (c *Channel) SignalRecv() error {
	if c.recvState != SlotInFlight {
		return ErrSlotNotReady
	}
	c.recvState = SlotReady
	return nil
}

// FinishRecv retrieves the result of a signaled receive and resets the slot.
func (c *Channel) FinishRecv() (int, netip.AddrPort, error) {
	if c.recvState != SlotReady {
		return 0, netip.AddrPort{}, ErrSlotNotReady
	}
	c.recvState = SlotIdle
	return c.sock.FinishRecv()
}

// StartSend transmits the first n bytes of the send buffer. If the datagram
// left immediately it returns completed == true; otherwise the slot moves to
// SlotInFlight, the buffer stays owned by the socket, and the caller must
// wait for the send completion signal.
func (c *Channel) StartSend(n int, to netip.AddrPort) (completed bool, err error) {
	if c.sendState != SlotIdle {
		return false, ErrSlotBusy
	}
	_, pending, err := c.sock.StartSend(c.sendBuf[:n], to)
	if err != nil {
		return false, err
	}
	if pending {
		c.sendState = SlotInFlight
		return false, nil
	}
	return true, nil
}

// SignalSend records that the completion signal for the in-flight send
// fired.
func (c *Channel) SignalSend() error {
	if c.sendState != SlotInFlight {
		return ErrSlotNotReady
	}
	c.sendState = SlotReady
	return nil
}

// FinishSend retrieves the transferred byte count of a signaled send and
// resets the slot, releasing the send buffer for reuse.
func (c *Channel) FinishSend() (int, error) {
	if c.sendState != SlotReady {
		return 0, ErrSlotNotReady
	}
	c.sendState = SlotIdle
	return c.sock.FinishSend()
}

// Close closes the underlying socket.
func (c *Channel) Close() error { return c.sock.Close() }
