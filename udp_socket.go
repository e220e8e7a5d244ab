package dispatch

import (
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const socketReceiveBufferSize = 1 << 20

// asyncUDPSocket adapts a kernel UDP socket to the completion-based
// capability. A Start call first polls the socket with a non-blocking
// recvfrom/sendto; if the kernel reports would-block, the operation is
// handed to a pump goroutine that performs the blocking call and fires the
// completion signal.
type asyncUDPSocket struct {
	conn    *net.UDPConn
	rawConn syscall.RawConn
	ipv6    bool

	recvReq  chan []byte
	recvSig  chan struct{}
	recvN    int
	recvFrom netip.AddrPort
	recvErr  error

	sendReq chan sendRequest
	sendSig chan struct{}
	sendN   int
	sendErr error

	pumps errgroup.Group
}

type sendRequest struct {
	data []byte
	to   netip.AddrPort
}

var _ PacketSocket = &asyncUDPSocket{}

// ListenAsyncUDP opens a UDP socket on the given address and wraps it in the
// completion-based capability.
func ListenAsyncUDP(network, address string) (PacketSocket, error) {
	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, err
	}
	rawConn, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, err
	}
	// Best effort: bursts arriving while a dispatch pass runs should not be
	// dropped by the kernel.
	_ = setReceiveBuffer(conn, socketReceiveBufferSize)

	s := &asyncUDPSocket{
		conn:    conn,
		rawConn: rawConn,
		ipv6:    conn.LocalAddr().(*net.UDPAddr).IP.To4() == nil,
		recvReq: make(chan []byte),
		recvSig: make(chan struct{}, 1),
		sendReq: make(chan sendRequest),
		sendSig: make(chan struct{}, 1),
	}
	s.pumps.Go(s.recvPump)
	s.pumps.Go(s.sendPump)
	return s, nil
}

func (s *asyncUDPSocket) StartRecv(buf []byte) (int, netip.AddrPort, bool, error) {
	n, from, ok, err := pollReadFrom(s.rawConn, buf)
	if err != nil {
		return 0, netip.AddrPort{}, false, err
	}
	if ok {
		return n, from, false, nil
	}
	s.recvReq <- buf
	return 0, netip.AddrPort{}, true, nil
}

func (s *asyncUDPSocket) recvPump() error {
	for buf := range s.recvReq {
		s.recvN, s.recvFrom, s.recvErr = s.conn.ReadFromUDPAddrPort(buf)
		s.recvSig <- struct{}{}
	}
	return nil
}

func (s *asyncUDPSocket) FinishRecv() (int, netip.AddrPort, error) {
	return s.recvN, s.recvFrom, s.recvErr
}

func (s *asyncUDPSocket) StartSend(data []byte, to netip.AddrPort) (int, bool, error) {
	n, ok, err := pollWriteTo(s.rawConn, data, to, s.ipv6)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return n, false, nil
	}
	s.sendReq <- sendRequest{data: data, to: to}
	return 0, true, nil
}

func (s *asyncUDPSocket) sendPump() error {
	for req := range s.sendReq {
		s.sendN, s.sendErr = s.conn.WriteToUDPAddrPort(req.data, req.to)
		s.sendSig <- struct{}{}
	}
	return nil
}

func (s *asyncUDPSocket) FinishSend() (int, error) {
	return s.sendN, s.sendErr
}

func (s *asyncUDPSocket) RecvSignal() <-chan struct{} { return s.recvSig }
func (s *asyncUDPSocket) SendSignal() <-chan struct{} { return s.sendSig }

func (s *asyncUDPSocket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

func (s *asyncUDPSocket) Close() error {
	close(s.recvReq)
	close(s.sendReq)
	err := s.conn.Close()
	if perr := s.pumps.Wait(); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return fmt.Errorf("closing socket: %w", err)
	}
	return nil
}
