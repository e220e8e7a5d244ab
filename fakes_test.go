package dispatch

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/masa-koz/quic-dispatch/internal/protocol"
	"github.com/masa-koz/quic-dispatch/logging"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// The fake packet socket is driven through the slot states by hand: a
// StartRecv with nothing queued parks, deliver completes it and fires the
// signal. Sends complete synchronously unless parkNextSend is set.
type fakeSocket struct {
	mu sync.Mutex

	local   net.Addr
	recvSig chan struct{}
	sendSig chan struct{}

	recvQueue      []fakePacket
	parkedRecvBuf  []byte
	parkedRecv     bool
	finishRecvN    int
	finishRecvFrom netip.AddrPort
	finishRecvErr  error

	parkNextSend bool
	parkedSend   *sentPacket
	sent         []sentPacket
	finishSendN  int
	startSendErr error
}

type fakePacket struct {
	data []byte
	from netip.AddrPort
}

type sentPacket struct {
	data []byte
	to   netip.AddrPort
}

var _ PacketSocket = &fakeSocket{}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		local:   &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4443},
		recvSig: make(chan struct{}, 8),
		sendSig: make(chan struct{}, 8),
	}
}

func (s *fakeSocket) StartRecv(buf []byte) (int, netip.AddrPort, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recvQueue) > 0 {
		pkt := s.recvQueue[0]
		s.recvQueue = s.recvQueue[1:]
		n := copy(buf, pkt.data)
		return n, pkt.from, false, nil
	}
	s.parkedRecvBuf = buf
	s.parkedRecv = true
	return 0, netip.AddrPort{}, true, nil
}

func (s *fakeSocket) FinishRecv() (int, netip.AddrPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishRecvN, s.finishRecvFrom, s.finishRecvErr
}

// deliver queues a datagram. If a receive is parked it completes it and
// fires the completion signal; otherwise the next StartRecv picks it up
// synchronously.
func (s *fakeSocket) deliver(data []byte, from netip.AddrPort) {
	s.mu.Lock()
	if s.parkedRecv {
		s.finishRecvN = copy(s.parkedRecvBuf, data)
		s.finishRecvFrom = from
		s.finishRecvErr = nil
		s.parkedRecv = false
		s.parkedRecvBuf = nil
		s.mu.Unlock()
		s.recvSig <- struct{}{}
		return
	}
	s.recvQueue = append(s.recvQueue, fakePacket{data: append([]byte(nil), data...), from: from})
	s.mu.Unlock()
}

// failRecv completes a parked receive with an error.
func (s *fakeSocket) failRecv(err error) {
	s.mu.Lock()
	s.finishRecvErr = err
	s.parkedRecv = false
	s.parkedRecvBuf = nil
	s.mu.Unlock()
	s.recvSig <- struct{}{}
}

func (s *fakeSocket) StartSend(data []byte, to netip.AddrPort) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startSendErr != nil {
		return 0, false, s.startSendErr
	}
	pkt := sentPacket{data: append([]byte(nil), data...), to: to}
	if s.parkNextSend {
		s.parkNextSend = false
		s.parkedSend = &pkt
		return 0, true, nil
	}
	s.sent = append(s.sent, pkt)
	return len(data), false, nil
}

func (s *fakeSocket) FinishSend() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishSendN, nil
}

// completeSend finishes a parked send and fires the completion signal.
func (s *fakeSocket) completeSend() {
	s.mu.Lock()
	s.sent = append(s.sent, *s.parkedSend)
	s.finishSendN = len(s.parkedSend.data)
	s.parkedSend = nil
	s.mu.Unlock()
	s.sendSig <- struct{}{}
}

func (s *fakeSocket) sentPackets() []sentPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentPacket(nil), s.sent...)
}

func (s *fakeSocket) RecvSignal() <-chan struct{} { return s.recvSig }
func (s *fakeSocket) SendSignal() <-chan struct{} { return s.sendSig }
func (s *fakeSocket) LocalAddr() net.Addr         { return s.local }
func (s *fakeSocket) Close() error                { return nil }

// The fake engine speaks a toy header format so tests can build packets:
// type(1) ‖ version(4) ‖ dcid len(1) ‖ dcid ‖ scid len(1) ‖ scid ‖
// token len(1) ‖ token.
type fakeEngine struct {
	acceptErr error
	accepted  []*fakeConn
}

var _ Engine = &fakeEngine{}

const supportedVersion = 1

func encodePacket(hdr *Header, payload []byte) []byte {
	b := []byte{byte(hdr.Type)}
	b = binary.BigEndian.AppendUint32(b, hdr.Version)
	b = append(b, byte(hdr.DestConnectionID.Len()))
	b = append(b, hdr.DestConnectionID...)
	b = append(b, byte(hdr.SrcConnectionID.Len()))
	b = append(b, hdr.SrcConnectionID...)
	b = append(b, byte(len(hdr.Token)))
	b = append(b, hdr.Token...)
	return append(b, payload...)
}

func (e *fakeEngine) ParseHeader(data []byte) (*Header, error) {
	if len(data) < 8 {
		return nil, errors.New("packet too short")
	}
	hdr := &Header{
		Type:    PacketType(data[0]),
		Version: binary.BigEndian.Uint32(data[1:5]),
	}
	rest := data[5:]
	for _, field := range []*[]byte{
		(*[]byte)(&hdr.DestConnectionID),
		(*[]byte)(&hdr.SrcConnectionID),
		&hdr.Token,
	} {
		if len(rest) < 1 || len(rest) < 1+int(rest[0]) {
			return nil, errors.New("truncated header field")
		}
		*field = append([]byte(nil), rest[1:1+int(rest[0])]...)
		rest = rest[1+int(rest[0]):]
	}
	return hdr, nil
}

func (e *fakeEngine) VersionSupported(version uint32) bool {
	return version == supportedVersion
}

func (e *fakeEngine) NegotiateVersion(scid, dcid protocol.ConnectionID, out []byte) (int, error) {
	return copy(out, "vneg"), nil
}

func (e *fakeEngine) Retry(scid, dcid, newSCID protocol.ConnectionID, token []byte, version uint32, out []byte) (int, error) {
	b := append([]byte("retry"), byte(newSCID.Len()))
	b = append(b, newSCID...)
	b = append(b, token...)
	return copy(out, b), nil
}

// decodeRetry splits a fake Retry packet into the server-chosen connection
// ID and the token.
func decodeRetry(data []byte) (protocol.ConnectionID, []byte) {
	rest := data[len("retry"):]
	scidLen := int(rest[0])
	return protocol.ConnectionID(rest[1 : 1+scidLen]), rest[1+scidLen:]
}

func (e *fakeEngine) Accept(scid, odcid protocol.ConnectionID, peer netip.AddrPort) (Conn, error) {
	if e.acceptErr != nil {
		return nil, e.acceptErr
	}
	conn := &fakeConn{
		scid:        scid,
		odcid:       odcid,
		peer:        peer,
		established: true,
		streams:     make(map[uint64]*fakeStream),
		streamSent:  make(map[uint64][]streamWrite),
		traceID:     scid.String(),
	}
	e.accepted = append(e.accepted, conn)
	return conn, nil
}

type fakeStream struct {
	data []byte
	fin  bool
	read bool
}

type streamWrite struct {
	data []byte
	fin  bool
}

type fakeDatagram struct {
	data []byte
	to   netip.AddrPort
}

type fakeConn struct {
	scid, odcid protocol.ConnectionID
	peer        netip.AddrPort
	traceID     string

	established bool
	earlyData   bool
	closed      bool

	recvErr  error
	ingested [][]byte

	streamOrder []uint64
	streams     map[uint64]*fakeStream
	streamSent  map[uint64][]streamWrite

	outgoing []fakeDatagram
	sendErr  error

	closeCode   uint64
	closeReason []byte

	stats logging.ConnectionStats
}

var _ Conn = &fakeConn{}

func (c *fakeConn) queueStreamData(id uint64, data []byte, fin bool) {
	if _, ok := c.streams[id]; !ok {
		c.streamOrder = append(c.streamOrder, id)
	}
	c.streams[id] = &fakeStream{data: append([]byte(nil), data...), fin: fin}
}

func (c *fakeConn) queueDatagram(data []byte, to netip.AddrPort) {
	c.outgoing = append(c.outgoing, fakeDatagram{data: append([]byte(nil), data...), to: to})
}

func (c *fakeConn) Recv(data []byte, from netip.AddrPort) (int, error) {
	if c.recvErr != nil {
		return 0, c.recvErr
	}
	c.ingested = append(c.ingested, append([]byte(nil), data...))
	c.stats.PacketsReceived++
	c.stats.BytesReceived += uint64(len(data))
	return len(data), nil
}

func (c *fakeConn) ReadableStreams() []uint64 {
	var ids []uint64
	for _, id := range c.streamOrder {
		if !c.streams[id].read {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *fakeConn) RecvStream(streamID uint64, b []byte) (int, bool, error) {
	st, ok := c.streams[streamID]
	if !ok || st.read {
		return 0, false, ErrDone
	}
	st.read = true
	return copy(b, st.data), st.fin, nil
}

func (c *fakeConn) SendStream(streamID uint64, data []byte, fin bool) (int, error) {
	c.streamSent[streamID] = append(c.streamSent[streamID], streamWrite{
		data: append([]byte(nil), data...),
		fin:  fin,
	})
	return len(data), nil
}

func (c *fakeConn) Send(b []byte) (int, netip.AddrPort, error) {
	if c.sendErr != nil {
		return 0, netip.AddrPort{}, c.sendErr
	}
	if len(c.outgoing) == 0 {
		return 0, netip.AddrPort{}, ErrDone
	}
	d := c.outgoing[0]
	c.outgoing = c.outgoing[1:]
	c.stats.PacketsSent++
	c.stats.BytesSent += uint64(len(d.data))
	return copy(b, d.data), d.to, nil
}

func (c *fakeConn) IsEstablished() bool { return c.established }
func (c *fakeConn) IsInEarlyData() bool { return c.earlyData }
func (c *fakeConn) IsClosed() bool      { return c.closed }

func (c *fakeConn) Close(errorCode uint64, reason []byte) error {
	c.closed = true
	c.closeCode = errorCode
	c.closeReason = append([]byte(nil), reason...)
	return nil
}

func (c *fakeConn) Stats() logging.ConnectionStats { return c.stats }
func (c *fakeConn) TraceID() string                { return c.traceID }
