// Package dispatch demultiplexes UDP datagrams onto QUIC connections and
// drives a completion-based socket primitive. The QUIC protocol engine
// itself (handshake, loss recovery, streams) is an external collaborator
// consumed through the Engine and Conn interfaces.
package dispatch

import (
	"errors"
	"net/netip"

	"github.com/masa-koz/quic-dispatch/internal/protocol"
	"github.com/masa-koz/quic-dispatch/logging"
)

// ErrDone is returned by engine operations that have nothing further to
// produce: Conn.Send when no datagram is pending, Conn.RecvStream when the
// stream has no more readable data, Conn.SendStream when no data was queued.
var ErrDone = errors.New("done")

// PacketType is the QUIC packet type reported by the engine's header parser.
type PacketType uint8

const (
	// PacketTypeInitial is the packet type of an Initial packet
	PacketTypeInitial PacketType = iota
	// PacketTypeHandshake is the packet type of a Handshake packet
	PacketTypeHandshake
	// PacketType0RTT is the packet type of a 0-RTT packet
	PacketType0RTT
	// PacketTypeRetry is the packet type of a Retry packet
	PacketTypeRetry
	// PacketTypeVersionNegotiation is the packet type of a Version Negotiation packet
	PacketTypeVersionNegotiation
	// PacketType1RTT is a 1-RTT packet
	PacketType1RTT
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeInitial:
		return "Initial"
	case PacketTypeHandshake:
		return "Handshake"
	case PacketType0RTT:
		return "0-RTT"
	case PacketTypeRetry:
		return "Retry"
	case PacketTypeVersionNegotiation:
		return "Version Negotiation"
	case PacketType1RTT:
		return "1-RTT"
	default:
		return "unknown"
	}
}

// A Header is the parsed invariant part of a QUIC packet header. Only the
// fields the dispatch layer routes on are exposed; everything else stays
// inside the engine.
type Header struct {
	Type             PacketType
	Version          uint32
	DestConnectionID protocol.ConnectionID
	SrcConnectionID  protocol.ConnectionID
	Token            []byte
}

// An Engine is the external QUIC protocol implementation. It owns all wire
// semantics; the dispatch layer only classifies datagrams and shuttles bytes.
type Engine interface {
	// ParseHeader parses the header of a packet.
	ParseHeader(data []byte) (*Header, error)
	// VersionSupported reports whether the engine speaks the given version.
	VersionSupported(version uint32) bool
	// NegotiateVersion writes a Version Negotiation packet into out and
	// returns its length.
	NegotiateVersion(scid, dcid protocol.ConnectionID, out []byte) (int, error)
	// Retry writes a Retry packet into out and returns its length. newSCID is
	// the server-chosen connection ID the client must echo back, token the
	// address validation token it must return.
	Retry(scid, dcid, newSCID protocol.ConnectionID, token []byte, version uint32, out []byte) (int, error)
	// Accept creates a server connection for a peer that passed address
	// validation. odcid is the destination connection ID from the client's
	// very first Initial.
	Accept(scid, odcid protocol.ConnectionID, peer netip.AddrPort) (Conn, error)
}

// A Conn is one engine-owned QUIC connection.
type Conn interface {
	// Recv processes a datagram received from the peer.
	Recv(data []byte, from netip.AddrPort) (int, error)
	// ReadableStreams returns the IDs of all streams with readable data.
	ReadableStreams() []uint64
	// RecvStream reads application data from a stream. It returns ErrDone
	// when the stream has nothing more to read right now.
	RecvStream(streamID uint64, b []byte) (n int, fin bool, err error)
	// SendStream writes application data to a stream.
	SendStream(streamID uint64, data []byte, fin bool) (int, error)
	// Send writes the next outgoing datagram into b and returns its length
	// and destination. It returns ErrDone when there is nothing to send.
	Send(b []byte) (int, netip.AddrPort, error)
	IsEstablished() bool
	IsInEarlyData() bool
	IsClosed() bool
	Close(errorCode uint64, reason []byte) error
	Stats() logging.ConnectionStats
	TraceID() string
}
