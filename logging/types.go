// Package logging defines the event hooks used to instrument the dispatch
// layer. Both the metrics and the qlog packages consume these types.
package logging

import "github.com/masa-koz/quic-dispatch/internal/protocol"

// A ConnectionID is a QUIC Connection ID.
type ConnectionID = protocol.ConnectionID

// PacketDropReason is the reason a packet was dropped without a reply.
type PacketDropReason uint8

const (
	// DropHeaderParseError is used when the packet header could not be parsed.
	DropHeaderParseError PacketDropReason = iota
	// DropProtocolViolation is used for first-contact packets that fail
	// classification: non-Initial packets, invalid address validation tokens,
	// or connection ID length mismatches.
	DropProtocolViolation
	// DropRetryThrottled is used when the retry rate limit was exceeded.
	DropRetryThrottled
	// DropSendBlocked is used when a first-contact packet arrived while the
	// send slot was occupied, leaving nowhere to build the reply.
	DropSendBlocked
	// DropEngineError is used when the protocol engine rejected the packet.
	DropEngineError
)

func (r PacketDropReason) String() string {
	switch r {
	case DropHeaderParseError:
		return "header_parse_error"
	case DropProtocolViolation:
		return "protocol_violation"
	case DropRetryThrottled:
		return "retry_throttled"
	case DropSendBlocked:
		return "send_blocked"
	case DropEngineError:
		return "engine_error"
	default:
		return "unknown"
	}
}

// ConnectionStats are the counters a connection handle reports when it is
// collected.
type ConnectionStats struct {
	PacketsReceived uint64
	PacketsSent     uint64
	BytesReceived   uint64
	BytesSent       uint64
}
