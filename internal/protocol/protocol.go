// Package protocol holds the identifiers and size constants shared by the
// dispatch layer.
package protocol

// MaxConnIDLen is the maximum length of a QUIC connection ID, and the length
// of every routed connection ID.
const MaxConnIDLen = 20

// MaxRecvUDPPayloadSize is the default size of the receive buffer. A UDP
// datagram cannot carry more payload than this.
const MaxRecvUDPPayloadSize = 65535

// MaxSendUDPPayloadSize is the default size of the send buffer. It bounds
// outgoing datagrams to a conservative path MTU budget.
const MaxSendUDPPayloadSize = 1350
