package dispatch

import "errors"

// First-contact verdicts. These form a closed set: the dispatch loop handles
// every variant explicitly, so adding one requires touching the call site.
var (
	// errVersionNegotiation: the peer offered an unsupported version and a
	// Version Negotiation packet was written into the send buffer.
	errVersionNegotiation = errors.New("version negotiation required")
	// errStatelessRetry: the peer has not proven its address yet and a Retry
	// packet was written into the send buffer.
	errStatelessRetry = errors.New("stateless retry issued")
	// errRetryThrottled: a Retry would have been sent, but the rate limit was
	// exceeded. The packet is dropped without a reply.
	errRetryThrottled = errors.New("stateless retry throttled")
	// errProtocolViolation: the packet fails first-contact classification.
	// It is dropped silently; replying would hand an amplification vector to
	// unvalidated peers.
	errProtocolViolation = errors.New("protocol violation")
)

// Slot contract violations. These indicate a caller bug, not a runtime
// condition: the single-outstanding-operation protocol was not followed.
var (
	// ErrSlotBusy is returned when an operation is started on a slot that
	// already has one in flight.
	ErrSlotBusy = errors.New("operation already in flight on this slot")
	// ErrSlotNotReady is returned when a slot is finished (or signaled)
	// without a completed in-flight operation.
	ErrSlotNotReady = errors.New("no completed operation on this slot")
)
