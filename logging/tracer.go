package logging

import "net/netip"

// A Tracer traces dispatch-level events. Every callback is optional.
// Callbacks are invoked from the event-loop goroutine and must not block.
type Tracer struct {
	ReceivedPacket         func(from netip.AddrPort, size int)
	DroppedPacket          func(from netip.AddrPort, size int, reason PacketDropReason)
	SentVersionNegotiation func(to netip.AddrPort)
	SentRetry              func(to netip.AddrPort)
	AcceptedConnection     func(dcid ConnectionID, from netip.AddrPort)
	CollectedConnection    func(traceID string, stats ConnectionStats)
}

// NewMultiplexedTracer creates a new tracer that multiplexes events to
// multiple tracers.
func NewMultiplexedTracer(tracers ...*Tracer) *Tracer {
	if len(tracers) == 0 {
		return nil
	}
	if len(tracers) == 1 {
		return tracers[0]
	}
	return &Tracer{
		ReceivedPacket: func(from netip.AddrPort, size int) {
			for _, t := range tracers {
				if t.ReceivedPacket != nil {
					t.ReceivedPacket(from, size)
				}
			}
		},
		DroppedPacket: func(from netip.AddrPort, size int, reason PacketDropReason) {
			for _, t := range tracers {
				if t.DroppedPacket != nil {
					t.DroppedPacket(from, size, reason)
				}
			}
		},
		SentVersionNegotiation: func(to netip.AddrPort) {
			for _, t := range tracers {
				if t.SentVersionNegotiation != nil {
					t.SentVersionNegotiation(to)
				}
			}
		},
		SentRetry: func(to netip.AddrPort) {
			for _, t := range tracers {
				if t.SentRetry != nil {
					t.SentRetry(to)
				}
			}
		},
		AcceptedConnection: func(dcid ConnectionID, from netip.AddrPort) {
			for _, t := range tracers {
				if t.AcceptedConnection != nil {
					t.AcceptedConnection(dcid, from)
				}
			}
		},
		CollectedConnection: func(traceID string, stats ConnectionStats) {
			for _, t := range tracers {
				if t.CollectedConnection != nil {
					t.CollectedConnection(traceID, stats)
				}
			}
		},
	}
}
