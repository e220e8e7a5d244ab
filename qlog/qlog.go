// Package qlog records dispatch events as newline-delimited JSON, one event
// object per line.
package qlog

import (
	"bytes"
	"io"
	"net/netip"
	"time"

	"github.com/francoispqt/gojay"

	"github.com/masa-koz/quic-dispatch/logging"
)

type recorder struct {
	w             io.WriteCloser
	buf           *bytes.Buffer
	referenceTime time.Time
	writeErr      error
}

// NewTracer creates a tracer writing events to w. Events are encoded and
// written synchronously from the event loop; w should not block. The first
// write error stops all further output.
func NewTracer(w io.WriteCloser) *logging.Tracer {
	r := &recorder{
		w:             w,
		buf:           &bytes.Buffer{},
		referenceTime: time.Now(),
	}
	return &logging.Tracer{
		ReceivedPacket: func(from netip.AddrPort, size int) {
			r.record("packet_received", eventPacket{Addr: from, Size: size})
		},
		DroppedPacket: func(from netip.AddrPort, size int, reason logging.PacketDropReason) {
			r.record("packet_dropped", eventPacketDropped{
				eventPacket: eventPacket{Addr: from, Size: size},
				Reason:      reason,
			})
		},
		SentVersionNegotiation: func(to netip.AddrPort) {
			r.record("version_negotiation_sent", eventAddr{Addr: to})
		},
		SentRetry: func(to netip.AddrPort) {
			r.record("retry_sent", eventAddr{Addr: to})
		},
		AcceptedConnection: func(dcid logging.ConnectionID, from netip.AddrPort) {
			r.record("connection_accepted", eventConnectionAccepted{DCID: dcid, Addr: from})
		},
		CollectedConnection: func(traceID string, stats logging.ConnectionStats) {
			r.record("connection_collected", eventConnectionCollected{TraceID: traceID, Stats: stats})
		},
	}
}

func (r *recorder) record(name string, details gojay.MarshalerJSONObject) {
	if r.writeErr != nil {
		return
	}
	r.buf.Reset()
	enc := gojay.NewEncoder(r.buf)
	if err := enc.EncodeObject(event{
		RelativeTime: time.Since(r.referenceTime),
		Name:         name,
		Details:      details,
	}); err != nil {
		r.writeErr = err
		return
	}
	r.buf.WriteByte('\n')
	if _, err := r.w.Write(r.buf.Bytes()); err != nil {
		r.writeErr = err
	}
}
