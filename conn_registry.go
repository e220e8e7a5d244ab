package dispatch

import (
	"log/slog"

	"github.com/masa-koz/quic-dispatch/internal/protocol"
	"github.com/masa-koz/quic-dispatch/logging"
)

// The connRegistry owns every live connection on a listener, keyed by the
// routed connection ID. It is confined to the event-loop goroutine, so there
// is no locking; correctness depends on never re-entering a dispatch pass.
type connRegistry struct {
	router *ConnIDRouter
	conns  map[string]*connEntry

	logger *slog.Logger
	tracer *logging.Tracer
}

type connEntry struct {
	conn Conn
}

func newConnRegistry(router *ConnIDRouter, logger *slog.Logger, tracer *logging.Tracer) *connRegistry {
	return &connRegistry{
		router: router,
		conns:  make(map[string]*connEntry),
		logger: logger.With("component", "registry"),
		tracer: tracer,
	}
}

// get resolves a destination connection ID against the live connections,
// first as presented and then via its routed derivation. A connection stays
// reachable both by the ID the client used before a Retry and by the one the
// server chose.
func (r *connRegistry) get(id protocol.ConnectionID) (Conn, bool) {
	if e, ok := r.conns[string(id)]; ok {
		return e.conn, true
	}
	if e, ok := r.conns[string(r.router.route(id))]; ok {
		return e.conn, true
	}
	return nil, false
}

// add inserts a connection under its routed ID. At most one entry may exist
// per routed ID; first contact only reaches the gate when get missed.
func (r *connRegistry) add(routedID protocol.ConnectionID, conn Conn) {
	r.conns[string(routedID)] = &connEntry{conn: conn}
}

func (r *connRegistry) len() int { return len(r.conns) }

// collectClosed removes every connection whose engine handle reports closed,
// surfacing its final stats first. It is idempotent and runs every dispatch
// pass.
func (r *connRegistry) collectClosed() {
	for key, e := range r.conns {
		if !e.conn.IsClosed() {
			continue
		}
		stats := e.conn.Stats()
		r.logger.Info("connection collected",
			"conn", e.conn.TraceID(),
			"packets_received", stats.PacketsReceived,
			"packets_sent", stats.PacketsSent,
			"bytes_received", stats.BytesReceived,
			"bytes_sent", stats.BytesSent)
		if r.tracer != nil && r.tracer.CollectedConnection != nil {
			r.tracer.CollectedConnection(e.conn.TraceID(), stats)
		}
		delete(r.conns, key)
	}
}
