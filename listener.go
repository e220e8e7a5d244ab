package dispatch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"

	"github.com/masa-koz/quic-dispatch/logging"
)

// A Listener drives one UDP socket: it turns receive completions into engine
// events and engine output back into send operations. All methods run on the
// multiplexer goroutine; a Listener has no locks and must not be shared.
type Listener struct {
	ch       *Channel
	engine   Engine
	router   *ConnIDRouter
	gate     *handshakeGate
	registry *connRegistry

	logger *slog.Logger
	tracer *logging.Tracer
}

// NewListener creates a Listener on the given socket. The router must be
// shared between all listeners of the process. tracer may be nil.
func NewListener(sock PacketSocket, engine Engine, router *ConnIDRouter, conf *Config, tracer *logging.Tracer, logger *slog.Logger) *Listener {
	conf = conf.populated()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Listener{
		ch:       NewChannel(sock, conf.MaxRecvUDPPayloadSize, conf.MaxSendUDPPayloadSize),
		engine:   engine,
		router:   router,
		gate:     newHandshakeGate(engine, conf.RetriesPerSecond, logger),
		registry: newConnRegistry(router, logger, tracer),
		logger:   logger.With("component", "dispatch", "addr", sock.LocalAddr().String()),
		tracer:   tracer,
	}
}

// LocalAddr returns the address the listener's socket is bound to.
func (l *Listener) LocalAddr() net.Addr { return l.ch.LocalAddr() }

// NumConnections returns the number of live connections.
func (l *Listener) NumConnections() int { return l.registry.len() }

// start issues the first receive. Called once, before any completion event.
func (l *Listener) start() error { return l.serveRecv() }

// onRecvReady handles a receive completion signal: run the full
// receive/route/ingest/egress/collect pass.
func (l *Listener) onRecvReady() error {
	if err := l.ch.SignalRecv(); err != nil {
		return err
	}
	return l.serveRecv()
}

// onSendReady handles a send completion signal: finalize the send slot, then
// resume the egress pass that was cut short when the slot went in flight.
func (l *Listener) onSendReady() error {
	if err := l.ch.SignalSend(); err != nil {
		return err
	}
	n, err := l.ch.FinishSend()
	if err != nil {
		return fmt.Errorf("send on %s: %w", l.LocalAddr(), err)
	}
	l.logger.Debug("send completed", "bytes", n)
	if err := l.flushSends(); err != nil {
		return err
	}
	l.registry.collectClosed()
	return nil
}

// serveRecv finishes a completed receive, runs the dispatch pass for the
// datagram, and keeps issuing receives for as long as they complete
// synchronously. It returns once a receive is parked or on a fatal socket
// error.
func (l *Listener) serveRecv() error {
	for {
		var (
			n    int
			from netip.AddrPort
			err  error
		)
		switch l.ch.RecvState() {
		case SlotReady:
			n, from, err = l.ch.FinishRecv()
		case SlotIdle:
			var completed bool
			n, from, completed, err = l.ch.StartRecv()
			if err == nil && !completed {
				return nil
			}
		default:
			// still waiting for the completion signal
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive on %s: %w", l.LocalAddr(), err)
		}
		if err := l.handlePacket(l.ch.RecvBuffer()[:n], from); err != nil {
			return err
		}
		if err := l.flushSends(); err != nil {
			return err
		}
		l.registry.collectClosed()
	}
}

// handlePacket routes one datagram. Malformed or unwanted packets are
// dropped here; only socket failures propagate.
func (l *Listener) handlePacket(data []byte, from netip.AddrPort) error {
	if l.tracer != nil && l.tracer.ReceivedPacket != nil {
		l.tracer.ReceivedPacket(from, len(data))
	}

	hdr, err := l.engine.ParseHeader(data)
	if err != nil {
		l.logger.Debug("parsing packet header failed", "from", from, "error", err)
		l.dropPacket(from, len(data), logging.DropHeaderParseError)
		return nil
	}

	conn, ok := l.registry.get(hdr.DestConnectionID)
	if !ok {
		conn, err = l.firstContact(hdr, from, len(data))
		if err != nil {
			return err
		}
		if conn == nil {
			return nil
		}
	}
	l.ingest(conn, data, from)
	return nil
}

// firstContact runs the handshake gate for a datagram that matched no live
// connection. It returns a non-nil Conn only when a new connection was
// accepted; the returned error is fatal-to-the-listener only.
func (l *Listener) firstContact(hdr *Header, from netip.AddrPort, size int) (Conn, error) {
	if l.ch.SendState() != SlotIdle {
		// A stateless reply has nowhere to wait: there is deliberately no
		// per-peer state to park it on. The peer retransmits its Initial.
		l.logger.Debug("send slot busy, dropping first-contact packet", "from", from)
		l.dropPacket(from, size, logging.DropSendBlocked)
		return nil, nil
	}

	scid := l.router.route(hdr.DestConnectionID)
	conn, n, err := l.gate.handle(hdr, from, scid, l.ch.SendBuffer())
	switch {
	case err == nil:
	case errors.Is(err, errVersionNegotiation), errors.Is(err, errStatelessRetry):
		if _, serr := l.ch.StartSend(n, from); serr != nil {
			return nil, fmt.Errorf("sending handshake reply on %s: %w", l.LocalAddr(), serr)
		}
		if errors.Is(err, errVersionNegotiation) {
			if l.tracer != nil && l.tracer.SentVersionNegotiation != nil {
				l.tracer.SentVersionNegotiation(from)
			}
		} else if l.tracer != nil && l.tracer.SentRetry != nil {
			l.tracer.SentRetry(from)
		}
		return nil, nil
	case errors.Is(err, errRetryThrottled):
		l.dropPacket(from, size, logging.DropRetryThrottled)
		return nil, nil
	case errors.Is(err, errProtocolViolation):
		l.dropPacket(from, size, logging.DropProtocolViolation)
		return nil, nil
	default:
		// The engine failed to build a reply or accept the connection. That
		// is local to this datagram, not to the listener.
		l.logger.Error("handshake failed", "from", from, "error", err)
		l.dropPacket(from, size, logging.DropEngineError)
		return nil, nil
	}

	l.registry.add(scid, conn)
	l.logger.Info("new connection",
		"conn", conn.TraceID(), "dcid", hdr.DestConnectionID, "from", from)
	if l.tracer != nil && l.tracer.AcceptedConnection != nil {
		l.tracer.AcceptedConnection(hdr.DestConnectionID, from)
	}
	return conn, nil
}

// ingest hands the datagram to the engine and echoes any readable stream
// data. Engine errors do not tear the connection down; the engine owns that
// decision.
func (l *Listener) ingest(conn Conn, data []byte, from netip.AddrPort) {
	n, err := conn.Recv(data, from)
	if err != nil {
		l.logger.Error("engine failed to process datagram",
			"conn", conn.TraceID(), "error", err)
		l.dropPacket(from, len(data), logging.DropEngineError)
		return
	}
	l.logger.Debug("processed datagram", "conn", conn.TraceID(), "bytes", n)

	if conn.IsInEarlyData() || conn.IsEstablished() {
		l.echoStreams(conn)
	}
}

// echoStreams reads every readable stream and writes the bytes straight back
// on the same stream, finishing our side of the stream with the write.
func (l *Listener) echoStreams(conn Conn) {
	// The packet bytes were consumed by the engine, so the receive buffer is
	// free to serve as stream scratch space until the next receive starts.
	buf := l.ch.RecvBuffer()
	for _, streamID := range conn.ReadableStreams() {
		for {
			n, fin, err := conn.RecvStream(streamID, buf)
			if errors.Is(err, ErrDone) {
				break
			}
			if err != nil {
				l.logger.Error("stream receive failed",
					"conn", conn.TraceID(), "stream", streamID, "error", err)
				break
			}
			l.logger.Debug("stream data",
				"conn", conn.TraceID(), "stream", streamID, "bytes", n, "fin", fin)
			if _, err := conn.SendStream(streamID, buf[:n], true); err != nil && !errors.Is(err, ErrDone) {
				l.logger.Error("stream send failed",
					"conn", conn.TraceID(), "stream", streamID, "error", err)
				break
			}
		}
	}
}

// flushSends drains outgoing datagrams from every live connection into the
// send slot. When the slot goes in flight the pass stops without pulling
// anything further from the engine, so no datagram is lost; the pass resumes
// on the next send completion.
func (l *Listener) flushSends() error {
	for _, e := range l.registry.conns {
		for {
			if l.ch.SendState() != SlotIdle {
				return nil
			}
			n, to, err := e.conn.Send(l.ch.SendBuffer())
			if errors.Is(err, ErrDone) {
				break
			}
			if err != nil {
				l.logger.Error("engine failed to produce datagram",
					"conn", e.conn.TraceID(), "error", err)
				_ = e.conn.Close(0x1, []byte("fail"))
				break
			}
			completed, err := l.ch.StartSend(n, to)
			if err != nil {
				return fmt.Errorf("send on %s: %w", l.LocalAddr(), err)
			}
			if completed {
				l.logger.Debug("sent datagram",
					"conn", e.conn.TraceID(), "bytes", n, "to", to)
			}
		}
	}
	return nil
}

func (l *Listener) dropPacket(from netip.AddrPort, size int, reason logging.PacketDropReason) {
	if l.tracer != nil && l.tracer.DroppedPacket != nil {
		l.tracer.DroppedPacket(from, size, reason)
	}
}
