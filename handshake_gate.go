package dispatch

import (
	"fmt"
	"log/slog"
	"net/netip"

	"golang.org/x/time/rate"

	"github.com/masa-koz/quic-dispatch/internal/protocol"
)

// handshakeGate classifies datagrams that match no live connection. It
// allocates no per-peer state: every outcome is either a single reply
// datagram written into out, a silent drop, or an accepted connection.
type handshakeGate struct {
	engine  Engine
	retries *rate.Limiter
	logger  *slog.Logger
}

func newHandshakeGate(engine Engine, retriesPerSecond float64, logger *slog.Logger) *handshakeGate {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if retriesPerSecond > 0 {
		burst := int(retriesPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(retriesPerSecond), burst)
	}
	return &handshakeGate{
		engine:  engine,
		retries: limiter,
		logger:  logger.With("component", "gate"),
	}
}

// handle classifies a first-contact datagram. scid is the server-chosen
// connection ID offered to the client in a Retry. On errVersionNegotiation
// and errStatelessRetry the returned length is the reply written into out;
// every other error means drop. A non-nil Conn is returned only for a peer
// that passed address validation.
func (g *handshakeGate) handle(hdr *Header, from netip.AddrPort, scid protocol.ConnectionID, out []byte) (Conn, int, error) {
	if hdr.Type != PacketTypeInitial {
		g.logger.Debug("packet for unknown connection is not an Initial",
			"type", hdr.Type.String(), "from", from)
		return nil, 0, errProtocolViolation
	}

	if !g.engine.VersionSupported(hdr.Version) {
		n, err := g.engine.NegotiateVersion(hdr.SrcConnectionID, hdr.DestConnectionID, out)
		if err != nil {
			return nil, 0, fmt.Errorf("building version negotiation packet: %w", err)
		}
		g.logger.Debug("performing version negotiation", "version", hdr.Version, "from", from)
		return nil, n, errVersionNegotiation
	}

	if len(hdr.Token) == 0 {
		if !g.retries.Allow() {
			g.logger.Debug("retry rate limit exceeded", "from", from)
			return nil, 0, errRetryThrottled
		}
		token := mintToken(hdr, from)
		n, err := g.engine.Retry(hdr.SrcConnectionID, hdr.DestConnectionID, scid, token, hdr.Version, out)
		if err != nil {
			return nil, 0, fmt.Errorf("building retry packet: %w", err)
		}
		g.logger.Debug("performing stateless retry", "from", from)
		return nil, n, errStatelessRetry
	}

	odcid, ok := validateToken(from, hdr.Token)
	if !ok {
		g.logger.Debug("invalid address validation token", "from", from)
		return nil, 0, errProtocolViolation
	}

	if scid.Len() != hdr.DestConnectionID.Len() {
		g.logger.Debug("invalid destination connection ID length",
			"dcid", hdr.DestConnectionID, "from", from)
		return nil, 0, errProtocolViolation
	}

	// The client echoed back the connection ID we chose in the Retry; keep
	// using it instead of picking another one.
	conn, err := g.engine.Accept(hdr.DestConnectionID, odcid, from)
	if err != nil {
		return nil, 0, fmt.Errorf("accepting connection: %w", err)
	}
	return conn, 0, nil
}
