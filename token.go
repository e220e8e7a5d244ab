package dispatch

import (
	"bytes"
	"net/netip"

	"github.com/masa-koz/quic-dispatch/internal/protocol"
)

// tokenTag marks a byte sequence as an address validation token minted here.
const tokenTag = "retry:"

func tokenAddrBytes(from netip.AddrPort) []byte {
	addr := from.Addr().Unmap()
	if addr.Is4() {
		b := addr.As4()
		return b[:]
	}
	b := addr.As16()
	return b[:]
}

// mintToken builds an address validation token for a stateless retry:
// tag ‖ client IP ‖ original destination connection ID. The token is not
// persisted anywhere; it is only valid between the Retry we send and the
// next Initial the client sends.
func mintToken(hdr *Header, from netip.AddrPort) []byte {
	ip := tokenAddrBytes(from)
	token := make([]byte, 0, len(tokenTag)+len(ip)+hdr.DestConnectionID.Len())
	token = append(token, tokenTag...)
	token = append(token, ip...)
	token = append(token, hdr.DestConnectionID...)
	return token
}

// validateToken checks a returned token against the current sender address
// and recovers the original destination connection ID embedded in it.
func validateToken(from netip.AddrPort, token []byte) (protocol.ConnectionID, bool) {
	if len(token) < len(tokenTag) || string(token[:len(tokenTag)]) != tokenTag {
		return nil, false
	}
	rest := token[len(tokenTag):]
	ip := tokenAddrBytes(from)
	if len(rest) < len(ip) || !bytes.Equal(rest[:len(ip)], ip) {
		return nil, false
	}
	return protocol.ConnectionID(rest[len(ip):]), true
}
