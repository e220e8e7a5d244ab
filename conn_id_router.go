package dispatch

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/masa-koz/quic-dispatch/internal/protocol"
)

const routerKeyLen = 32

// A ConnIDRouter derives the fixed-length connection ID used to key the
// connection registry. Destination connection IDs are chosen by the peer;
// hashing them with a secret key keeps the key space collision resistant
// without trusting those bytes. The same router must be shared by every
// listener in the process so that derivations agree.
type ConnIDRouter struct {
	mac hash.Hash
}

// NewConnIDRouter creates a router with a fresh secret key. The key lives
// for the lifetime of the router and is never rotated.
func NewConnIDRouter() (*ConnIDRouter, error) {
	key := make([]byte, routerKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating routing key: %w", err)
	}
	return &ConnIDRouter{mac: hmac.New(sha256.New, key)}, nil
}

// route maps a peer-presented connection ID to its routed form. It is
// deterministic for the lifetime of the router and never fails; an empty
// input simply hashes like any other. Not safe for concurrent use, which is
// fine: all routing happens on the event-loop goroutine.
func (r *ConnIDRouter) route(id protocol.ConnectionID) protocol.ConnectionID {
	r.mac.Reset()
	r.mac.Write(id)
	sum := r.mac.Sum(nil)
	return protocol.ConnectionID(sum[:protocol.MaxConnIDLen])
}
