package dispatch

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/masa-koz/quic-dispatch/internal/protocol"
)

func TestConnIDRouterDeterministic(t *testing.T) {
	router, err := NewConnIDRouter()
	require.NoError(t, err)

	id := protocol.ConnectionID{0xde, 0xad, 0xbe, 0xef}
	first := router.route(id)
	require.Len(t, first, protocol.MaxConnIDLen)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, router.route(id))
	}
}

func TestConnIDRouterDistinctInputs(t *testing.T) {
	router, err := NewConnIDRouter()
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := make([]byte, 8)
		_, err := rand.Read(id)
		require.NoError(t, err)
		routed := router.route(protocol.ConnectionID(id))
		require.Len(t, routed, protocol.MaxConnIDLen)
		seen[string(routed)] = struct{}{}
	}
	// collisions over 1000 random inputs would mean the MAC is broken
	require.Len(t, seen, 1000)
}

func TestConnIDRouterEmptyInput(t *testing.T) {
	router, err := NewConnIDRouter()
	require.NoError(t, err)

	routed := router.route(nil)
	require.Len(t, routed, protocol.MaxConnIDLen)
	require.Equal(t, routed, router.route(protocol.ConnectionID{}))
}

func TestConnIDRoutersUseDistinctKeys(t *testing.T) {
	r1, err := NewConnIDRouter()
	require.NoError(t, err)
	r2, err := NewConnIDRouter()
	require.NoError(t, err)

	id := protocol.ConnectionID{1, 2, 3, 4, 5, 6, 7, 8}
	require.NotEqual(t, r1.route(id), r2.route(id))
}
