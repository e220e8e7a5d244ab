package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/masa-koz/quic-dispatch/internal/protocol"
	"github.com/masa-koz/quic-dispatch/logging"
)

func newTestRegistry(t *testing.T, tracer *logging.Tracer) (*connRegistry, *ConnIDRouter) {
	t.Helper()
	router, err := NewConnIDRouter()
	require.NoError(t, err)
	return newConnRegistry(router, testLogger(), tracer), router
}

func TestRegistryLookupRawAndRouted(t *testing.T) {
	reg, router := newTestRegistry(t, nil)

	original := protocol.ConnectionID{1, 2, 3, 4, 5, 6, 7, 8}
	routed := router.route(original)
	conn := &fakeConn{traceID: "c1"}
	reg.add(routed, conn)
	require.Equal(t, 1, reg.len())

	// the server-chosen ID hits directly
	got, ok := reg.get(routed)
	require.True(t, ok)
	require.Same(t, conn, got)

	// the ID the client used before the Retry resolves via derivation
	got, ok = reg.get(original)
	require.True(t, ok)
	require.Same(t, conn, got)

	_, ok = reg.get(protocol.ConnectionID{0xff, 0xfe})
	require.False(t, ok)
}

func TestRegistryCollectClosed(t *testing.T) {
	var collected []string
	tracer := &logging.Tracer{
		CollectedConnection: func(traceID string, stats logging.ConnectionStats) {
			collected = append(collected, traceID)
			require.Equal(t, uint64(3), stats.PacketsReceived)
		},
	}
	reg, router := newTestRegistry(t, tracer)

	live := &fakeConn{traceID: "live"}
	dead := &fakeConn{
		traceID: "dead",
		closed:  true,
		stats:   logging.ConnectionStats{PacketsReceived: 3},
	}
	reg.add(router.route(protocol.ConnectionID{1}), live)
	reg.add(router.route(protocol.ConnectionID{2}), dead)
	require.Equal(t, 2, reg.len())

	reg.collectClosed()
	require.Equal(t, 1, reg.len())
	require.Equal(t, []string{"dead"}, collected)

	_, ok := reg.get(router.route(protocol.ConnectionID{1}))
	require.True(t, ok)
	_, ok = reg.get(router.route(protocol.ConnectionID{2}))
	require.False(t, ok)

	// collecting again is a no-op
	reg.collectClosed()
	require.Equal(t, 1, reg.len())
	require.Len(t, collected, 1)
}
