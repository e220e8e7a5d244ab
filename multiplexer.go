package dispatch

import (
	"context"
	"io"
	"log/slog"
)

type slotKind uint8

const (
	slotRecv slotKind = iota
	slotSend
)

type muxEvent struct {
	listener *Listener
	kind     slotKind
}

// The Multiplexer runs every listener off a single goroutine. All completion
// signals are merged into one event channel; whichever socket becomes ready
// first is dispatched first, so ordering is only guaranteed per socket, never
// across listeners.
type Multiplexer struct {
	events    chan muxEvent
	done      chan struct{}
	listeners []*Listener
	logger    *slog.Logger
}

// NewMultiplexer creates a Multiplexer. logger may be nil.
func NewMultiplexer(logger *slog.Logger) *Multiplexer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Multiplexer{
		events: make(chan muxEvent),
		done:   make(chan struct{}),
		logger: logger.With("component", "multiplexer"),
	}
}

// Add registers a listener. Must be called before Run.
func (m *Multiplexer) Add(l *Listener) {
	m.listeners = append(m.listeners, l)
	go m.forward(l, l.ch.RecvSignal(), slotRecv)
	go m.forward(l, l.ch.SendSignal(), slotSend)
}

func (m *Multiplexer) forward(l *Listener, sig <-chan struct{}, kind slotKind) {
	for {
		select {
		case <-m.done:
			return
		case <-sig:
		}
		select {
		case <-m.done:
			return
		case m.events <- muxEvent{listener: l, kind: kind}:
		}
	}
}

// Run issues the initial receive on every listener and dispatches completion
// events until the context is canceled or a listener hits a fatal socket
// error. There is no graceful drain: canceling the context simply stops
// dispatching and winds down the forwarders. Run may be called once.
func (m *Multiplexer) Run(ctx context.Context) error {
	defer close(m.done)
	for _, l := range m.listeners {
		if err := l.start(); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.events:
			var err error
			switch ev.kind {
			case slotRecv:
				err = ev.listener.onRecvReady()
			case slotSend:
				err = ev.listener.onSendReady()
			}
			if err != nil {
				m.logger.Error("listener failed",
					"addr", ev.listener.LocalAddr().String(), "error", err)
				return err
			}
		}
	}
}
