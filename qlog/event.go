package qlog

import (
	"net/netip"
	"time"

	"github.com/francoispqt/gojay"

	"github.com/masa-koz/quic-dispatch/logging"
)

type event struct {
	RelativeTime time.Duration
	Name         string
	Details      gojay.MarshalerJSONObject
}

var _ gojay.MarshalerJSONObject = event{}

func (e event) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Float64Key("time", milliseconds(e.RelativeTime))
	enc.StringKey("name", e.Name)
	enc.ObjectKey("data", e.Details)
}

func (e event) IsNil() bool { return false }

func milliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func encodeAddr(enc *gojay.Encoder, addr netip.AddrPort) {
	if addr.Addr().Unmap().Is4() {
		enc.StringKey("ip_version", "ipv4")
	} else {
		enc.StringKey("ip_version", "ipv6")
	}
	enc.StringKey("ip", addr.Addr().String())
	enc.IntKey("port", int(addr.Port()))
}

type eventAddr struct {
	Addr netip.AddrPort
}

var _ gojay.MarshalerJSONObject = eventAddr{}

func (e eventAddr) MarshalJSONObject(enc *gojay.Encoder) {
	encodeAddr(enc, e.Addr)
}

func (e eventAddr) IsNil() bool { return false }

type eventPacket struct {
	Addr netip.AddrPort
	Size int
}

var _ gojay.MarshalerJSONObject = eventPacket{}

func (e eventPacket) MarshalJSONObject(enc *gojay.Encoder) {
	encodeAddr(enc, e.Addr)
	enc.IntKey("size", e.Size)
}

func (e eventPacket) IsNil() bool { return false }

type eventPacketDropped struct {
	eventPacket
	Reason logging.PacketDropReason
}

var _ gojay.MarshalerJSONObject = eventPacketDropped{}

func (e eventPacketDropped) MarshalJSONObject(enc *gojay.Encoder) {
	e.eventPacket.MarshalJSONObject(enc)
	enc.StringKey("trigger", e.Reason.String())
}

func (e eventPacketDropped) IsNil() bool { return false }

type eventConnectionAccepted struct {
	DCID logging.ConnectionID
	Addr netip.AddrPort
}

var _ gojay.MarshalerJSONObject = eventConnectionAccepted{}

func (e eventConnectionAccepted) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("dcid", e.DCID.String())
	encodeAddr(enc, e.Addr)
}

func (e eventConnectionAccepted) IsNil() bool { return false }

type eventConnectionCollected struct {
	TraceID string
	Stats   logging.ConnectionStats
}

var _ gojay.MarshalerJSONObject = eventConnectionCollected{}

func (e eventConnectionCollected) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("conn", e.TraceID)
	enc.Uint64Key("packets_received", e.Stats.PacketsReceived)
	enc.Uint64Key("packets_sent", e.Stats.PacketsSent)
	enc.Uint64Key("bytes_received", e.Stats.BytesReceived)
	enc.Uint64Key("bytes_sent", e.Stats.BytesSent)
}

func (e eventConnectionCollected) IsNil() bool { return false }
