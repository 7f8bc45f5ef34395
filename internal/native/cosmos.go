package native

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/ibc/union"
	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Attribute keys of ibc-go events.
const (
	attrClientID                 = "client_id"
	attrClientType               = "client_type"
	attrConsensusHeight          = "consensus_height"
	attrConsensusHeights         = "consensus_heights"
	attrConnectionID             = "connection_id"
	attrCounterpartyClientID     = "counterparty_client_id"
	attrCounterpartyConnectionID = "counterparty_connection_id"
	attrPortID                   = "port_id"
	attrChannelID                = "channel_id"
	attrCounterpartyPortID       = "counterparty_port_id"
	attrCounterpartyChannelID    = "counterparty_channel_id"
	attrVersion                  = "version"
	attrDataHex                  = "packet_data_hex"
	attrAckHex                   = "packet_ack_hex"
	attrTimeoutHeight            = "packet_timeout_height"
	attrTimeoutTimestamp         = "packet_timeout_timestamp"
	attrSequence                 = "packet_sequence"
	attrSrcPort                  = "packet_src_port"
	attrSrcChannel               = "packet_src_channel"
	attrDstPort                  = "packet_dst_port"
	attrDstChannel               = "packet_dst_channel"
	attrChannelOrdering          = "packet_channel_ordering"
	attrPacketConnection         = "packet_connection"
)

// ErrMalformedEvent is returned for an event of a known type whose attributes cannot be read.
var ErrMalformedEvent = fmt.Errorf("%w: malformed event", vm.ErrDefect)

// UnionEventPrefix is prepended by the wasm module to events emitted by the union IBC contract.
const UnionEventPrefix = "wasm-"

// FromCometEvent converts an ABCI event into a native IBC event. Events that are not IBC events
// yield (nil, nil).
func FromCometEvent(ev abci.Event) (Event, error) {
	a := newAttrs(ev)
	if strings.HasPrefix(ev.Type, UnionEventPrefix) {
		return a.union(strings.TrimPrefix(ev.Type, UnionEventPrefix))
	}
	return a.classic(ev.Type)
}

type attrs struct {
	typ string
	m   map[string]string
	err error
}

func newAttrs(ev abci.Event) *attrs {
	m := make(map[string]string, len(ev.Attributes))
	for _, kv := range ev.Attributes {
		m[kv.Key] = kv.Value
	}
	return &attrs{typ: ev.Type, m: m}
}

func (a *attrs) fail(key, format string, args ...any) {
	if a.err == nil {
		a.err = fmt.Errorf("%w: %s.%s: %s", ErrMalformedEvent, a.typ, key, fmt.Sprintf(format, args...))
	}
}

func (a *attrs) str(key string) string {
	v, ok := a.m[key]
	if !ok {
		a.fail(key, "missing attribute")
	}
	return v
}

// opt reads the first present key, without failing.
func (a *attrs) opt(keys ...string) string {
	for _, k := range keys {
		if v, ok := a.m[k]; ok {
			return v
		}
	}
	return ""
}

func (a *attrs) u64(key string) uint64 {
	raw := a.str(key)
	if a.err != nil {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		a.fail(key, "not a number: %q", raw)
	}
	return n
}

func (a *attrs) u32(key string) uint32 {
	raw := a.str(key)
	if a.err != nil {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		a.fail(key, "not a u32: %q", raw)
	}
	return uint32(n)
}

func (a *attrs) height(key string) ibc.Height {
	raw := a.str(key)
	if a.err != nil {
		return ibc.Height{}
	}
	h, err := ibc.ParseHeight(raw)
	if err != nil {
		a.fail(key, "%v", err)
	}
	return h
}

// heights reads a comma separated list, falling back to a single height under fallback.
func (a *attrs) heights(key, fallback string) []ibc.Height {
	raw := a.opt(key, fallback)
	if raw == "" {
		a.fail(key, "missing attribute")
		return nil
	}
	var out []ibc.Height
	for _, part := range strings.Split(raw, ",") {
		h, err := ibc.ParseHeight(strings.TrimSpace(part))
		if err != nil {
			a.fail(key, "%v", err)
			return nil
		}
		out = append(out, h)
	}
	return out
}

func (a *attrs) hex(key string) []byte {
	raw := a.str(key)
	if a.err != nil {
		return nil
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		a.fail(key, "invalid hex")
	}
	return b
}

// prefixedHex reads 0x-prefixed hex as emitted by the union contract.
func (a *attrs) prefixedHex(key string) []byte {
	raw := a.str(key)
	if a.err != nil {
		return nil
	}
	b, err := hexutil.Decode(raw)
	if err != nil {
		a.fail(key, "invalid hex: %v", err)
	}
	return b
}

func (a *attrs) packet() Packet {
	return Packet{
		Sequence:         a.u64(attrSequence),
		SrcPort:          a.str(attrSrcPort),
		SrcChannel:       a.str(attrSrcChannel),
		DstPort:          a.str(attrDstPort),
		DstChannel:       a.str(attrDstChannel),
		TimeoutHeight:    a.height(attrTimeoutHeight),
		TimeoutTimestamp: a.u64(attrTimeoutTimestamp),
		ChannelOrdering:  a.opt(attrChannelOrdering),
		ConnectionID:     a.connectionOfPacket(),
	}
}

func (a *attrs) connectionOfPacket() string {
	// Older ibc-go releases emit packet_connection instead of connection_id.
	v := a.opt(attrConnectionID, attrPacketConnection)
	if v == "" {
		a.fail(attrConnectionID, "missing attribute")
	}
	return v
}

func (a *attrs) classic(typ string) (Event, error) {
	var ev Event
	switch typ {
	case clienttypes.EventTypeCreateClient:
		ev = CreateClient{
			ClientID:        a.str(attrClientID),
			ClientType:      a.str(attrClientType),
			ConsensusHeight: a.height(attrConsensusHeight),
		}
	case clienttypes.EventTypeUpdateClient:
		ev = UpdateClient{
			ClientID:         a.str(attrClientID),
			ClientType:       a.str(attrClientType),
			ConsensusHeights: a.heights(attrConsensusHeights, attrConsensusHeight),
		}
	case clienttypes.EventTypeSubmitMisbehaviour:
		ev = ClientMisbehaviour{
			ClientID:   a.str(attrClientID),
			ClientType: a.str(attrClientType),
		}
	case "submit_evidence":
		ev = SubmitEvidence{EvidenceHash: a.str("evidence_hash")}
	case connectiontypes.EventTypeConnectionOpenInit:
		ev = ConnectionOpenInit{
			ConnectionID:         a.str(attrConnectionID),
			ClientID:             a.str(attrClientID),
			CounterpartyClientID: a.str(attrCounterpartyClientID),
		}
	case connectiontypes.EventTypeConnectionOpenTry:
		ev = ConnectionOpenTry{
			ConnectionID:             a.str(attrConnectionID),
			ClientID:                 a.str(attrClientID),
			CounterpartyClientID:     a.str(attrCounterpartyClientID),
			CounterpartyConnectionID: a.str(attrCounterpartyConnectionID),
		}
	case connectiontypes.EventTypeConnectionOpenAck:
		ev = ConnectionOpenAck{
			ConnectionID:             a.str(attrConnectionID),
			ClientID:                 a.str(attrClientID),
			CounterpartyClientID:     a.str(attrCounterpartyClientID),
			CounterpartyConnectionID: a.str(attrCounterpartyConnectionID),
		}
	case connectiontypes.EventTypeConnectionOpenConfirm:
		ev = ConnectionOpenConfirm{
			ConnectionID:             a.str(attrConnectionID),
			ClientID:                 a.str(attrClientID),
			CounterpartyClientID:     a.str(attrCounterpartyClientID),
			CounterpartyConnectionID: a.str(attrCounterpartyConnectionID),
		}
	case channeltypes.EventTypeChannelOpenInit:
		ev = ChannelOpenInit{
			PortID:             a.str(attrPortID),
			ChannelID:          a.str(attrChannelID),
			CounterpartyPortID: a.str(attrCounterpartyPortID),
			ConnectionID:       a.str(attrConnectionID),
			Version:            a.str(attrVersion),
		}
	case channeltypes.EventTypeChannelOpenTry:
		ev = ChannelOpenTry{
			PortID:                a.str(attrPortID),
			ChannelID:             a.str(attrChannelID),
			CounterpartyPortID:    a.str(attrCounterpartyPortID),
			CounterpartyChannelID: a.str(attrCounterpartyChannelID),
			ConnectionID:          a.str(attrConnectionID),
			Version:               a.str(attrVersion),
		}
	case channeltypes.EventTypeChannelOpenAck:
		ev = ChannelOpenAck{
			PortID:                a.str(attrPortID),
			ChannelID:             a.str(attrChannelID),
			CounterpartyPortID:    a.str(attrCounterpartyPortID),
			CounterpartyChannelID: a.str(attrCounterpartyChannelID),
			ConnectionID:          a.str(attrConnectionID),
		}
	case channeltypes.EventTypeChannelOpenConfirm:
		ev = ChannelOpenConfirm{
			PortID:                a.str(attrPortID),
			ChannelID:             a.str(attrChannelID),
			CounterpartyPortID:    a.str(attrCounterpartyPortID),
			CounterpartyChannelID: a.str(attrCounterpartyChannelID),
			ConnectionID:          a.str(attrConnectionID),
		}
	case channeltypes.EventTypeSendPacket:
		ev = SendPacket{Packet: a.packet(), Data: a.hex(attrDataHex)}
	case channeltypes.EventTypeRecvPacket:
		ev = RecvPacket{Packet: a.packet(), Data: a.hex(attrDataHex)}
	case channeltypes.EventTypeWriteAck:
		ev = WriteAcknowledgement{
			Packet: a.packet(),
			Data:   a.hex(attrDataHex),
			Ack:    a.hex(attrAckHex),
		}
	case channeltypes.EventTypeAcknowledgePacket:
		ev = AcknowledgePacket{Packet: a.packet()}
	case channeltypes.EventTypeTimeoutPacket:
		ev = TimeoutPacket{Packet: a.packet()}
	default:
		return nil, nil
	}
	if a.err != nil {
		return nil, a.err
	}
	return ev, nil
}

func (a *attrs) unionPacket() union.Packet {
	return union.Packet{
		SourceChannelID:      a.u32("packet_source_channel_id"),
		DestinationChannelID: a.u32("packet_destination_channel_id"),
		Data:                 a.prefixedHex("packet_data"),
		TimeoutHeight:        a.u64("packet_timeout_height"),
		TimeoutTimestamp:     a.u64("packet_timeout_timestamp"),
	}
}

func (a *attrs) union(typ string) (Event, error) {
	var ev Event
	switch typ {
	case "create_client":
		ev = UnionCreateClient{
			ClientID:            a.u32("client_id"),
			ClientType:          a.str("client_type"),
			CounterpartyChainID: a.opt("counterparty_chain_id"),
		}
	case "update_client":
		ev = UnionUpdateClient{
			ClientID:   a.u32("client_id"),
			ClientType: a.str("client_type"),
			Height:     a.u64("counterparty_height"),
		}
	case "connection_open_init":
		ev = UnionConnectionOpenInit{
			ConnectionID:         a.u32("connection_id"),
			ClientID:             a.u32("client_id"),
			CounterpartyClientID: a.u32("counterparty_client_id"),
		}
	case "connection_open_try":
		ev = UnionConnectionOpenTry{
			ConnectionID:             a.u32("connection_id"),
			ClientID:                 a.u32("client_id"),
			CounterpartyClientID:     a.u32("counterparty_client_id"),
			CounterpartyConnectionID: a.u32("counterparty_connection_id"),
		}
	case "connection_open_ack":
		ev = UnionConnectionOpenAck{
			ConnectionID:             a.u32("connection_id"),
			ClientID:                 a.u32("client_id"),
			CounterpartyClientID:     a.u32("counterparty_client_id"),
			CounterpartyConnectionID: a.u32("counterparty_connection_id"),
		}
	case "connection_open_confirm":
		ev = UnionConnectionOpenConfirm{
			ConnectionID:             a.u32("connection_id"),
			ClientID:                 a.u32("client_id"),
			CounterpartyClientID:     a.u32("counterparty_client_id"),
			CounterpartyConnectionID: a.u32("counterparty_connection_id"),
		}
	case "channel_open_init":
		ev = UnionChannelOpenInit{
			PortID:             []byte(a.str("port_id")),
			ChannelID:          a.u32("channel_id"),
			CounterpartyPortID: a.prefixedHex("counterparty_port_id"),
			ConnectionID:       a.u32("connection_id"),
			Version:            a.str("version"),
		}
	case "channel_open_try":
		ev = UnionChannelOpenTry{
			PortID:                []byte(a.str("port_id")),
			ChannelID:             a.u32("channel_id"),
			CounterpartyPortID:    a.prefixedHex("counterparty_port_id"),
			CounterpartyChannelID: a.u32("counterparty_channel_id"),
			ConnectionID:          a.u32("connection_id"),
			CounterpartyVersion:   a.str("counterparty_version"),
		}
	case "channel_open_ack":
		ev = UnionChannelOpenAck{
			PortID:                []byte(a.str("port_id")),
			ChannelID:             a.u32("channel_id"),
			CounterpartyPortID:    a.prefixedHex("counterparty_port_id"),
			CounterpartyChannelID: a.u32("counterparty_channel_id"),
			ConnectionID:          a.u32("connection_id"),
		}
	case "channel_open_confirm":
		ev = UnionChannelOpenConfirm{
			PortID:                []byte(a.str("port_id")),
			ChannelID:             a.u32("channel_id"),
			CounterpartyPortID:    a.prefixedHex("counterparty_port_id"),
			CounterpartyChannelID: a.u32("counterparty_channel_id"),
			ConnectionID:          a.u32("connection_id"),
		}
	case "packet_send":
		ev = UnionPacketSend{Packet: a.unionPacket()}
	case "packet_recv":
		ev = UnionPacketRecv{Packet: a.unionPacket(), MakerMsg: a.prefixedHex("maker_msg")}
	case "write_ack":
		ev = UnionWriteAck{Packet: a.unionPacket(), Acknowledgement: a.prefixedHex("acknowledgement")}
	case "packet_ack":
		ev = UnionPacketAck{Packet: a.unionPacket(), Acknowledgement: a.prefixedHex("acknowledgement")}
	case "packet_timeout":
		ev = UnionPacketTimeout{Packet: a.unionPacket()}
	default:
		return nil, nil
	}
	if a.err != nil {
		return nil, a.err
	}
	return ev, nil
}
