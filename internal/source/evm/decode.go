package evm

import (
	"fmt"

	"github.com/devblac/ibc-watch/internal/ibc/union"
	"github.com/devblac/ibc-watch/internal/native"
	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrMalformedLog is returned for a handler log whose topics or data do not match its ABI.
var ErrMalformedLog = fmt.Errorf("%w: malformed log", vm.ErrDefect)

// handlerEvents are the handler events with a native counterpart. Other handler events are
// skipped.
var handlerEvents = []string{
	"CreateClient",
	"UpdateClient",
	"ConnectionOpenInit",
	"ConnectionOpenTry",
	"ConnectionOpenAck",
	"ConnectionOpenConfirm",
	"ChannelOpenInit",
	"ChannelOpenTry",
	"ChannelOpenAck",
	"ChannelOpenConfirm",
	"PacketSend",
	"PacketRecv",
	"WriteAck",
	"PacketAck",
	"PacketTimeout",
}

// Decoder turns logs of one IBC handler contract into native union events.
type Decoder struct {
	address common.Address
	events  map[common.Hash]*abi.Event
}

// NewDecoder builds a decoder for the handler at address. Events found in overrides replace the
// built-in definitions of the same name.
func NewDecoder(address common.Address, overrides map[string]*abi.ABI) (*Decoder, error) {
	builtin, err := HandlerABI()
	if err != nil {
		return nil, err
	}
	events := make(map[common.Hash]*abi.Event, len(handlerEvents))
	for _, name := range handlerEvents {
		ev, ok := FindEvent(overrides, name)
		if !ok {
			e, found := builtin.Events[name]
			if !found {
				return nil, fmt.Errorf("built-in ibc handler abi lacks event %s", name)
			}
			ev = &e
		}
		events[ev.ID] = ev
	}
	return &Decoder{address: address, events: events}, nil
}

// Address is the handler contract the decoder accepts logs from.
func (d *Decoder) Address() common.Address { return d.address }

// Decode returns the native event carried by lg, or nil when lg is not an IBC event of the handler.
func (d *Decoder) Decode(lg types.Log) (native.UnionEvent, error) {
	if lg.Address != d.address || len(lg.Topics) == 0 {
		return nil, nil
	}
	ev, ok := d.events[lg.Topics[0]]
	if !ok {
		return nil, nil
	}

	m := map[string]any{}
	indexed, nonIndexed := splitIndexed(ev.Inputs)
	if err := abi.ParseTopicsIntoMap(m, indexed, lg.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%w: %s: parse topics: %v", ErrMalformedLog, ev.Name, err)
	}
	if err := nonIndexed.UnpackIntoMap(m, lg.Data); err != nil {
		return nil, fmt.Errorf("%w: %s: unpack data: %v", ErrMalformedLog, ev.Name, err)
	}
	a := &args{event: ev.Name, m: m}
	out := a.build()
	if a.err != nil {
		return nil, a.err
	}
	return out, nil
}

func splitIndexed(args abi.Arguments) (indexed abi.Arguments, nonIndexed abi.Arguments) {
	for _, a := range args {
		if a.Indexed {
			indexed = append(indexed, a)
		} else {
			nonIndexed = append(nonIndexed, a)
		}
	}
	return indexed, nonIndexed
}

type args struct {
	event string
	m     map[string]any
	err   error
}

func (a *args) fail(key, format string, v ...any) {
	if a.err == nil {
		a.err = fmt.Errorf("%w: %s.%s: %s", ErrMalformedLog, a.event, key, fmt.Sprintf(format, v...))
	}
}

func get[T any](a *args, key string) T {
	var zero T
	raw, ok := a.m[key]
	if !ok {
		a.fail(key, "missing")
		return zero
	}
	v, ok := raw.(T)
	if !ok {
		a.fail(key, "got %T, want %T", raw, zero)
		return zero
	}
	return v
}

func (a *args) u32(key string) uint32  { return get[uint32](a, key) }
func (a *args) u64(key string) uint64  { return get[uint64](a, key) }
func (a *args) str(key string) string  { return get[string](a, key) }
func (a *args) bytes(key string) []byte { return get[[]byte](a, key) }

func (a *args) port(key string) []byte {
	addr := get[common.Address](a, key)
	return addr.Bytes()
}

func (a *args) packet() union.Packet {
	return union.Packet{
		SourceChannelID:      a.u32("sourceChannelId"),
		DestinationChannelID: a.u32("destinationChannelId"),
		Data:                 a.bytes("data"),
		TimeoutHeight:        a.u64("timeoutHeight"),
		TimeoutTimestamp:     a.u64("timeoutTimestamp"),
	}
}

func (a *args) build() native.UnionEvent {
	switch a.event {
	case "CreateClient":
		return native.UnionCreateClient{
			ClientID:            a.u32("clientId"),
			ClientType:          a.str("clientType"),
			CounterpartyChainID: a.str("counterpartyChainId"),
		}
	case "UpdateClient":
		return native.UnionUpdateClient{
			ClientID:   a.u32("clientId"),
			ClientType: a.str("clientType"),
			Height:     a.u64("height"),
		}
	case "ConnectionOpenInit":
		return native.UnionConnectionOpenInit{
			ConnectionID:         a.u32("connectionId"),
			ClientID:             a.u32("clientId"),
			CounterpartyClientID: a.u32("counterpartyClientId"),
		}
	case "ConnectionOpenTry":
		return native.UnionConnectionOpenTry{
			ConnectionID:             a.u32("connectionId"),
			ClientID:                 a.u32("clientId"),
			CounterpartyClientID:     a.u32("counterpartyClientId"),
			CounterpartyConnectionID: a.u32("counterpartyConnectionId"),
		}
	case "ConnectionOpenAck":
		return native.UnionConnectionOpenAck{
			ConnectionID:             a.u32("connectionId"),
			ClientID:                 a.u32("clientId"),
			CounterpartyClientID:     a.u32("counterpartyClientId"),
			CounterpartyConnectionID: a.u32("counterpartyConnectionId"),
		}
	case "ConnectionOpenConfirm":
		return native.UnionConnectionOpenConfirm{
			ConnectionID:             a.u32("connectionId"),
			ClientID:                 a.u32("clientId"),
			CounterpartyClientID:     a.u32("counterpartyClientId"),
			CounterpartyConnectionID: a.u32("counterpartyConnectionId"),
		}
	case "ChannelOpenInit":
		return native.UnionChannelOpenInit{
			PortID:             a.port("portId"),
			ChannelID:          a.u32("channelId"),
			CounterpartyPortID: a.bytes("counterpartyPortId"),
			ConnectionID:       a.u32("connectionId"),
			Version:            a.str("version"),
		}
	case "ChannelOpenTry":
		return native.UnionChannelOpenTry{
			PortID:                a.port("portId"),
			ChannelID:             a.u32("channelId"),
			CounterpartyPortID:    a.bytes("counterpartyPortId"),
			CounterpartyChannelID: a.u32("counterpartyChannelId"),
			ConnectionID:          a.u32("connectionId"),
			CounterpartyVersion:   a.str("counterpartyVersion"),
		}
	case "ChannelOpenAck":
		return native.UnionChannelOpenAck{
			PortID:                a.port("portId"),
			ChannelID:             a.u32("channelId"),
			CounterpartyPortID:    a.bytes("counterpartyPortId"),
			CounterpartyChannelID: a.u32("counterpartyChannelId"),
			ConnectionID:          a.u32("connectionId"),
		}
	case "ChannelOpenConfirm":
		return native.UnionChannelOpenConfirm{
			PortID:                a.port("portId"),
			ChannelID:             a.u32("channelId"),
			CounterpartyPortID:    a.bytes("counterpartyPortId"),
			CounterpartyChannelID: a.u32("counterpartyChannelId"),
			ConnectionID:          a.u32("connectionId"),
		}
	case "PacketSend":
		return native.UnionPacketSend{Packet: a.packet()}
	case "PacketRecv":
		return native.UnionPacketRecv{Packet: a.packet(), MakerMsg: a.bytes("makerMsg")}
	case "WriteAck":
		return native.UnionWriteAck{Packet: a.packet(), Acknowledgement: a.bytes("acknowledgement")}
	case "PacketAck":
		return native.UnionPacketAck{Packet: a.packet(), Acknowledgement: a.bytes("acknowledgement")}
	case "PacketTimeout":
		return native.UnionPacketTimeout{Packet: a.packet()}
	default:
		a.err = vm.Defect("no native event for handler event %s", a.event)
		return nil
	}
}
