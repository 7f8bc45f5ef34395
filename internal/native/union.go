package native

import "github.com/devblac/ibc-watch/internal/ibc/union"

type UnionCreateClient struct {
	unionEvent
	ClientID            union.ClientID
	ClientType          string
	CounterpartyChainID string
}

type UnionUpdateClient struct {
	unionEvent
	ClientID   union.ClientID
	ClientType string
	Height     uint64
}

type UnionConnectionOpenInit struct {
	unionEvent
	ConnectionID         union.ConnectionID
	ClientID             union.ClientID
	CounterpartyClientID union.ClientID
}

type UnionConnectionOpenTry struct {
	unionEvent
	ConnectionID             union.ConnectionID
	ClientID                 union.ClientID
	CounterpartyClientID     union.ClientID
	CounterpartyConnectionID union.ConnectionID
}

type UnionConnectionOpenAck struct {
	unionEvent
	ConnectionID             union.ConnectionID
	ClientID                 union.ClientID
	CounterpartyClientID     union.ClientID
	CounterpartyConnectionID union.ConnectionID
}

type UnionConnectionOpenConfirm struct {
	unionEvent
	ConnectionID             union.ConnectionID
	ClientID                 union.ClientID
	CounterpartyClientID     union.ClientID
	CounterpartyConnectionID union.ConnectionID
}

type UnionChannelOpenInit struct {
	unionEvent
	PortID             []byte
	ChannelID          union.ChannelID
	CounterpartyPortID []byte
	ConnectionID       union.ConnectionID
	Version            string
}

type UnionChannelOpenTry struct {
	unionEvent
	PortID                []byte
	ChannelID             union.ChannelID
	CounterpartyPortID    []byte
	CounterpartyChannelID union.ChannelID
	ConnectionID          union.ConnectionID
	CounterpartyVersion   string
}

type UnionChannelOpenAck struct {
	unionEvent
	PortID                []byte
	ChannelID             union.ChannelID
	CounterpartyPortID    []byte
	CounterpartyChannelID union.ChannelID
	ConnectionID          union.ConnectionID
}

type UnionChannelOpenConfirm struct {
	unionEvent
	PortID                []byte
	ChannelID             union.ChannelID
	CounterpartyPortID    []byte
	CounterpartyChannelID union.ChannelID
	ConnectionID          union.ConnectionID
}

type UnionPacketSend struct {
	unionEvent
	Packet union.Packet
}

type UnionPacketRecv struct {
	unionEvent
	Packet   union.Packet
	MakerMsg []byte
}

type UnionWriteAck struct {
	unionEvent
	Packet          union.Packet
	Acknowledgement []byte
}

type UnionPacketAck struct {
	unionEvent
	Packet          union.Packet
	Acknowledgement []byte
}

type UnionPacketTimeout struct {
	unionEvent
	Packet union.Packet
}

func (UnionCreateClient) Name() string          { return "create_client" }
func (UnionUpdateClient) Name() string          { return "update_client" }
func (UnionConnectionOpenInit) Name() string    { return "connection_open_init" }
func (UnionConnectionOpenTry) Name() string     { return "connection_open_try" }
func (UnionConnectionOpenAck) Name() string     { return "connection_open_ack" }
func (UnionConnectionOpenConfirm) Name() string { return "connection_open_confirm" }
func (UnionChannelOpenInit) Name() string       { return "channel_open_init" }
func (UnionChannelOpenTry) Name() string        { return "channel_open_try" }
func (UnionChannelOpenAck) Name() string        { return "channel_open_ack" }
func (UnionChannelOpenConfirm) Name() string    { return "channel_open_confirm" }
func (UnionPacketSend) Name() string            { return "packet_send" }
func (UnionPacketRecv) Name() string            { return "packet_recv" }
func (UnionWriteAck) Name() string              { return "write_ack" }
func (UnionPacketAck) Name() string             { return "packet_ack" }
func (UnionPacketTimeout) Name() string         { return "packet_timeout" }
