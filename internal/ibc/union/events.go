package union

import (
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type CreateClient struct {
	ClientID   ClientID       `json:"client_id"`
	ClientType ibc.ClientType `json:"client_type"`
}

type UpdateClient struct {
	ClientID   ClientID       `json:"client_id"`
	ClientType ibc.ClientType `json:"client_type"`
	Height     uint64         `json:"height"`
}

type ConnectionOpenInit struct {
	ConnectionID         ConnectionID `json:"connection_id"`
	ClientID             ClientID     `json:"client_id"`
	CounterpartyClientID ClientID     `json:"counterparty_client_id"`
}

type ConnectionOpenTry struct {
	ConnectionID             ConnectionID `json:"connection_id"`
	CounterpartyConnectionID ConnectionID `json:"counterparty_connection_id"`
	ClientID                 ClientID     `json:"client_id"`
	CounterpartyClientID     ClientID     `json:"counterparty_client_id"`
}

type ConnectionOpenAck struct {
	ConnectionID             ConnectionID `json:"connection_id"`
	CounterpartyConnectionID ConnectionID `json:"counterparty_connection_id"`
	ClientID                 ClientID     `json:"client_id"`
	CounterpartyClientID     ClientID     `json:"counterparty_client_id"`
}

type ConnectionOpenConfirm struct {
	ConnectionID             ConnectionID `json:"connection_id"`
	CounterpartyConnectionID ConnectionID `json:"counterparty_connection_id"`
	ClientID                 ClientID     `json:"client_id"`
	CounterpartyClientID     ClientID     `json:"counterparty_client_id"`
}

type ChannelOpenInit struct {
	PortID             hexutil.Bytes `json:"port_id"`
	ChannelID          ChannelID     `json:"channel_id"`
	CounterpartyPortID hexutil.Bytes `json:"counterparty_port_id"`
	Connection         Connection    `json:"connection"`
	Version            string        `json:"version"`
}

type ChannelOpenTry struct {
	PortID                hexutil.Bytes `json:"port_id"`
	ChannelID             ChannelID     `json:"channel_id"`
	CounterpartyPortID    hexutil.Bytes `json:"counterparty_port_id"`
	CounterpartyChannelID ChannelID     `json:"counterparty_channel_id"`
	Connection            Connection    `json:"connection"`
	Version               string        `json:"version"`
}

type ChannelOpenAck struct {
	PortID                hexutil.Bytes `json:"port_id"`
	ChannelID             ChannelID     `json:"channel_id"`
	CounterpartyPortID    hexutil.Bytes `json:"counterparty_port_id"`
	CounterpartyChannelID ChannelID     `json:"counterparty_channel_id"`
	Connection            Connection    `json:"connection"`
	Version               string        `json:"version"`
}

type ChannelOpenConfirm struct {
	PortID                hexutil.Bytes `json:"port_id"`
	ChannelID             ChannelID     `json:"channel_id"`
	CounterpartyPortID    hexutil.Bytes `json:"counterparty_port_id"`
	CounterpartyChannelID ChannelID     `json:"counterparty_channel_id"`
	Connection            Connection    `json:"connection"`
	Version               string        `json:"version"`
}

type PacketSend struct {
	PacketData hexutil.Bytes  `json:"packet_data"`
	Packet     PacketMetadata `json:"packet"`
}

type PacketRecv struct {
	PacketData hexutil.Bytes  `json:"packet_data"`
	MakerMsg   hexutil.Bytes  `json:"maker_msg"`
	Packet     PacketMetadata `json:"packet"`
}

type WriteAck struct {
	PacketData      hexutil.Bytes  `json:"packet_data"`
	Acknowledgement hexutil.Bytes  `json:"acknowledgement"`
	Packet          PacketMetadata `json:"packet"`
}

type PacketAck struct {
	PacketData      hexutil.Bytes  `json:"packet_data"`
	Acknowledgement hexutil.Bytes  `json:"acknowledgement"`
	Packet          PacketMetadata `json:"packet"`
}

type PacketTimeout struct {
	PacketData hexutil.Bytes  `json:"packet_data"`
	Packet     PacketMetadata `json:"packet"`
}

func (CreateClient) EventName() string          { return "create_client" }
func (UpdateClient) EventName() string          { return "update_client" }
func (ConnectionOpenInit) EventName() string    { return "connection_open_init" }
func (ConnectionOpenTry) EventName() string     { return "connection_open_try" }
func (ConnectionOpenAck) EventName() string     { return "connection_open_ack" }
func (ConnectionOpenConfirm) EventName() string { return "connection_open_confirm" }
func (ChannelOpenInit) EventName() string       { return "channel_open_init" }
func (ChannelOpenTry) EventName() string        { return "channel_open_try" }
func (ChannelOpenAck) EventName() string        { return "channel_open_ack" }
func (ChannelOpenConfirm) EventName() string    { return "channel_open_confirm" }
func (PacketSend) EventName() string            { return "packet_send" }
func (PacketRecv) EventName() string            { return "packet_recv" }
func (WriteAck) EventName() string              { return "write_ack" }
func (PacketAck) EventName() string             { return "packet_ack" }
func (PacketTimeout) EventName() string         { return "packet_timeout" }

func (CreateClient) Spec() ibc.SpecID          { return SpecID }
func (UpdateClient) Spec() ibc.SpecID          { return SpecID }
func (ConnectionOpenInit) Spec() ibc.SpecID    { return SpecID }
func (ConnectionOpenTry) Spec() ibc.SpecID     { return SpecID }
func (ConnectionOpenAck) Spec() ibc.SpecID     { return SpecID }
func (ConnectionOpenConfirm) Spec() ibc.SpecID { return SpecID }
func (ChannelOpenInit) Spec() ibc.SpecID       { return SpecID }
func (ChannelOpenTry) Spec() ibc.SpecID        { return SpecID }
func (ChannelOpenAck) Spec() ibc.SpecID        { return SpecID }
func (ChannelOpenConfirm) Spec() ibc.SpecID    { return SpecID }
func (PacketSend) Spec() ibc.SpecID            { return SpecID }
func (PacketRecv) Spec() ibc.SpecID            { return SpecID }
func (WriteAck) Spec() ibc.SpecID              { return SpecID }
func (PacketAck) Spec() ibc.SpecID             { return SpecID }
func (PacketTimeout) Spec() ibc.SpecID         { return SpecID }
