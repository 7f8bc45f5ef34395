package classic

import "github.com/devblac/ibc-watch/internal/ibc"

type CreateClient struct {
	ClientID        string         `json:"client_id"`
	ClientType      ibc.ClientType `json:"client_type"`
	ConsensusHeight ibc.Height     `json:"consensus_height"`
}

type UpdateClient struct {
	ClientID         string         `json:"client_id"`
	ClientType       ibc.ClientType `json:"client_type"`
	ConsensusHeights []ibc.Height   `json:"consensus_heights"`
}

type ClientMisbehaviour struct {
	ClientID   string         `json:"client_id"`
	ClientType ibc.ClientType `json:"client_type"`
}

type ConnectionOpenInit struct {
	ClientID             string `json:"client_id"`
	ConnectionID         string `json:"connection_id"`
	CounterpartyClientID string `json:"counterparty_client_id"`
}

type ConnectionOpenTry struct {
	ClientID                 string `json:"client_id"`
	ConnectionID             string `json:"connection_id"`
	CounterpartyClientID     string `json:"counterparty_client_id"`
	CounterpartyConnectionID string `json:"counterparty_connection_id"`
}

type ConnectionOpenAck struct {
	ClientID                 string `json:"client_id"`
	ConnectionID             string `json:"connection_id"`
	CounterpartyClientID     string `json:"counterparty_client_id"`
	CounterpartyConnectionID string `json:"counterparty_connection_id"`
}

type ConnectionOpenConfirm struct {
	ClientID                 string `json:"client_id"`
	ConnectionID             string `json:"connection_id"`
	CounterpartyClientID     string `json:"counterparty_client_id"`
	CounterpartyConnectionID string `json:"counterparty_connection_id"`
}

type ChannelOpenInit struct {
	PortID             string        `json:"port_id"`
	ChannelID          string        `json:"channel_id"`
	CounterpartyPortID string        `json:"counterparty_port_id"`
	Connection         ConnectionEnd `json:"connection"`
	Version            string        `json:"version"`
}

type ChannelOpenTry struct {
	PortID                string        `json:"port_id"`
	ChannelID             string        `json:"channel_id"`
	CounterpartyPortID    string        `json:"counterparty_port_id"`
	CounterpartyChannelID string        `json:"counterparty_channel_id"`
	Connection            ConnectionEnd `json:"connection"`
	Version               string        `json:"version"`
}

type ChannelOpenAck struct {
	PortID                string        `json:"port_id"`
	ChannelID             string        `json:"channel_id"`
	CounterpartyPortID    string        `json:"counterparty_port_id"`
	CounterpartyChannelID string        `json:"counterparty_channel_id"`
	Connection            ConnectionEnd `json:"connection"`
	Version               string        `json:"version"`
}

type ChannelOpenConfirm struct {
	PortID                string        `json:"port_id"`
	ChannelID             string        `json:"channel_id"`
	CounterpartyPortID    string        `json:"counterparty_port_id"`
	CounterpartyChannelID string        `json:"counterparty_channel_id"`
	Connection            ConnectionEnd `json:"connection"`
	Version               string        `json:"version"`
}

type SendPacket struct {
	PacketData Bytes          `json:"packet_data"`
	Packet     PacketMetadata `json:"packet"`
}

type RecvPacket struct {
	PacketData Bytes          `json:"packet_data"`
	Packet     PacketMetadata `json:"packet"`
}

type WriteAcknowledgement struct {
	PacketData Bytes          `json:"packet_data"`
	PacketAck  Bytes          `json:"packet_ack"`
	Packet     PacketMetadata `json:"packet"`
}

type AcknowledgePacket struct {
	Packet PacketMetadata `json:"packet"`
}

type TimeoutPacket struct {
	Packet PacketMetadata `json:"packet"`
}

func (CreateClient) EventName() string          { return "create_client" }
func (UpdateClient) EventName() string          { return "update_client" }
func (ClientMisbehaviour) EventName() string    { return "client_misbehaviour" }
func (ConnectionOpenInit) EventName() string    { return "connection_open_init" }
func (ConnectionOpenTry) EventName() string     { return "connection_open_try" }
func (ConnectionOpenAck) EventName() string     { return "connection_open_ack" }
func (ConnectionOpenConfirm) EventName() string { return "connection_open_confirm" }
func (ChannelOpenInit) EventName() string       { return "channel_open_init" }
func (ChannelOpenTry) EventName() string        { return "channel_open_try" }
func (ChannelOpenAck) EventName() string        { return "channel_open_ack" }
func (ChannelOpenConfirm) EventName() string    { return "channel_open_confirm" }
func (SendPacket) EventName() string            { return "send_packet" }
func (RecvPacket) EventName() string            { return "recv_packet" }
func (WriteAcknowledgement) EventName() string  { return "write_acknowledgement" }
func (AcknowledgePacket) EventName() string     { return "acknowledge_packet" }
func (TimeoutPacket) EventName() string         { return "timeout_packet" }

func (CreateClient) Spec() ibc.SpecID          { return SpecID }
func (UpdateClient) Spec() ibc.SpecID          { return SpecID }
func (ClientMisbehaviour) Spec() ibc.SpecID    { return SpecID }
func (ConnectionOpenInit) Spec() ibc.SpecID    { return SpecID }
func (ConnectionOpenTry) Spec() ibc.SpecID     { return SpecID }
func (ConnectionOpenAck) Spec() ibc.SpecID     { return SpecID }
func (ConnectionOpenConfirm) Spec() ibc.SpecID { return SpecID }
func (ChannelOpenInit) Spec() ibc.SpecID       { return SpecID }
func (ChannelOpenTry) Spec() ibc.SpecID        { return SpecID }
func (ChannelOpenAck) Spec() ibc.SpecID        { return SpecID }
func (ChannelOpenConfirm) Spec() ibc.SpecID    { return SpecID }
func (SendPacket) Spec() ibc.SpecID            { return SpecID }
func (RecvPacket) Spec() ibc.SpecID            { return SpecID }
func (WriteAcknowledgement) Spec() ibc.SpecID  { return SpecID }
func (AcknowledgePacket) Spec() ibc.SpecID     { return SpecID }
func (TimeoutPacket) Spec() ibc.SpecID         { return SpecID }
