package native

import "github.com/devblac/ibc-watch/internal/ibc"

type CreateClient struct {
	classicEvent
	ClientID        string
	ClientType      string
	ConsensusHeight ibc.Height
}

type UpdateClient struct {
	classicEvent
	ClientID         string
	ClientType       string
	ConsensusHeights []ibc.Height
}

type ClientMisbehaviour struct {
	classicEvent
	ClientID   string
	ClientType string
}

// SubmitEvidence only carries the evidence hash.
type SubmitEvidence struct {
	classicEvent
	EvidenceHash string
}

type ConnectionOpenInit struct {
	classicEvent
	ConnectionID         string
	ClientID             string
	CounterpartyClientID string
}

type ConnectionOpenTry struct {
	classicEvent
	ConnectionID             string
	ClientID                 string
	CounterpartyClientID     string
	CounterpartyConnectionID string
}

type ConnectionOpenAck struct {
	classicEvent
	ConnectionID             string
	ClientID                 string
	CounterpartyClientID     string
	CounterpartyConnectionID string
}

type ConnectionOpenConfirm struct {
	classicEvent
	ConnectionID             string
	ClientID                 string
	CounterpartyClientID     string
	CounterpartyConnectionID string
}

type ChannelOpenInit struct {
	classicEvent
	PortID             string
	ChannelID          string
	CounterpartyPortID string
	ConnectionID       string
	Version            string
}

type ChannelOpenTry struct {
	classicEvent
	PortID                string
	ChannelID             string
	CounterpartyPortID    string
	CounterpartyChannelID string
	ConnectionID          string
	Version               string
}

type ChannelOpenAck struct {
	classicEvent
	PortID                string
	ChannelID             string
	CounterpartyPortID    string
	CounterpartyChannelID string
	ConnectionID          string
}

type ChannelOpenConfirm struct {
	classicEvent
	PortID                string
	ChannelID             string
	CounterpartyPortID    string
	CounterpartyChannelID string
	ConnectionID          string
}

// Packet holds the attributes shared by every packet lifecycle event.
type Packet struct {
	Sequence         uint64
	SrcPort          string
	SrcChannel       string
	DstPort          string
	DstChannel       string
	TimeoutHeight    ibc.Height
	TimeoutTimestamp uint64
	ChannelOrdering  string
	ConnectionID     string
}

type SendPacket struct {
	classicEvent
	Packet
	Data []byte
}

type RecvPacket struct {
	classicEvent
	Packet
	Data []byte
}

type WriteAcknowledgement struct {
	classicEvent
	Packet
	Data []byte
	Ack  []byte
}

type AcknowledgePacket struct {
	classicEvent
	Packet
}

type TimeoutPacket struct {
	classicEvent
	Packet
}

func (CreateClient) Name() string          { return "create_client" }
func (UpdateClient) Name() string          { return "update_client" }
func (ClientMisbehaviour) Name() string    { return "client_misbehaviour" }
func (SubmitEvidence) Name() string        { return "submit_evidence" }
func (ConnectionOpenInit) Name() string    { return "connection_open_init" }
func (ConnectionOpenTry) Name() string     { return "connection_open_try" }
func (ConnectionOpenAck) Name() string     { return "connection_open_ack" }
func (ConnectionOpenConfirm) Name() string { return "connection_open_confirm" }
func (ChannelOpenInit) Name() string       { return "channel_open_init" }
func (ChannelOpenTry) Name() string        { return "channel_open_try" }
func (ChannelOpenAck) Name() string        { return "channel_open_ack" }
func (ChannelOpenConfirm) Name() string    { return "channel_open_confirm" }
func (SendPacket) Name() string            { return "send_packet" }
func (RecvPacket) Name() string            { return "recv_packet" }
func (WriteAcknowledgement) Name() string  { return "write_acknowledgement" }
func (AcknowledgePacket) Name() string     { return "acknowledge_packet" }
func (TimeoutPacket) Name() string         { return "timeout_packet" }
