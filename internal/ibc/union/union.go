// Package union is the canonical vocabulary of the union IBC protocol. Identifiers are numeric
// and channels carry no ordering.
package union

import (
	"fmt"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const SpecID ibc.SpecID = "ibc-union"

type (
	ClientID     = uint32
	ConnectionID = uint32
	ChannelID    = uint32
)

type ConnectionMetadata struct {
	ClientID     ClientID     `json:"client_id"`
	ConnectionID ConnectionID `json:"connection_id"`
}

type ChannelMetadata struct {
	ChannelID  ChannelID          `json:"channel_id"`
	Version    string             `json:"version"`
	Connection ConnectionMetadata `json:"connection"`
}

type PacketMetadata struct {
	SourceChannel      ChannelMetadata `json:"source_channel"`
	DestinationChannel ChannelMetadata `json:"destination_channel"`
	TimeoutHeight      uint64          `json:"timeout_height"`
	TimeoutTimestamp   uint64          `json:"timeout_timestamp"`
}

// Packet is a packet as committed by the sending chain.
type Packet struct {
	SourceChannelID      ChannelID     `json:"source_channel_id"`
	DestinationChannelID ChannelID     `json:"destination_channel_id"`
	Data                 hexutil.Bytes `json:"data"`
	TimeoutHeight        uint64        `json:"timeout_height"`
	TimeoutTimestamp     uint64        `json:"timeout_timestamp"`
}

// Connection is a connection as stored on chain.
type Connection struct {
	State                    string       `json:"state"`
	ClientID                 ClientID     `json:"client_id"`
	CounterpartyClientID     ClientID     `json:"counterparty_client_id"`
	CounterpartyConnectionID ConnectionID `json:"counterparty_connection_id"`
}

// Channel is a channel as stored on chain.
type Channel struct {
	State                 string        `json:"state"`
	ConnectionID          ConnectionID  `json:"connection_id"`
	CounterpartyChannelID ChannelID     `json:"counterparty_channel_id"`
	CounterpartyPortID    hexutil.Bytes `json:"counterparty_port_id"`
	Version               string        `json:"version"`
}

// ConnectionPath resolves to a Connection.
type ConnectionPath struct {
	ConnectionID ConnectionID
}

func (ConnectionPath) Spec() ibc.SpecID { return SpecID }

func (p ConnectionPath) String() string { return fmt.Sprintf("connections/%d", p.ConnectionID) }

// ChannelPath resolves to a Channel.
type ChannelPath struct {
	ChannelID ChannelID
}

func (ChannelPath) Spec() ibc.SpecID { return SpecID }

func (p ChannelPath) String() string { return fmt.Sprintf("channels/%d", p.ChannelID) }
