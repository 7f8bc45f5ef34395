// Package classic is the canonical vocabulary of the ibc-go ("classic") IBC protocol.
package classic

import (
	"fmt"
	"strings"

	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	host "github.com/cosmos/ibc-go/v8/modules/core/24-host"
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const SpecID ibc.SpecID = "ibc-classic"

// Order is a channel ordering. It encodes as the ibc-go enum name.
type Order channeltypes.Order

func (o Order) String() string { return channeltypes.Order(o).String() }

func (o Order) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Order) UnmarshalText(b []byte) error {
	v, ok := channeltypes.Order_value[string(b)]
	if !ok {
		return fmt.Errorf("unknown channel ordering %q", b)
	}
	*o = Order(v)
	return nil
}

// ParseOrder accepts both the enum name and the lower case attribute form ("ORDER_UNORDERED",
// "unordered").
func ParseOrder(s string) (Order, error) {
	if v, ok := channeltypes.Order_value[s]; ok {
		return Order(v), nil
	}
	if v, ok := channeltypes.Order_value["ORDER_"+strings.ToUpper(s)]; ok {
		return Order(v), nil
	}
	return 0, fmt.Errorf("unknown channel ordering %q", s)
}

type ConnectionMetadata struct {
	ClientID     string `json:"client_id"`
	ConnectionID string `json:"connection_id"`
}

type ChannelMetadata struct {
	PortID     string             `json:"port_id"`
	ChannelID  string             `json:"channel_id"`
	Version    string             `json:"version"`
	Connection ConnectionMetadata `json:"connection"`
}

type PacketMetadata struct {
	Sequence           uint64          `json:"sequence"`
	SourceChannel      ChannelMetadata `json:"source_channel"`
	DestinationChannel ChannelMetadata `json:"destination_channel"`
	ChannelOrdering    Order           `json:"channel_ordering"`
	TimeoutHeight      ibc.Height      `json:"timeout_height"`
	TimeoutTimestamp   uint64          `json:"timeout_timestamp"`
}

// Counterparty is the remote end of a connection. ConnectionID is empty until the handshake
// reaches the counterparty.
type Counterparty struct {
	ClientID     string `json:"client_id"`
	ConnectionID string `json:"connection_id,omitempty"`
}

// ConnectionEnd is a connection as stored on chain.
type ConnectionEnd struct {
	ClientID     string       `json:"client_id"`
	State        string       `json:"state"`
	Counterparty Counterparty `json:"counterparty"`
	DelayPeriod  uint64       `json:"delay_period"`
}

// Channel is a channel end as stored on chain.
type Channel struct {
	State                 string   `json:"state"`
	Ordering              Order    `json:"ordering"`
	CounterpartyPortID    string   `json:"counterparty_port_id"`
	CounterpartyChannelID string   `json:"counterparty_channel_id"`
	ConnectionHops        []string `json:"connection_hops"`
	Version               string   `json:"version"`
}

// ConnectionPath resolves to a ConnectionEnd.
type ConnectionPath struct {
	ConnectionID string
}

func (ConnectionPath) Spec() ibc.SpecID { return SpecID }

func (p ConnectionPath) String() string { return host.ConnectionPath(p.ConnectionID) }

// ChannelEndPath resolves to a Channel.
type ChannelEndPath struct {
	PortID    string
	ChannelID string
}

func (ChannelEndPath) Spec() ibc.SpecID { return SpecID }

func (p ChannelEndPath) String() string { return host.ChannelPath(p.PortID, p.ChannelID) }

// Bytes is hex encoded in JSON.
type Bytes = hexutil.Bytes
