package canonical

import (
	"context"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/ibc/classic"
	"github.com/devblac/ibc-watch/internal/native"
	"github.com/devblac/ibc-watch/internal/vm"
)

// packetSides is the resolved context of a classic packet event, already oriented as source and
// destination.
type packetSides struct {
	counterpartyChainID ibc.ChainID
	clientInfo          ibc.ClientInfo
	source              classic.ChannelMetadata
	destination         classic.ChannelMetadata
	ordering            classic.Order
}

func (s packetSides) packet(p native.Packet) classic.PacketMetadata {
	return classic.PacketMetadata{
		Sequence:           p.Sequence,
		SourceChannel:      s.source,
		DestinationChannel: s.destination,
		ChannelOrdering:    s.ordering,
		TimeoutHeight:      p.TimeoutHeight,
		TimeoutTimestamp:   p.TimeoutTimestamp,
	}
}

func (s packetSides) event(ev ibc.FullEvent) (ibc.ChainEvent, error) {
	return ibc.ChainEvent{
		ClientInfo:          s.clientInfo,
		CounterpartyChainID: s.counterpartyChainID,
		Event:               ev,
	}, nil
}

// sendSide resolves a packet event emitted by the sending chain.
func (c *Canonicalizer) sendSide(ctx context.Context, height ibc.Height, p native.Packet) (packetSides, error) {
	m, err := c.packetMetadata(ctx, height, p.ConnectionID, p.SrcPort, p.SrcChannel, p.DstPort, p.DstChannel)
	if err != nil {
		return packetSides{}, err
	}
	return packetSides{
		counterpartyChainID: m.counterpartyChainID,
		clientInfo:          m.clientInfo,
		source:              m.self,
		destination:         m.other,
		ordering:            m.ordering,
	}, nil
}

// recvSide resolves a packet event emitted by the receiving chain.
func (c *Canonicalizer) recvSide(ctx context.Context, height ibc.Height, p native.Packet) (packetSides, error) {
	m, err := c.packetMetadata(ctx, height, p.ConnectionID, p.DstPort, p.DstChannel, p.SrcPort, p.SrcChannel)
	if err != nil {
		return packetSides{}, err
	}
	return packetSides{
		counterpartyChainID: m.counterpartyChainID,
		clientInfo:          m.clientInfo,
		source:              m.other,
		destination:         m.self,
		ordering:            m.ordering,
	}, nil
}

type packetMetadata struct {
	counterpartyChainID ibc.ChainID
	clientInfo          ibc.ClientInfo
	self                classic.ChannelMetadata
	other               classic.ChannelMetadata
	ordering            classic.Order
}

// packetMetadata resolves both channel ends of a packet from the point of view of this chain.
// Own state is read at height; the counterparty channel is read at the counterparty's latest
// height.
func (c *Canonicalizer) packetMetadata(ctx context.Context, height ibc.Height, selfConnectionID, selfPort, selfChannel, otherPort, otherChannel string) (packetMetadata, error) {
	conn, info, meta, err := c.classicConnection(ctx, height, selfConnectionID)
	if err != nil {
		return packetMetadata{}, err
	}
	this, err := c.classicChannel(ctx, ibc.AtHeight(height), c.chainID, selfPort, selfChannel)
	if err != nil {
		return packetMetadata{}, err
	}
	counterparty, err := c.classicChannel(ctx, ibc.Latest(), meta.ChainID, otherPort, otherChannel)
	if err != nil {
		return packetMetadata{}, err
	}
	if conn.Counterparty.ConnectionID == "" {
		return packetMetadata{}, vm.Defect("connection %s on %s is used by channel %s but has no counterparty connection", selfConnectionID, c.chainID, selfChannel)
	}

	return packetMetadata{
		counterpartyChainID: meta.ChainID,
		clientInfo:          info,
		self: classic.ChannelMetadata{
			PortID:    selfPort,
			ChannelID: selfChannel,
			Version:   this.Version,
			Connection: classic.ConnectionMetadata{
				ClientID:     conn.ClientID,
				ConnectionID: selfConnectionID,
			},
		},
		other: classic.ChannelMetadata{
			PortID:    otherPort,
			ChannelID: otherChannel,
			Version:   counterparty.Version,
			Connection: classic.ConnectionMetadata{
				ClientID:     conn.Counterparty.ClientID,
				ConnectionID: conn.Counterparty.ConnectionID,
			},
		},
		ordering: this.Ordering,
	}, nil
}
