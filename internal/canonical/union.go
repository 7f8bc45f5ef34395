package canonical

import (
	"context"
	"strconv"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/ibc/union"
	"github.com/devblac/ibc-watch/internal/native"
	"github.com/devblac/ibc-watch/internal/vm"
)

func (c *Canonicalizer) union(ctx context.Context, height ibc.Height, ev native.UnionEvent) (ibc.ChainEvent, error) {
	switch e := ev.(type) {
	case native.UnionCreateClient:
		return c.unionClientEvent(ctx, height, e.ClientID, union.CreateClient{
			ClientID:   e.ClientID,
			ClientType: ibc.ClientType(e.ClientType),
		})
	case native.UnionUpdateClient:
		// The client type comes from the resolved client, not the log.
		info, meta, err := c.client(ctx, union.SpecID, height, clientIDString(e.ClientID))
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return event(info, meta, union.UpdateClient{
			ClientID:   e.ClientID,
			ClientType: info.ClientType,
			Height:     e.Height,
		})
	case native.UnionConnectionOpenInit:
		return c.unionClientEvent(ctx, height, e.ClientID, union.ConnectionOpenInit{
			ConnectionID:         e.ConnectionID,
			ClientID:             e.ClientID,
			CounterpartyClientID: e.CounterpartyClientID,
		})
	case native.UnionConnectionOpenTry:
		return c.unionClientEvent(ctx, height, e.ClientID, union.ConnectionOpenTry{
			ConnectionID:             e.ConnectionID,
			CounterpartyConnectionID: e.CounterpartyConnectionID,
			ClientID:                 e.ClientID,
			CounterpartyClientID:     e.CounterpartyClientID,
		})
	case native.UnionConnectionOpenAck:
		return c.unionClientEvent(ctx, height, e.ClientID, union.ConnectionOpenAck{
			ConnectionID:             e.ConnectionID,
			CounterpartyConnectionID: e.CounterpartyConnectionID,
			ClientID:                 e.ClientID,
			CounterpartyClientID:     e.CounterpartyClientID,
		})
	case native.UnionConnectionOpenConfirm:
		return c.unionClientEvent(ctx, height, e.ClientID, union.ConnectionOpenConfirm{
			ConnectionID:             e.ConnectionID,
			CounterpartyConnectionID: e.CounterpartyConnectionID,
			ClientID:                 e.ClientID,
			CounterpartyClientID:     e.CounterpartyClientID,
		})

	case native.UnionChannelOpenInit:
		conn, info, meta, err := c.unionConnection(ctx, height, e.ConnectionID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return event(info, meta, union.ChannelOpenInit{
			PortID:             e.PortID,
			ChannelID:          e.ChannelID,
			CounterpartyPortID: e.CounterpartyPortID,
			Connection:         *conn,
			Version:            e.Version,
		})
	case native.UnionChannelOpenTry:
		conn, info, meta, err := c.unionConnection(ctx, height, e.ConnectionID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return event(info, meta, union.ChannelOpenTry{
			PortID:                e.PortID,
			ChannelID:             e.ChannelID,
			CounterpartyPortID:    e.CounterpartyPortID,
			CounterpartyChannelID: e.CounterpartyChannelID,
			Connection:            *conn,
			Version:               e.CounterpartyVersion,
		})
	case native.UnionChannelOpenAck:
		ch, err := c.unionChannel(ctx, height, e.ChannelID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		conn, info, meta, err := c.unionConnection(ctx, height, e.ConnectionID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return event(info, meta, union.ChannelOpenAck{
			PortID:                e.PortID,
			ChannelID:             e.ChannelID,
			CounterpartyPortID:    e.CounterpartyPortID,
			CounterpartyChannelID: e.CounterpartyChannelID,
			Connection:            *conn,
			Version:               ch.Version,
		})
	case native.UnionChannelOpenConfirm:
		ch, err := c.unionChannel(ctx, height, e.ChannelID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		conn, info, meta, err := c.unionConnection(ctx, height, e.ConnectionID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return event(info, meta, union.ChannelOpenConfirm{
			PortID:                e.PortID,
			ChannelID:             e.ChannelID,
			CounterpartyPortID:    e.CounterpartyPortID,
			CounterpartyChannelID: e.CounterpartyChannelID,
			Connection:            *conn,
			Version:               ch.Version,
		})

	case native.UnionPacketSend:
		return c.unionPacketEvent(ctx, height, e.Packet, true, func(m union.PacketMetadata) ibc.FullEvent {
			return union.PacketSend{PacketData: e.Packet.Data, Packet: m}
		})
	case native.UnionPacketAck:
		return c.unionPacketEvent(ctx, height, e.Packet, true, func(m union.PacketMetadata) ibc.FullEvent {
			return union.PacketAck{PacketData: e.Packet.Data, Acknowledgement: e.Acknowledgement, Packet: m}
		})
	case native.UnionPacketTimeout:
		return c.unionPacketEvent(ctx, height, e.Packet, true, func(m union.PacketMetadata) ibc.FullEvent {
			return union.PacketTimeout{PacketData: e.Packet.Data, Packet: m}
		})
	case native.UnionPacketRecv:
		return c.unionPacketEvent(ctx, height, e.Packet, false, func(m union.PacketMetadata) ibc.FullEvent {
			return union.PacketRecv{PacketData: e.Packet.Data, MakerMsg: e.MakerMsg, Packet: m}
		})
	case native.UnionWriteAck:
		return c.unionPacketEvent(ctx, height, e.Packet, false, func(m union.PacketMetadata) ibc.FullEvent {
			return union.WriteAck{PacketData: e.Packet.Data, Acknowledgement: e.Acknowledgement, Packet: m}
		})
	default:
		return ibc.ChainEvent{}, vm.Defect("unknown union event %T", ev)
	}
}

func clientIDString(id union.ClientID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (c *Canonicalizer) unionClientEvent(ctx context.Context, height ibc.Height, clientID union.ClientID, ev ibc.FullEvent) (ibc.ChainEvent, error) {
	info, meta, err := c.client(ctx, union.SpecID, height, clientIDString(clientID))
	if err != nil {
		return ibc.ChainEvent{}, err
	}
	return event(info, meta, ev)
}

func (c *Canonicalizer) unionConnection(ctx context.Context, height ibc.Height, id union.ConnectionID) (*union.Connection, ibc.ClientInfo, ibc.ClientMeta, error) {
	conn, err := query[union.Connection](ctx, c.state, c.chainID, ibc.AtHeight(height), union.ConnectionPath{ConnectionID: id}, "connection")
	if err != nil {
		return nil, ibc.ClientInfo{}, ibc.ClientMeta{}, err
	}
	info, meta, err := c.client(ctx, union.SpecID, height, clientIDString(conn.ClientID))
	if err != nil {
		return nil, ibc.ClientInfo{}, ibc.ClientMeta{}, err
	}
	return conn, info, meta, nil
}

func (c *Canonicalizer) unionChannel(ctx context.Context, height ibc.Height, id union.ChannelID) (*union.Channel, error) {
	return query[union.Channel](ctx, c.state, c.chainID, ibc.AtHeight(height), union.ChannelPath{ChannelID: id}, "channel")
}

// unionPacketEvent resolves the channel this chain owns for the packet. sending selects the
// source channel; otherwise this chain holds the destination channel and the roles swap.
func (c *Canonicalizer) unionPacketEvent(ctx context.Context, height ibc.Height, p union.Packet, sending bool, build func(union.PacketMetadata) ibc.FullEvent) (ibc.ChainEvent, error) {
	selfID, otherID := p.SourceChannelID, p.DestinationChannelID
	if !sending {
		selfID, otherID = otherID, selfID
	}

	ch, err := c.unionChannel(ctx, height, selfID)
	if err != nil {
		return ibc.ChainEvent{}, err
	}
	conn, info, meta, err := c.unionConnection(ctx, height, ch.ConnectionID)
	if err != nil {
		return ibc.ChainEvent{}, err
	}

	self := union.ChannelMetadata{
		ChannelID: selfID,
		Version:   ch.Version,
		Connection: union.ConnectionMetadata{
			ClientID:     conn.ClientID,
			ConnectionID: ch.ConnectionID,
		},
	}
	other := union.ChannelMetadata{
		ChannelID: otherID,
		Version:   ch.Version,
		Connection: union.ConnectionMetadata{
			ClientID:     conn.CounterpartyClientID,
			ConnectionID: conn.CounterpartyConnectionID,
		},
	}
	m := union.PacketMetadata{
		SourceChannel:      self,
		DestinationChannel: other,
		TimeoutHeight:      p.TimeoutHeight,
		TimeoutTimestamp:   p.TimeoutTimestamp,
	}
	if !sending {
		m.SourceChannel, m.DestinationChannel = other, self
	}
	return event(info, meta, build(m))
}
