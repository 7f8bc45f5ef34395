package canonical

import (
	"context"
	"fmt"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/ibc/classic"
	"github.com/devblac/ibc-watch/internal/native"
	"github.com/devblac/ibc-watch/internal/vm"
)

func (c *Canonicalizer) classic(ctx context.Context, height ibc.Height, ev native.ClassicEvent) (ibc.ChainEvent, error) {
	switch e := ev.(type) {
	case native.CreateClient:
		return c.classicClientEvent(ctx, height, e.ClientID, classic.CreateClient{
			ClientID:        e.ClientID,
			ClientType:      ibc.ClientType(e.ClientType),
			ConsensusHeight: e.ConsensusHeight,
		})
	case native.UpdateClient:
		return c.classicClientEvent(ctx, height, e.ClientID, classic.UpdateClient{
			ClientID:         e.ClientID,
			ClientType:       ibc.ClientType(e.ClientType),
			ConsensusHeights: e.ConsensusHeights,
		})
	case native.ClientMisbehaviour:
		return c.classicClientEvent(ctx, height, e.ClientID, classic.ClientMisbehaviour{
			ClientID:   e.ClientID,
			ClientType: ibc.ClientType(e.ClientType),
		})
	case native.SubmitEvidence:
		return ibc.ChainEvent{}, fmt.Errorf("%w: submit_evidence (hash %s)", ErrUnsupportedEvent, e.EvidenceHash)

	case native.ConnectionOpenInit:
		return c.classicClientEvent(ctx, height, e.ClientID, classic.ConnectionOpenInit{
			ClientID:             e.ClientID,
			ConnectionID:         e.ConnectionID,
			CounterpartyClientID: e.CounterpartyClientID,
		})
	case native.ConnectionOpenTry:
		return c.classicClientEvent(ctx, height, e.ClientID, classic.ConnectionOpenTry{
			ClientID:                 e.ClientID,
			ConnectionID:             e.ConnectionID,
			CounterpartyClientID:     e.CounterpartyClientID,
			CounterpartyConnectionID: e.CounterpartyConnectionID,
		})
	case native.ConnectionOpenAck:
		return c.classicClientEvent(ctx, height, e.ClientID, classic.ConnectionOpenAck{
			ClientID:                 e.ClientID,
			ConnectionID:             e.ConnectionID,
			CounterpartyClientID:     e.CounterpartyClientID,
			CounterpartyConnectionID: e.CounterpartyConnectionID,
		})
	case native.ConnectionOpenConfirm:
		return c.classicClientEvent(ctx, height, e.ClientID, classic.ConnectionOpenConfirm{
			ClientID:                 e.ClientID,
			ConnectionID:             e.ConnectionID,
			CounterpartyClientID:     e.CounterpartyClientID,
			CounterpartyConnectionID: e.CounterpartyConnectionID,
		})

	case native.ChannelOpenInit:
		conn, info, meta, err := c.classicConnection(ctx, height, e.ConnectionID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return event(info, meta, classic.ChannelOpenInit{
			PortID:             e.PortID,
			ChannelID:          e.ChannelID,
			CounterpartyPortID: e.CounterpartyPortID,
			Connection:         *conn,
			Version:            e.Version,
		})
	case native.ChannelOpenTry:
		conn, info, meta, err := c.classicConnection(ctx, height, e.ConnectionID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return event(info, meta, classic.ChannelOpenTry{
			PortID:                e.PortID,
			ChannelID:             e.ChannelID,
			CounterpartyPortID:    e.CounterpartyPortID,
			CounterpartyChannelID: e.CounterpartyChannelID,
			Connection:            *conn,
			Version:               e.Version,
		})
	case native.ChannelOpenAck:
		conn, info, meta, err := c.classicConnection(ctx, height, e.ConnectionID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		ch, err := c.classicChannel(ctx, ibc.AtHeight(height), c.chainID, e.PortID, e.ChannelID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return event(info, meta, classic.ChannelOpenAck{
			PortID:                e.PortID,
			ChannelID:             e.ChannelID,
			CounterpartyPortID:    e.CounterpartyPortID,
			CounterpartyChannelID: e.CounterpartyChannelID,
			Connection:            *conn,
			Version:               ch.Version,
		})
	case native.ChannelOpenConfirm:
		conn, info, meta, err := c.classicConnection(ctx, height, e.ConnectionID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		ch, err := c.classicChannel(ctx, ibc.AtHeight(height), c.chainID, e.PortID, e.ChannelID)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return event(info, meta, classic.ChannelOpenConfirm{
			PortID:                e.PortID,
			ChannelID:             e.ChannelID,
			CounterpartyPortID:    e.CounterpartyPortID,
			CounterpartyChannelID: e.CounterpartyChannelID,
			Connection:            *conn,
			Version:               ch.Version,
		})

	case native.SendPacket:
		sides, err := c.sendSide(ctx, height, e.Packet)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return sides.event(classic.SendPacket{
			PacketData: e.Data,
			Packet:     sides.packet(e.Packet),
		})
	case native.TimeoutPacket:
		sides, err := c.sendSide(ctx, height, e.Packet)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return sides.event(classic.TimeoutPacket{Packet: sides.packet(e.Packet)})
	case native.AcknowledgePacket:
		sides, err := c.sendSide(ctx, height, e.Packet)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return sides.event(classic.AcknowledgePacket{Packet: sides.packet(e.Packet)})
	case native.RecvPacket:
		sides, err := c.recvSide(ctx, height, e.Packet)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return sides.event(classic.RecvPacket{
			PacketData: e.Data,
			Packet:     sides.packet(e.Packet),
		})
	case native.WriteAcknowledgement:
		sides, err := c.recvSide(ctx, height, e.Packet)
		if err != nil {
			return ibc.ChainEvent{}, err
		}
		return sides.event(classic.WriteAcknowledgement{
			PacketData: e.Data,
			PacketAck:  e.Ack,
			Packet:     sides.packet(e.Packet),
		})
	default:
		return ibc.ChainEvent{}, vm.Defect("unknown classic event %T", ev)
	}
}

func (c *Canonicalizer) classicClientEvent(ctx context.Context, height ibc.Height, clientID string, ev ibc.FullEvent) (ibc.ChainEvent, error) {
	info, meta, err := c.client(ctx, classic.SpecID, height, clientID)
	if err != nil {
		return ibc.ChainEvent{}, err
	}
	return event(info, meta, ev)
}

// classicConnection reads a connection at height together with the client it is built on.
func (c *Canonicalizer) classicConnection(ctx context.Context, height ibc.Height, connectionID string) (*classic.ConnectionEnd, ibc.ClientInfo, ibc.ClientMeta, error) {
	conn, err := query[classic.ConnectionEnd](ctx, c.state, c.chainID, ibc.AtHeight(height), classic.ConnectionPath{ConnectionID: connectionID}, "connection")
	if err != nil {
		return nil, ibc.ClientInfo{}, ibc.ClientMeta{}, err
	}
	info, meta, err := c.client(ctx, classic.SpecID, height, conn.ClientID)
	if err != nil {
		return nil, ibc.ClientInfo{}, ibc.ClientMeta{}, err
	}
	return conn, info, meta, nil
}

func (c *Canonicalizer) classicChannel(ctx context.Context, at ibc.QueryHeight, chainID ibc.ChainID, portID, channelID string) (*classic.Channel, error) {
	return query[classic.Channel](ctx, c.state, chainID, at, classic.ChannelEndPath{PortID: portID, ChannelID: channelID}, "channel")
}
