// Package resolver implements ibc.StateQuerier backends: ibc-go gRPC queries against a cosmos
// node, and a JSON-RPC relayer host that serves every vocabulary.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	grpctypes "github.com/cosmos/cosmos-sdk/types/grpc"
	"github.com/cosmos/gogoproto/proto"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	ibctm "github.com/cosmos/ibc-go/v8/modules/light-clients/07-tendermint"
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/ibc/classic"
	"github.com/devblac/ibc-watch/internal/rpcerr"
	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/devblac/ibc-watch/internal/wasm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	// IBCInterfaceNative is reported for light clients compiled into ibc-go.
	IBCInterfaceNative = "ibc-go-v8/native"

	// IBCInterfaceWasm is reported for 08-wasm light clients.
	IBCInterfaceWasm = "ibc-go-v8/08-wasm"

	wasmClientType         = "08-wasm"
	tendermintStateTypeURL = "/ibc.lightclients.tendermint.v1.ClientState"
)

var (
	ErrUnsupportedSpec        = errors.New("unsupported ibc spec")
	ErrUnsupportedClientState = errors.New("unsupported client state")
	ErrWrongChain             = errors.New("query addressed to another chain")
)

type ConnectionQuerier interface {
	Connection(ctx context.Context, in *connectiontypes.QueryConnectionRequest, opts ...grpc.CallOption) (*connectiontypes.QueryConnectionResponse, error)
}

type ChannelQuerier interface {
	Channel(ctx context.Context, in *channeltypes.QueryChannelRequest, opts ...grpc.CallOption) (*channeltypes.QueryChannelResponse, error)
}

// WasmClients resolves the concrete type of an 08-wasm client.
type WasmClients interface {
	ClientTypeOfClient(ctx context.Context, clientID string) (*wasm.ClientType, error)
}

// GRPC answers classic state queries for a single cosmos chain.
type GRPC struct {
	chainID     ibc.ChainID
	grpcURL     string
	connections ConnectionQuerier
	channels    ChannelQuerier
	clients     wasm.ClientStates
	wasm        WasmClients
}

// NewGRPC builds the ibc-go query clients on conn. wasmClients may be nil on chains without
// 08-wasm.
func NewGRPC(chainID ibc.ChainID, grpcURL string, conn grpc.ClientConnInterface, wasmClients WasmClients) *GRPC {
	return &GRPC{
		chainID:     chainID,
		grpcURL:     grpcURL,
		connections: connectiontypes.NewQueryClient(conn),
		channels:    channeltypes.NewQueryClient(conn),
		clients:     clienttypes.NewQueryClient(conn),
		wasm:        wasmClients,
	}
}

// atHeight pins the query to the state committed at the given height.
func atHeight(ctx context.Context, at ibc.QueryHeight) context.Context {
	h, ok := at.Height()
	if !ok {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, grpctypes.GRPCBlockHeightHeader, strconv.FormatUint(h.RevisionHeight, 10))
}

// Supports reports whether spec can be served over ibc-go gRPC.
func (g *GRPC) Supports(spec ibc.SpecID) bool { return spec == classic.SpecID }

func (g *GRPC) check(chainID ibc.ChainID, spec ibc.SpecID) error {
	if chainID != g.chainID {
		return fmt.Errorf("%w: %s (serving %s)", ErrWrongChain, chainID, g.chainID)
	}
	if !g.Supports(spec) {
		return fmt.Errorf("%w: %s over grpc", ErrUnsupportedSpec, spec)
	}
	return nil
}

func (g *GRPC) wrap(op string, data map[string]any) func(error) error {
	data["chain_id"] = g.chainID.String()
	data["grpc_url"] = g.grpcURL
	return rpcerr.Wrap(op, "error querying "+op, data)
}

func (g *GRPC) QueryIBCState(ctx context.Context, chainID ibc.ChainID, at ibc.QueryHeight, path ibc.Path) (any, error) {
	if err := g.check(chainID, path.Spec()); err != nil {
		return nil, err
	}
	ctx = atHeight(ctx, at)

	switch p := path.(type) {
	case classic.ConnectionPath:
		resp, err := g.connections.Connection(ctx, &connectiontypes.QueryConnectionRequest{ConnectionId: p.ConnectionID})
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		if err != nil {
			return nil, g.wrap("connection", map[string]any{"path": p.String(), "height": at.String()})(err)
		}
		if resp.Connection == nil {
			return nil, nil
		}
		return connectionEnd(resp.Connection), nil
	case classic.ChannelEndPath:
		resp, err := g.channels.Channel(ctx, &channeltypes.QueryChannelRequest{PortId: p.PortID, ChannelId: p.ChannelID})
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		if err != nil {
			return nil, g.wrap("channel", map[string]any{"path": p.String(), "height": at.String()})(err)
		}
		if resp.Channel == nil {
			return nil, nil
		}
		return channel(resp.Channel), nil
	default:
		return nil, vm.Defect("unknown classic path %T", path)
	}
}

func connectionEnd(c *connectiontypes.ConnectionEnd) *classic.ConnectionEnd {
	return &classic.ConnectionEnd{
		ClientID: c.ClientId,
		State:    c.State.String(),
		Counterparty: classic.Counterparty{
			ClientID:     c.Counterparty.ClientId,
			ConnectionID: c.Counterparty.ConnectionId,
		},
		DelayPeriod: c.DelayPeriod,
	}
}

func channel(c *channeltypes.Channel) *classic.Channel {
	return &classic.Channel{
		State:                 c.State.String(),
		Ordering:              classic.Order(c.Ordering),
		CounterpartyPortID:    c.Counterparty.PortId,
		CounterpartyChannelID: c.Counterparty.ChannelId,
		ConnectionHops:        c.ConnectionHops,
		Version:               c.Version,
	}
}

// ClientInfo derives the client type from the client identifier; 08-wasm clients are resolved to
// the light client their code implements.
func (g *GRPC) ClientInfo(ctx context.Context, chainID ibc.ChainID, spec ibc.SpecID, clientID string) (ibc.ClientInfo, error) {
	if err := g.check(chainID, spec); err != nil {
		return ibc.ClientInfo{}, err
	}
	clientType, _, err := clienttypes.ParseClientIdentifier(clientID)
	if err != nil {
		return ibc.ClientInfo{}, vm.Defect("invalid client id %q: %v", clientID, err)
	}
	if clientType != wasmClientType {
		return ibc.ClientInfo{ClientType: ibc.ClientType(clientType), IBCInterface: IBCInterfaceNative}, nil
	}
	if g.wasm == nil {
		return ibc.ClientInfo{}, fmt.Errorf("client %s is an 08-wasm client but wasm resolution is not configured", clientID)
	}
	ct, err := g.wasm.ClientTypeOfClient(ctx, clientID)
	if err != nil {
		return ibc.ClientInfo{}, err
	}
	if ct == nil {
		return ibc.ClientInfo{}, fmt.Errorf("unable to resolve the client type of %s", clientID)
	}
	return ibc.ClientInfo{ClientType: ibc.ClientType(*ct), IBCInterface: IBCInterfaceWasm}, nil
}

// ClientMeta reads the client state at the given height. Only tendermint client states can be
// decoded here.
func (g *GRPC) ClientMeta(ctx context.Context, chainID ibc.ChainID, spec ibc.SpecID, at ibc.QueryHeight, clientID string) (ibc.ClientMeta, error) {
	if err := g.check(chainID, spec); err != nil {
		return ibc.ClientMeta{}, err
	}
	resp, err := g.clients.ClientState(atHeight(ctx, at), &clienttypes.QueryClientStateRequest{ClientId: clientID})
	if err != nil {
		return ibc.ClientMeta{}, g.wrap("client_state", map[string]any{"client_id": clientID, "height": at.String()})(err)
	}
	if resp.ClientState == nil {
		return ibc.ClientMeta{}, fmt.Errorf("client %s has no client state", clientID)
	}
	if resp.ClientState.TypeUrl != tendermintStateTypeURL {
		return ibc.ClientMeta{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedClientState, resp.ClientState.TypeUrl, clientID)
	}
	var cs ibctm.ClientState
	if err := proto.Unmarshal(resp.ClientState.Value, &cs); err != nil {
		return ibc.ClientMeta{}, fmt.Errorf("decode client state of %s: %w", clientID, err)
	}
	return ibc.ClientMeta{
		ChainID:            ibc.ChainID(cs.ChainId),
		CounterpartyHeight: ibc.NewHeight(cs.LatestHeight.RevisionNumber, cs.LatestHeight.RevisionHeight),
	}, nil
}
