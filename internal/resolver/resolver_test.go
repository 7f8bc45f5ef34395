package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	grpctypes "github.com/cosmos/cosmos-sdk/types/grpc"
	"github.com/cosmos/gogoproto/proto"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	ibctm "github.com/cosmos/ibc-go/v8/modules/light-clients/07-tendermint"
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/ibc/classic"
	"github.com/devblac/ibc-watch/internal/ibc/union"
	"github.com/devblac/ibc-watch/internal/rpcerr"
	"github.com/devblac/ibc-watch/internal/wasm"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const chainA ibc.ChainID = "chain-a-1"

func pinnedHeight(ctx context.Context) string {
	md, _ := metadata.FromOutgoingContext(ctx)
	if v := md.Get(grpctypes.GRPCBlockHeightHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}

type fakeGRPC struct {
	heights []string
	conns   map[string]*connectiontypes.ConnectionEnd
	state   *codectypes.Any
	err     error
}

func (f *fakeGRPC) Connection(ctx context.Context, in *connectiontypes.QueryConnectionRequest, _ ...grpc.CallOption) (*connectiontypes.QueryConnectionResponse, error) {
	f.heights = append(f.heights, pinnedHeight(ctx))
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.conns[in.ConnectionId]
	if !ok {
		return nil, status.Error(codes.NotFound, "connection not found")
	}
	return &connectiontypes.QueryConnectionResponse{Connection: c}, nil
}

func (f *fakeGRPC) Channel(ctx context.Context, in *channeltypes.QueryChannelRequest, _ ...grpc.CallOption) (*channeltypes.QueryChannelResponse, error) {
	f.heights = append(f.heights, pinnedHeight(ctx))
	if in.ChannelId != "channel-0" {
		return nil, status.Error(codes.NotFound, "channel not found")
	}
	return &channeltypes.QueryChannelResponse{Channel: &channeltypes.Channel{
		State:          channeltypes.OPEN,
		Ordering:       channeltypes.ORDERED,
		Counterparty:   channeltypes.Counterparty{PortId: "transfer", ChannelId: "channel-3"},
		ConnectionHops: []string{"connection-0"},
		Version:        "ics20-1",
	}}, nil
}

func (f *fakeGRPC) ClientState(ctx context.Context, _ *clienttypes.QueryClientStateRequest, _ ...grpc.CallOption) (*clienttypes.QueryClientStateResponse, error) {
	f.heights = append(f.heights, pinnedHeight(ctx))
	return &clienttypes.QueryClientStateResponse{ClientState: f.state}, nil
}

type fakeWasm struct {
	ct  *wasm.ClientType
	err error
}

func (f fakeWasm) ClientTypeOfClient(context.Context, string) (*wasm.ClientType, error) {
	return f.ct, f.err
}

func newTestGRPC(f *fakeGRPC, w WasmClients) *GRPC {
	return &GRPC{
		chainID:     chainA,
		grpcURL:     "localhost:9090",
		connections: f,
		channels:    f,
		clients:     f,
		wasm:        w,
	}
}

func TestGRPCQueryConnection(t *testing.T) {
	ctx := context.Background()
	f := &fakeGRPC{conns: map[string]*connectiontypes.ConnectionEnd{
		"connection-0": {
			ClientId:     "07-tendermint-0",
			State:        connectiontypes.OPEN,
			Counterparty: connectiontypes.Counterparty{ClientId: "07-tendermint-4", ConnectionId: "connection-7"},
		},
	}}
	g := newTestGRPC(f, nil)

	got, err := ibc.Query[classic.ConnectionEnd](ctx, g, chainA, ibc.AtHeight(ibc.NewHeight(1, 120)), classic.ConnectionPath{ConnectionID: "connection-0"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "07-tendermint-0", got.ClientID)
	assert.Equal(t, "STATE_OPEN", got.State)
	assert.Equal(t, "connection-7", got.Counterparty.ConnectionID)

	missing, err := ibc.Query[classic.ConnectionEnd](ctx, g, chainA, ibc.Latest(), classic.ConnectionPath{ConnectionID: "connection-9"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Equal(t, []string{"120", ""}, f.heights)
}

func TestGRPCQueryChannel(t *testing.T) {
	g := newTestGRPC(&fakeGRPC{}, nil)
	got, err := ibc.Query[classic.Channel](context.Background(), g, chainA, ibc.Latest(), classic.ChannelEndPath{PortID: "transfer", ChannelID: "channel-0"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, classic.Order(channeltypes.ORDERED), got.Ordering)
	assert.Equal(t, "channel-3", got.CounterpartyChannelID)
	assert.Equal(t, "ics20-1", got.Version)
}

func TestGRPCTransportErrorCarriesContext(t *testing.T) {
	g := newTestGRPC(&fakeGRPC{err: status.Error(codes.Unavailable, "down")}, nil)
	_, err := g.QueryIBCState(context.Background(), chainA, ibc.Latest(), classic.ConnectionPath{ConnectionID: "connection-0"})
	require.Error(t, err)
	data := rpcerr.DataOf(err)
	assert.Equal(t, "localhost:9090", data["grpc_url"])
	assert.Equal(t, "connections/connection-0", data["path"])
}

func TestGRPCRejectsOtherChainsAndSpecs(t *testing.T) {
	g := newTestGRPC(&fakeGRPC{}, nil)
	_, err := g.QueryIBCState(context.Background(), "chain-b-1", ibc.Latest(), classic.ConnectionPath{ConnectionID: "connection-0"})
	assert.ErrorIs(t, err, ErrWrongChain)

	_, err = g.QueryIBCState(context.Background(), chainA, ibc.Latest(), union.ConnectionPath{ConnectionID: 1})
	assert.ErrorIs(t, err, ErrUnsupportedSpec)
}

func TestGRPCClientInfo(t *testing.T) {
	ctx := context.Background()
	ct := wasm.ClientType("cometbls")

	info, err := newTestGRPC(&fakeGRPC{}, nil).ClientInfo(ctx, chainA, classic.SpecID, "07-tendermint-3")
	require.NoError(t, err)
	assert.Equal(t, ibc.ClientInfo{ClientType: "07-tendermint", IBCInterface: IBCInterfaceNative}, info)

	info, err = newTestGRPC(&fakeGRPC{}, fakeWasm{ct: &ct}).ClientInfo(ctx, chainA, classic.SpecID, "08-wasm-1")
	require.NoError(t, err)
	assert.Equal(t, ibc.ClientInfo{ClientType: "cometbls", IBCInterface: IBCInterfaceWasm}, info)

	_, err = newTestGRPC(&fakeGRPC{}, fakeWasm{}).ClientInfo(ctx, chainA, classic.SpecID, "08-wasm-1")
	assert.Error(t, err)

	_, err = newTestGRPC(&fakeGRPC{}, fakeWasm{err: errors.New("boom")}).ClientInfo(ctx, chainA, classic.SpecID, "08-wasm-1")
	assert.EqualError(t, err, "boom")
}

func TestGRPCClientMeta(t *testing.T) {
	cs := ibctm.ClientState{ChainId: "chain-b-1", LatestHeight: clienttypes.NewHeight(1, 90)}
	raw, err := proto.Marshal(&cs)
	require.NoError(t, err)

	f := &fakeGRPC{state: &codectypes.Any{TypeUrl: tendermintStateTypeURL, Value: raw}}
	meta, err := newTestGRPC(f, nil).ClientMeta(context.Background(), chainA, classic.SpecID, ibc.AtHeight(ibc.NewHeight(1, 33)), "07-tendermint-0")
	require.NoError(t, err)
	assert.Equal(t, ibc.ClientMeta{ChainID: "chain-b-1", CounterpartyHeight: ibc.NewHeight(1, 90)}, meta)
	assert.Equal(t, []string{"33"}, f.heights)

	f = &fakeGRPC{state: &codectypes.Any{TypeUrl: wasm.ClientStateTypeURL}}
	_, err = newTestGRPC(f, nil).ClientMeta(context.Background(), chainA, classic.SpecID, ibc.Latest(), "08-wasm-0")
	assert.ErrorIs(t, err, ErrUnsupportedClientState)
}

// voyagerService is an in-process relayer host.
type voyagerService struct {
	calls []string
}

func (s *voyagerService) QueryIbcState(chainID, spec, height, path string) (map[string]any, error) {
	s.calls = append(s.calls, fmt.Sprintf("%s %s %s %s", chainID, spec, height, path))
	switch path {
	case "connections/2":
		return map[string]any{"height": "0-10", "state": map[string]any{
			"state": "open", "client_id": 1, "counterparty_client_id": 4, "counterparty_connection_id": 5,
		}}, nil
	case "channelEnds/ports/transfer/channels/channel-0":
		return map[string]any{"height": "1-10", "state": map[string]any{
			"state": "STATE_OPEN", "ordering": "ORDER_UNORDERED", "version": "ics20-1",
		}}, nil
	default:
		return map[string]any{"height": "0-10", "state": nil}, nil
	}
}

func (s *voyagerService) ClientInfo(chainID, spec, clientID string) (ibc.ClientInfo, error) {
	if clientID == "404" {
		return ibc.ClientInfo{}, errors.New("client not found")
	}
	return ibc.ClientInfo{ClientType: "cometbls", IBCInterface: "ibc-solidity"}, nil
}

func (s *voyagerService) ClientMeta(chainID, spec, height, clientID string) (ibc.ClientMeta, error) {
	s.calls = append(s.calls, fmt.Sprintf("meta %s %s", height, clientID))
	return ibc.ClientMeta{ChainID: "union-1", CounterpartyHeight: ibc.NewHeight(1, 500)}, nil
}

func newTestJSONRPC(t *testing.T) (*JSONRPC, *voyagerService) {
	t.Helper()
	svc := &voyagerService{}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("voyager", svc))
	client := rpc.DialInProc(server)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return NewJSONRPC(client, "inproc"), svc
}

func TestJSONRPCQueryIBCState(t *testing.T) {
	ctx := context.Background()
	j, svc := newTestJSONRPC(t)

	conn, err := ibc.Query[union.Connection](ctx, j, "eth-1", ibc.AtHeight(ibc.NewHeight(0, 10)), union.ConnectionPath{ConnectionID: 2})
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, union.Connection{State: "open", ClientID: 1, CounterpartyClientID: 4, CounterpartyConnectionID: 5}, *conn)

	ch, err := ibc.Query[classic.Channel](ctx, j, chainA, ibc.Latest(), classic.ChannelEndPath{PortID: "transfer", ChannelID: "channel-0"})
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, classic.Order(channeltypes.UNORDERED), ch.Ordering)

	missing, err := ibc.Query[union.Channel](ctx, j, "eth-1", ibc.Latest(), union.ChannelPath{ChannelID: 9})
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Equal(t, "eth-1 ibc-union 0-10 connections/2", svc.calls[0])
	assert.Equal(t, "chain-a-1 ibc-classic latest channelEnds/ports/transfer/channels/channel-0", svc.calls[1])
}

func TestJSONRPCClients(t *testing.T) {
	ctx := context.Background()
	j, svc := newTestJSONRPC(t)

	info, err := j.ClientInfo(ctx, "eth-1", union.SpecID, "1")
	require.NoError(t, err)
	assert.Equal(t, ibc.ClientType("cometbls"), info.ClientType)

	meta, err := j.ClientMeta(ctx, "eth-1", union.SpecID, ibc.AtHeight(ibc.NewHeight(0, 7)), "1")
	require.NoError(t, err)
	assert.Equal(t, ibc.ChainID("union-1"), meta.ChainID)
	assert.Equal(t, ibc.NewHeight(1, 500), meta.CounterpartyHeight)
	assert.Equal(t, "meta 0-7 1", svc.calls[len(svc.calls)-1])

	_, err = j.ClientInfo(ctx, "eth-1", union.SpecID, "404")
	require.Error(t, err)
	assert.Equal(t, "404", rpcerr.DataOf(err)["client_id"])
	assert.Equal(t, "inproc", rpcerr.DataOf(err)["rpc_url"])
}

type namedBackend struct {
	fakeBackend
	name string
}

type fakeBackend struct{}

func (fakeBackend) QueryIBCState(context.Context, ibc.ChainID, ibc.QueryHeight, ibc.Path) (any, error) {
	return nil, nil
}

func (fakeBackend) ClientInfo(context.Context, ibc.ChainID, ibc.SpecID, string) (ibc.ClientInfo, error) {
	return ibc.ClientInfo{}, nil
}

func (fakeBackend) ClientMeta(context.Context, ibc.ChainID, ibc.SpecID, ibc.QueryHeight, string) (ibc.ClientMeta, error) {
	return ibc.ClientMeta{}, nil
}

func TestRouter(t *testing.T) {
	g := newTestGRPC(&fakeGRPC{}, nil)
	fallback := namedBackend{name: "host"}

	r := NewRouter(fallback)
	r.Register(chainA, g)

	q, err := r.route(chainA, classic.SpecID)
	require.NoError(t, err)
	assert.Same(t, g, q)

	q, err = r.route(chainA, union.SpecID)
	require.NoError(t, err)
	assert.Equal(t, fallback, q, "union state on a cosmos chain goes to the relayer host")

	q, err = r.route("other-1", classic.SpecID)
	require.NoError(t, err)
	assert.Equal(t, fallback, q)

	_, err = NewRouter(nil).route("other-1", classic.SpecID)
	assert.ErrorIs(t, err, ErrUnknownChain)
}

type metaBackend struct {
	fakeBackend
	meta  ibc.ClientMeta
	calls int
}

func (b *metaBackend) ClientMeta(context.Context, ibc.ChainID, ibc.SpecID, ibc.QueryHeight, string) (ibc.ClientMeta, error) {
	b.calls++
	return b.meta, nil
}

func TestRouterClientMetaWasmFallsBack(t *testing.T) {
	f := &fakeGRPC{state: &codectypes.Any{TypeUrl: wasm.ClientStateTypeURL}}
	g := newTestGRPC(f, nil)
	host := &metaBackend{meta: ibc.ClientMeta{ChainID: "union-1", CounterpartyHeight: ibc.NewHeight(1, 500)}}

	r := NewRouter(host)
	r.Register(chainA, g)

	meta, err := r.ClientMeta(context.Background(), chainA, classic.SpecID, ibc.Latest(), "08-wasm-0")
	require.NoError(t, err)
	assert.Equal(t, host.meta, meta)
	assert.Equal(t, 1, host.calls)
	assert.Len(t, f.heights, 1, "the chain backend is asked first")

	alone := NewRouter(nil)
	alone.Register(chainA, g)
	_, err = alone.ClientMeta(context.Background(), chainA, classic.SpecID, ibc.Latest(), "08-wasm-0")
	assert.ErrorIs(t, err, ErrUnsupportedClientState)
}
