package resolver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/ibc/classic"
	"github.com/devblac/ibc-watch/internal/ibc/union"
	"github.com/devblac/ibc-watch/internal/rpcerr"
	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	methodQueryIBCState = "voyager_queryIbcState"
	methodClientInfo    = "voyager_clientInfo"
	methodClientMeta    = "voyager_clientMeta"
)

// Caller is the subset of *rpc.Client used here.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// JSONRPC queries a relayer host for state of any chain and vocabulary it tracks.
type JSONRPC struct {
	client Caller
	url    string
}

// DialJSONRPC connects to the relayer host at url.
func DialJSONRPC(ctx context.Context, url string) (*JSONRPC, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewJSONRPC(c, url), nil
}

func NewJSONRPC(client Caller, url string) *JSONRPC {
	return &JSONRPC{client: client, url: url}
}

type stateResponse struct {
	Height string          `json:"height"`
	State  json.RawMessage `json:"state"`
}

func (j *JSONRPC) wrap(method string, data map[string]any) func(error) error {
	data["rpc_url"] = j.url
	return rpcerr.Wrap(method, "error calling "+method, data)
}

func (j *JSONRPC) QueryIBCState(ctx context.Context, chainID ibc.ChainID, at ibc.QueryHeight, path ibc.Path) (any, error) {
	var resp stateResponse
	err := j.client.CallContext(ctx, &resp, methodQueryIBCState, chainID, path.Spec(), at, path.String())
	if err != nil {
		return nil, j.wrap(methodQueryIBCState, map[string]any{
			"chain_id": chainID.String(),
			"path":     path.String(),
			"height":   at.String(),
		})(err)
	}
	if len(resp.State) == 0 || string(resp.State) == "null" {
		return nil, nil
	}

	switch path.(type) {
	case classic.ConnectionPath:
		return decodeState[classic.ConnectionEnd](path, resp.State)
	case classic.ChannelEndPath:
		return decodeState[classic.Channel](path, resp.State)
	case union.ConnectionPath:
		return decodeState[union.Connection](path, resp.State)
	case union.ChannelPath:
		return decodeState[union.Channel](path, resp.State)
	default:
		return nil, vm.Defect("unknown path %T", path)
	}
}

func decodeState[S any](path ibc.Path, raw json.RawMessage) (any, error) {
	var s S
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode state at %s: %w", path, err)
	}
	return &s, nil
}

func (j *JSONRPC) ClientInfo(ctx context.Context, chainID ibc.ChainID, spec ibc.SpecID, clientID string) (ibc.ClientInfo, error) {
	var info ibc.ClientInfo
	if err := j.client.CallContext(ctx, &info, methodClientInfo, chainID, spec, clientID); err != nil {
		return ibc.ClientInfo{}, j.wrap(methodClientInfo, map[string]any{
			"chain_id":  chainID.String(),
			"client_id": clientID,
		})(err)
	}
	return info, nil
}

func (j *JSONRPC) ClientMeta(ctx context.Context, chainID ibc.ChainID, spec ibc.SpecID, at ibc.QueryHeight, clientID string) (ibc.ClientMeta, error) {
	var meta ibc.ClientMeta
	if err := j.client.CallContext(ctx, &meta, methodClientMeta, chainID, spec, at, clientID); err != nil {
		return ibc.ClientMeta{}, j.wrap(methodClientMeta, map[string]any{
			"chain_id":  chainID.String(),
			"client_id": clientID,
			"height":    at.String(),
		})(err)
	}
	return meta, nil
}
