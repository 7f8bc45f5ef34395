package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/devblac/ibc-watch/internal/ibc"
)

// ErrUnknownChain is returned for queries against a chain no backend serves.
var ErrUnknownChain = errors.New("no state backend for chain")

// Router dispatches each query to the backend registered for its chain, falling back to a
// default backend (usually a JSON-RPC relayer host) when one is set. Client states a
// backend cannot decode, such as 08-wasm wrapped ones, are retried against the fallback.
type Router struct {
	chains   map[ibc.ChainID]ibc.StateQuerier
	fallback ibc.StateQuerier
}

func NewRouter(fallback ibc.StateQuerier) *Router {
	return &Router{chains: make(map[ibc.ChainID]ibc.StateQuerier), fallback: fallback}
}

// Register must be called before the router is shared.
func (r *Router) Register(chainID ibc.ChainID, q ibc.StateQuerier) {
	r.chains[chainID] = q
}

func (r *Router) route(chainID ibc.ChainID, spec ibc.SpecID) (ibc.StateQuerier, error) {
	if q, ok := r.chains[chainID]; ok {
		if s, ok := q.(interface{ Supports(ibc.SpecID) bool }); !ok || s.Supports(spec) {
			return q, nil
		}
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrUnknownChain, chainID, spec)
}

func (r *Router) QueryIBCState(ctx context.Context, chainID ibc.ChainID, at ibc.QueryHeight, path ibc.Path) (any, error) {
	q, err := r.route(chainID, path.Spec())
	if err != nil {
		return nil, err
	}
	return q.QueryIBCState(ctx, chainID, at, path)
}

func (r *Router) ClientInfo(ctx context.Context, chainID ibc.ChainID, spec ibc.SpecID, clientID string) (ibc.ClientInfo, error) {
	q, err := r.route(chainID, spec)
	if err != nil {
		return ibc.ClientInfo{}, err
	}
	return q.ClientInfo(ctx, chainID, spec, clientID)
}

func (r *Router) ClientMeta(ctx context.Context, chainID ibc.ChainID, spec ibc.SpecID, at ibc.QueryHeight, clientID string) (ibc.ClientMeta, error) {
	q, err := r.route(chainID, spec)
	if err != nil {
		return ibc.ClientMeta{}, err
	}
	meta, err := q.ClientMeta(ctx, chainID, spec, at, clientID)
	if errors.Is(err, ErrUnsupportedClientState) && r.fallback != nil && q != r.fallback {
		return r.fallback.ClientMeta(ctx, chainID, spec, at, clientID)
	}
	return meta, err
}
