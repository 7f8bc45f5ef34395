// Package canonical turns native IBC events into canonical chain events by resolving the
// auxiliary state every canonical event carries: the client tracking the counterparty, the
// counterparty chain and the channel metadata on both ends.
package canonical

import (
	"context"
	"errors"
	"fmt"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/native"
	"github.com/devblac/ibc-watch/internal/rpcerr"
	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnsupportedEvent marks native events that have no canonical form.
	ErrUnsupportedEvent = fmt.Errorf("%w: unsupported event", vm.ErrDefect)
	// ErrMissingState is returned when state an event depends on is absent.
	ErrMissingState = errors.New("missing ibc state")
)

// Canonicalizer resolves native events observed on one chain.
type Canonicalizer struct {
	chainID ibc.ChainID
	state   ibc.StateQuerier
}

func New(chainID ibc.ChainID, state ibc.StateQuerier) *Canonicalizer {
	return &Canonicalizer{chainID: chainID, state: state}
}

func (c *Canonicalizer) ChainID() ibc.ChainID { return c.chainID }

// ChainEvent resolves ev, observed at height in transaction txHash. Either a complete event is
// returned or an error; never a partial event.
func (c *Canonicalizer) ChainEvent(ctx context.Context, height ibc.Height, txHash common.Hash, ev native.Event) (ibc.ChainEvent, error) {
	var (
		out ibc.ChainEvent
		err error
	)
	switch e := ev.(type) {
	case native.ClassicEvent:
		out, err = c.classic(ctx, height, e)
	case native.UnionEvent:
		out, err = c.union(ctx, height, e)
	default:
		return ibc.ChainEvent{}, vm.Defect("native event %T belongs to no vocabulary", ev)
	}
	if err != nil {
		return ibc.ChainEvent{}, err
	}
	out.ChainID = c.chainID
	out.TxHash = txHash
	out.ProvableHeight = height.Increment()
	out.SpecID = out.Event.Spec()
	return out, nil
}

// client looks up the client and what it knows about the counterparty at height.
func (c *Canonicalizer) client(ctx context.Context, spec ibc.SpecID, height ibc.Height, clientID string) (ibc.ClientInfo, ibc.ClientMeta, error) {
	info, err := c.state.ClientInfo(ctx, c.chainID, spec, clientID)
	if err != nil {
		return ibc.ClientInfo{}, ibc.ClientMeta{}, err
	}
	meta, err := c.state.ClientMeta(ctx, c.chainID, spec, ibc.AtHeight(height), clientID)
	if err != nil {
		return ibc.ClientInfo{}, ibc.ClientMeta{}, err
	}
	return info, meta, nil
}

// query reads typed state, turning absence into an error that names what was expected.
func query[S any](ctx context.Context, q ibc.StateQuerier, chainID ibc.ChainID, at ibc.QueryHeight, path ibc.Path, what string) (*S, error) {
	v, err := ibc.Query[S](ctx, q, chainID, at, path)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, rpcerr.Wrap("query_ibc_state", what+" must exist", map[string]any{
			"chain_id": chainID.String(),
			"path":     path.String(),
			"height":   at.String(),
		})(ErrMissingState)
	}
	return v, nil
}

func event(info ibc.ClientInfo, meta ibc.ClientMeta, ev ibc.FullEvent) (ibc.ChainEvent, error) {
	return ibc.ChainEvent{
		ClientInfo:          info,
		CounterpartyChainID: meta.ChainID,
		Event:               ev,
	}, nil
}
