// Package ibc holds the chain-agnostic vocabulary shared by every event source: chain identity,
// heights, client descriptors, the canonical ChainEvent and the state query contract.
package ibc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/ethereum/go-ethereum/common"
)

// ChainID is an opaque chain identifier.
type ChainID string

func (c ChainID) String() string { return string(c) }

// SpecID names an IBC vocabulary.
type SpecID string

// ClientType names a light client implementation, e.g. "07-tendermint" or "cometbls".
type ClientType string

// ClientInfo describes the client tracking a counterparty on this chain.
type ClientInfo struct {
	ClientType   ClientType `json:"client_type"`
	IBCInterface string     `json:"ibc_interface"`
}

// ClientMeta is what a client knows about its counterparty at some height.
type ClientMeta struct {
	ChainID            ChainID `json:"chain_id"`
	CounterpartyHeight Height  `json:"counterparty_height"`
}

// FullEvent is a canonical event of one vocabulary.
type FullEvent interface {
	EventName() string
	Spec() SpecID
}

// ChainEvent is the canonical, fully resolved record of an IBC event observed on a chain.
type ChainEvent struct {
	ChainID             ChainID
	ClientInfo          ClientInfo
	CounterpartyChainID ChainID
	TxHash              common.Hash
	// ProvableHeight is the first height at which the state written by the event can be proven.
	ProvableHeight Height
	SpecID         SpecID
	Event          FullEvent
}

type taggedEvent struct {
	Type  string    `json:"@type"`
	Value FullEvent `json:"@value"`
}

type chainEventJSON struct {
	ChainID             ChainID     `json:"chain_id"`
	ClientInfo          ClientInfo  `json:"client_info"`
	CounterpartyChainID ChainID     `json:"counterparty_chain_id"`
	TxHash              common.Hash `json:"tx_hash"`
	ProvableHeight      Height      `json:"provable_height"`
	SpecID              SpecID      `json:"ibc_spec_id"`
	Event               taggedEvent `json:"event"`
}

func (e ChainEvent) MarshalJSON() ([]byte, error) {
	if e.Event == nil {
		return nil, fmt.Errorf("chain event on %s has no event", e.ChainID)
	}
	return json.Marshal(chainEventJSON{
		ChainID:             e.ChainID,
		ClientInfo:          e.ClientInfo,
		CounterpartyChainID: e.CounterpartyChainID,
		TxHash:              e.TxHash,
		ProvableHeight:      e.ProvableHeight,
		SpecID:              e.SpecID,
		Event:               taggedEvent{Type: e.Event.EventName(), Value: e.Event},
	})
}

// Path addresses a piece of IBC state on a chain.
type Path interface {
	Spec() SpecID
	String() string
}

// StateQuerier reads auxiliary IBC state. QueryIBCState returns a nil state when nothing is
// stored at the path.
type StateQuerier interface {
	QueryIBCState(ctx context.Context, chainID ChainID, at QueryHeight, path Path) (any, error)
	ClientInfo(ctx context.Context, chainID ChainID, spec SpecID, clientID string) (ClientInfo, error)
	ClientMeta(ctx context.Context, chainID ChainID, spec SpecID, at QueryHeight, clientID string) (ClientMeta, error)
}

// Query runs a state query and asserts the concrete state type. A nil result means absent.
func Query[S any](ctx context.Context, q StateQuerier, chainID ChainID, at QueryHeight, path Path) (*S, error) {
	raw, err := q.QueryIBCState(ctx, chainID, at, path)
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *S:
		return v, nil
	case S:
		return &v, nil
	default:
		return nil, vm.Defect("state at %s on %s has type %T", path, chainID, raw)
	}
}
