package cosmos

import (
	"context"
	"errors"
	"fmt"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/message"
	"github.com/devblac/ibc-watch/internal/native"
	"github.com/devblac/ibc-watch/internal/rpcerr"
	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/ethereum/go-ethereum/common"
)

// FetchBlocks follows the chain from Height onwards.
type FetchBlocks struct {
	Height ibc.Height
}

// FetchTransactions reads one tx_search page of the block at Height. Pages start at 1.
type FetchTransactions struct {
	Height ibc.Height
	Page   int
}

// MakeChainEvent canonicalizes one native event.
type MakeChainEvent struct {
	Height ibc.Height
	TxHash common.Hash
	Event  native.Event
}

// RejectEvent stands in for an event whose attributes could not be read. Dispatching it fails
// with a defect so only its own branch is dropped.
type RejectEvent struct {
	Height ibc.Height
	TxHash common.Hash
	Err    error
}

func (c FetchBlocks) String() string { return fmt.Sprintf("fetch_blocks(%s)", c.Height) }

func (c FetchTransactions) String() string {
	return fmt.Sprintf("fetch_transactions(%s, page %d)", c.Height, c.Page)
}

func (c MakeChainEvent) String() string {
	return fmt.Sprintf("make_chain_event(%s, %s, %s)", c.Height, c.TxHash.Hex(), c.Event.Name())
}

func (c RejectEvent) String() string {
	return fmt.Sprintf("reject_event(%s, %s)", c.Height, c.TxHash.Hex())
}

// Interest claims the core calls addressed to this chain and every call addressed to the module.
func (m *Module) Interest(c message.Call) bool {
	switch c := c.(type) {
	case message.FetchBlocks:
		return c.ChainID == m.chainID
	case message.WaitForHeight:
		return c.ChainID == m.chainID
	case message.PluginMessage:
		return c.Plugin == m.Name()
	default:
		return false
	}
}

func (m *Module) Call(ctx context.Context, c message.Call) (message.Op, error) {
	switch c := c.(type) {
	case message.FetchBlocks:
		return message.ToPlugin(m.Name(), FetchBlocks{Height: c.StartHeight}), nil
	case message.WaitForHeight:
		return m.waitForHeight(ctx, c)
	case message.PluginMessage:
		switch pc := c.Call.(type) {
		case FetchBlocks:
			return m.fetchBlocks(ctx, pc)
		case FetchTransactions:
			return m.fetchTransactions(ctx, pc)
		case MakeChainEvent:
			return m.makeChainEvent(ctx, pc)
		case RejectEvent:
			return message.Op{}, rpcerr.Wrap("tx_search", "error parsing IBC event", map[string]any{
				"height":  pc.Height.String(),
				"tx_hash": pc.TxHash.Hex(),
			})(pc.Err)
		default:
			return message.Op{}, vm.Defect("unknown plugin call %T for %s", c.Call, m.Name())
		}
	default:
		return message.Op{}, vm.Defect("call %T is not handled by %s", c, m.Name())
	}
}

func (m *Module) waitForHeight(ctx context.Context, c message.WaitForHeight) (message.Op, error) {
	var (
		latest ibc.Height
		err    error
	)
	if c.Finalized {
		latest, err = m.LatestHeight(ctx)
	} else {
		latest, err = m.LatestBlockHeight(ctx)
	}
	if err != nil {
		return message.Op{}, err
	}
	cmp, err := latest.Compare(c.Height)
	if err != nil {
		return message.Op{}, vm.Defect("wait for height on %s: %v", m.chainID, err)
	}
	if cmp < 0 {
		return message.Op{}, vm.ErrNotReady
	}
	return message.Noop(), nil
}

func (m *Module) fetchBlocks(ctx context.Context, c FetchBlocks) (message.Op, error) {
	if m.checkpoint != nil {
		if err := m.checkpoint.SaveCheckpoint(ctx, m.chainID, c.Height); err != nil {
			return message.Op{}, fmt.Errorf("save checkpoint %s: %w", c.Height, err)
		}
	}
	next := c.Height.Increment()
	return message.Conc(
		message.ToPlugin(m.Name(), FetchTransactions{Height: c.Height, Page: 1}),
		message.Seq(
			message.Do(message.WaitForHeight{ChainID: m.chainID, Height: next, Finalized: true}),
			message.ToPlugin(m.Name(), FetchBlocks{Height: next}),
		),
	), nil
}

func (m *Module) fetchTransactions(ctx context.Context, c FetchTransactions) (message.Op, error) {
	m.log.Info("fetching events in block", "height", c.Height.String(), "page", c.Page)

	page, perPage := c.Page, PerPage
	res, err := m.client.TxSearch(ctx, fmt.Sprintf("tx.height=%d", c.Height.RevisionHeight), false, &page, &perPage, "desc")
	if err != nil {
		return message.Op{}, rpcerr.Wrap("tx_search", fmt.Sprintf("error fetching transactions at height %s", c.Height), map[string]any{
			"height": c.Height.String(),
		})(err)
	}
	m.metrics.PageFetched(m.chainID.String())

	var ops []message.Op
	for _, tx := range res.Txs {
		hash := common.BytesToHash(tx.Hash)
		for _, ev := range tx.TxResult.Events {
			nev, err := native.FromCometEvent(ev)
			if err != nil {
				m.log.Error("malformed IBC event", "height", c.Height.String(), "tx_hash", hash.Hex(), "error", err)
				ops = append(ops, message.ToPlugin(m.Name(), RejectEvent{Height: c.Height, TxHash: hash, Err: err}))
				continue
			}
			if nev == nil {
				continue
			}
			m.log.Debug("observed IBC event", "event", nev.Name(), "tx_hash", hash.Hex())
			ops = append(ops, message.ToPlugin(m.Name(), MakeChainEvent{Height: c.Height, TxHash: hash, Event: nev}))
		}
	}
	if c.Page*PerPage < res.TotalCount {
		ops = append(ops, message.ToPlugin(m.Name(), FetchTransactions{Height: c.Height, Page: c.Page + 1}))
	}
	return message.Conc(ops...), nil
}

func (m *Module) makeChainEvent(ctx context.Context, c MakeChainEvent) (message.Op, error) {
	ev, err := m.canon.ChainEvent(ctx, c.Height, c.TxHash, c.Event)
	if err != nil {
		if !errors.Is(err, vm.ErrDefect) {
			m.log.Error("canonicalize event", "event", c.Event.Name(), "height", c.Height.String(), "error", err)
		}
		return message.Op{}, err
	}
	m.metrics.EventEmitted(m.chainID.String(), ev.Event.EventName())
	return message.Emit(ev), nil
}
