package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/message"
	"github.com/devblac/ibc-watch/internal/native"
	"github.com/devblac/ibc-watch/internal/rpcerr"
	"github.com/devblac/ibc-watch/internal/vm"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// FetchGetLogs reads the handler logs of one block. When UpTo is set the module stops following
// the chain after that block, otherwise it unfolds indefinitely.
type FetchGetLogs struct {
	BlockNumber uint64
	UpTo        *uint64
}

// MakeFullEvent canonicalizes one decoded handler event.
type MakeFullEvent struct {
	BlockNumber uint64
	TxHash      common.Hash
	Event       native.UnionEvent
}

// RejectLog stands in for a handler log that could not be decoded. Dispatching it fails with a
// defect so only its own branch is dropped.
type RejectLog struct {
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Err         error
}

func (c FetchGetLogs) String() string {
	if c.UpTo != nil {
		return fmt.Sprintf("fetch_get_logs(%d, up to %d)", c.BlockNumber, *c.UpTo)
	}
	return fmt.Sprintf("fetch_get_logs(%d)", c.BlockNumber)
}

func (c MakeFullEvent) String() string {
	return fmt.Sprintf("make_full_event(%d, %s, %s)", c.BlockNumber, c.TxHash.Hex(), c.Event.Name())
}

func (c RejectLog) String() string {
	return fmt.Sprintf("reject_log(%d, %s, %d)", c.BlockNumber, c.TxHash.Hex(), c.LogIndex)
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
		if c.StartHeight.RevisionNumber != 0 {
			return message.Op{}, vm.Defect("fetch blocks on %s: evm heights have no revision, got %s", m.chainID, c.StartHeight)
		}
		return message.ToPlugin(m.Name(), FetchGetLogs{BlockNumber: c.StartHeight.RevisionHeight}), nil
	case message.WaitForHeight:
		return m.waitForHeight(ctx, c)
	case message.PluginMessage:
		switch pc := c.Call.(type) {
		case FetchGetLogs:
			return m.fetchGetLogs(ctx, pc)
		case MakeFullEvent:
			return m.makeFullEvent(ctx, pc)
		case RejectLog:
			return message.Op{}, rpcerr.Wrap("eth_getLogs", "error decoding IBC event", map[string]any{
				"block_number": pc.BlockNumber,
				"tx_hash":      pc.TxHash.Hex(),
				"log_index":    pc.LogIndex,
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

func (m *Module) fetchGetLogs(ctx context.Context, c FetchGetLogs) (message.Op, error) {
	if m.checkpoint != nil {
		if err := m.checkpoint.SaveCheckpoint(ctx, m.chainID, height(c.BlockNumber)); err != nil {
			return message.Op{}, fmt.Errorf("save checkpoint %d: %w", c.BlockNumber, err)
		}
	}
	m.log.Info("fetching logs in block", "height", c.BlockNumber)

	n := new(big.Int).SetUint64(c.BlockNumber)
	logs, err := m.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: n,
		ToBlock:   n,
		Addresses: []common.Address{m.decoder.Address()},
	})
	if err != nil {
		return message.Op{}, rpcerr.Wrap("eth_getLogs", fmt.Sprintf("error fetching logs at block %d", c.BlockNumber), map[string]any{
			"block_number": c.BlockNumber,
			"ibc_handler":  m.decoder.Address().Hex(),
		})(err)
	}
	m.metrics.PageFetched(m.chainID.String())

	var ops []message.Op
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := m.decoder.Decode(lg)
		if err != nil {
			m.log.Error("malformed handler log", "height", c.BlockNumber, "tx_hash", lg.TxHash.Hex(), "log_index", lg.Index, "error", err)
			ops = append(ops, message.ToPlugin(m.Name(), RejectLog{BlockNumber: c.BlockNumber, TxHash: lg.TxHash, LogIndex: lg.Index, Err: err}))
			continue
		}
		if ev == nil {
			continue
		}
		m.log.Debug("observed IBC event", "event", ev.Name(), "tx_hash", lg.TxHash.Hex())
		ops = append(ops, message.ToPlugin(m.Name(), MakeFullEvent{BlockNumber: c.BlockNumber, TxHash: lg.TxHash, Event: ev}))
	}

	if c.UpTo == nil || c.BlockNumber < *c.UpTo {
		next := c.BlockNumber + 1
		ops = append(ops, message.Seq(
			message.Do(message.WaitForHeight{ChainID: m.chainID, Height: height(next), Finalized: true}),
			message.ToPlugin(m.Name(), FetchGetLogs{BlockNumber: next, UpTo: c.UpTo}),
		))
	}
	return message.Conc(ops...), nil
}

func (m *Module) makeFullEvent(ctx context.Context, c MakeFullEvent) (message.Op, error) {
	ev, err := m.canon.ChainEvent(ctx, height(c.BlockNumber), c.TxHash, c.Event)
	if err != nil {
		if !errors.Is(err, vm.ErrDefect) {
			m.log.Error("canonicalize event", "event", c.Event.Name(), "height", c.BlockNumber, "error", err)
		}
		return message.Op{}, err
	}
	m.metrics.EventEmitted(m.chainID.String(), ev.Event.EventName())
	return message.Emit(ev), nil
}
