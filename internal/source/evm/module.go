// Package evm follows an EVM chain block by block and turns the logs of its union IBC handler
// contract into canonical chain events.
package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/metrics"
	"github.com/devblac/ibc-watch/internal/native"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// PluginPrefix is the plugin name prefix; the full name is "<prefix>/<chain-id>".
const PluginPrefix = "ibc-watch-evm"

// BlockClient captures the subset of ethclient used by the module.
type BlockClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// RPCClient is a thin wrapper over ethclient.Client that satisfies BlockClient.
type RPCClient struct {
	*ethclient.Client
}

// NewRPCClient builds an RPC client to an EVM node.
func NewRPCClient(rpcURL string) (*RPCClient, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	return &RPCClient{Client: c}, nil
}

// Canonicalizer resolves native events into chain events.
type Canonicalizer interface {
	ChainEvent(ctx context.Context, height ibc.Height, txHash common.Hash, ev native.Event) (ibc.ChainEvent, error)
}

// Checkpointer records the height the module is about to follow from.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, chainID ibc.ChainID, height ibc.Height) error
}

// Module is the event source of one EVM chain.
type Module struct {
	chainID    ibc.ChainID
	client     BlockClient
	decoder    *Decoder
	canon      Canonicalizer
	checkpoint Checkpointer
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// Options carries the optional collaborators of a Module.
type Options struct {
	Checkpointer Checkpointer
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// New asks the node for its chain id, which names the chain. When expected is not empty the node
// must report that chain id.
func New(ctx context.Context, client BlockClient, expected ibc.ChainID, decoder *Decoder, canon Canonicalizer, opts Options) (*Module, error) {
	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	chainID := ibc.ChainID(id.String())
	if expected != "" && chainID != expected {
		return nil, fmt.Errorf("node reports chain id %q, configured %q", chainID, expected)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Module{
		chainID:    chainID,
		client:     client,
		decoder:    decoder,
		canon:      canon,
		checkpoint: opts.Checkpointer,
		log:        log.With("chain_id", chainID.String()),
		metrics:    opts.Metrics,
	}, nil
}

func (m *Module) ChainID() ibc.ChainID { return m.chainID }

func (m *Module) Name() string { return PluginPrefix + "/" + m.chainID.String() }

// EVM chains have no revisions.
func height(n uint64) ibc.Height { return ibc.NewHeight(0, n) }

// LatestHeight returns the number of the block tagged finalized.
func (m *Module) LatestHeight(ctx context.Context) (ibc.Height, error) {
	h, err := m.client.HeaderByNumber(ctx, big.NewInt(rpc.FinalizedBlockNumber.Int64()))
	if err != nil {
		return ibc.Height{}, fmt.Errorf("finalized header: %w", err)
	}
	return height(h.Number.Uint64()), nil
}

// LatestBlockHeight returns the number of the latest block.
func (m *Module) LatestBlockHeight(ctx context.Context) (ibc.Height, error) {
	h, err := m.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return ibc.Height{}, fmt.Errorf("latest header: %w", err)
	}
	return height(h.Number.Uint64()), nil
}
