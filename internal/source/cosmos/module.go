// Package cosmos follows a CometBFT chain block by block and turns the IBC events in its
// transactions into canonical chain events.
package cosmos

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/metrics"
	"github.com/devblac/ibc-watch/internal/native"
	"github.com/ethereum/go-ethereum/common"
)

// PluginPrefix is the plugin name prefix; the full name is "<prefix>/<chain-id>".
const PluginPrefix = "ibc-watch-cosmos"

// PerPage is the tx_search page size.
const PerPage = 10

// CometClient is the subset of the CometBFT RPC client used by the module.
type CometClient interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	Commit(ctx context.Context, height *int64) (*coretypes.ResultCommit, error)
	TxSearch(ctx context.Context, query string, prove bool, page, perPage *int, orderBy string) (*coretypes.ResultTxSearch, error)
}

// Dial connects to a CometBFT RPC endpoint.
func Dial(rpcURL string) (*rpchttp.HTTP, error) {
	c, err := rpchttp.New(rpcURL, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("dial cometbft rpc: %w", err)
	}
	return c, nil
}

// Canonicalizer resolves native events into chain events.
type Canonicalizer interface {
	ChainEvent(ctx context.Context, height ibc.Height, txHash common.Hash, ev native.Event) (ibc.ChainEvent, error)
}

// Checkpointer records the height the module is about to follow from.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, chainID ibc.ChainID, height ibc.Height) error
}

// ChainIDParseError is returned when the revision cannot be read from a chain id.
type ChainIDParseError struct {
	Found string
	Err   error
}

func (e *ChainIDParseError) Error() string {
	return fmt.Sprintf("unable to parse chain id: expected format `<chain>-<revision-number>`, found `%s`", e.Found)
}

func (e *ChainIDParseError) Unwrap() error { return e.Err }

// ParseRevision reads the revision number from the last dash separated segment of a chain id.
func ParseRevision(chainID string) (uint64, error) {
	i := strings.LastIndex(chainID, "-")
	if i < 0 {
		return 0, &ChainIDParseError{Found: chainID}
	}
	rev, err := strconv.ParseUint(chainID[i+1:], 10, 64)
	if err != nil {
		return 0, &ChainIDParseError{Found: chainID, Err: err}
	}
	return rev, nil
}

// Module is the event source of one cosmos chain.
type Module struct {
	chainID    ibc.ChainID
	revision   uint64
	client     CometClient
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

// New asks the node for its chain id and derives the revision from it. When expected is not
// empty the node must report that chain id.
func New(ctx context.Context, client CometClient, expected ibc.ChainID, canon Canonicalizer, opts Options) (*Module, error) {
	status, err := client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	network := status.NodeInfo.Network
	if expected != "" && ibc.ChainID(network) != expected {
		return nil, fmt.Errorf("node reports chain id %q, configured %q", network, expected)
	}
	revision, err := ParseRevision(network)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Module{
		chainID:    ibc.ChainID(network),
		revision:   revision,
		client:     client,
		canon:      canon,
		checkpoint: opts.Checkpointer,
		log:        log.With("chain_id", network),
		metrics:    opts.Metrics,
	}, nil
}

func (m *Module) ChainID() ibc.ChainID { return m.chainID }

func (m *Module) Name() string { return PluginPrefix + "/" + m.chainID.String() }

func (m *Module) height(h uint64) ibc.Height { return ibc.NewHeight(m.revision, h) }

// LatestHeight returns the latest finalized height: the latest commit height, or the block before
// it when the commit is not canonical yet.
func (m *Module) LatestHeight(ctx context.Context) (ibc.Height, error) {
	res, err := m.client.Commit(ctx, nil)
	if err != nil {
		return ibc.Height{}, fmt.Errorf("commit: %w", err)
	}
	h := uint64(res.SignedHeader.Header.Height)
	if !res.CanonicalCommit {
		m.log.Debug("commit is not canonical, latest finalized height is the previous block")
		h--
	}
	return m.height(h), nil
}

// LatestBlockHeight returns the latest height the node knows of, finalized or not.
func (m *Module) LatestBlockHeight(ctx context.Context) (ibc.Height, error) {
	status, err := m.client.Status(ctx)
	if err != nil {
		return ibc.Height{}, fmt.Errorf("status: %w", err)
	}
	return m.height(uint64(status.SyncInfo.LatestBlockHeight)), nil
}
