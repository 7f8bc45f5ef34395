package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	"github.com/devblac/ibc-watch/internal/canonical"
	"github.com/devblac/ibc-watch/internal/config"
	"github.com/devblac/ibc-watch/internal/engine"
	"github.com/devblac/ibc-watch/internal/health"
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/message"
	"github.com/devblac/ibc-watch/internal/metrics"
	"github.com/devblac/ibc-watch/internal/resolver"
	"github.com/devblac/ibc-watch/internal/sink"
	"github.com/devblac/ibc-watch/internal/source/cosmos"
	"github.com/devblac/ibc-watch/internal/source/evm"
	"github.com/devblac/ibc-watch/internal/storage"
	"github.com/devblac/ibc-watch/internal/wasm"
	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// chainPlugin is what the CLI needs from an event source.
type chainPlugin interface {
	engine.Plugin
	health.HeadReader
	ChainID() ibc.ChainID
	LatestHeight(ctx context.Context) (ibc.Height, error)
}

// wiring holds every chain plugin and the resources to release on exit.
type wiring struct {
	plugins []chainPlugin
	closers []func() error
}

func (w *wiring) Close() error {
	var errs []error
	for i := len(w.closers) - 1; i >= 0; i-- {
		errs = append(errs, w.closers[i]())
	}
	return errors.Join(errs...)
}

func (w *wiring) enginePlugins() []engine.Plugin {
	out := make([]engine.Plugin, len(w.plugins))
	for i, p := range w.plugins {
		out[i] = p
	}
	return out
}

func (w *wiring) heads() map[ibc.ChainID]health.HeadReader {
	out := make(map[ibc.ChainID]health.HeadReader, len(w.plugins))
	for _, p := range w.plugins {
		out[p.ChainID()] = p
	}
	return out
}

// wireChains dials every configured chain and its state backend.
func wireChains(ctx context.Context, cfg *config.Config, store *storage.Store, log *slog.Logger, mtr *metrics.Metrics) (*wiring, error) {
	w := &wiring{}

	var fallback ibc.StateQuerier
	if cfg.State.VoyagerURL != "" {
		j, err := resolver.DialJSONRPC(ctx, cfg.State.VoyagerURL)
		if err != nil {
			return nil, err
		}
		fallback = j
	}
	router := resolver.NewRouter(fallback)

	for _, ch := range cfg.Chains {
		chainID := ibc.ChainID(ch.ID)
		canon := canonical.New(chainID, router)

		var (
			p   chainPlugin
			err error
		)
		switch strings.ToLower(ch.Type) {
		case config.ChainTypeCosmos:
			if ch.GRPCURL != "" {
				if err := w.registerGRPC(ctx, router, chainID, ch.GRPCURL, store, log, mtr); err != nil {
					_ = w.Close()
					return nil, err
				}
			}
			p, err = newCosmosPlugin(ctx, ch, canon, store, log, mtr)
		case config.ChainTypeEVM:
			p, err = w.newEVMPlugin(ctx, ch, canon, store, log, mtr)
		default:
			err = fmt.Errorf("unsupported chain type: %s", ch.Type)
		}
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("chain %s: %w", ch.ID, err)
		}
		log.Info("chain ready", "chain_id", ch.ID, "plugin", p.Name())
		w.plugins = append(w.plugins, p)
	}
	return w, nil
}

func (w *wiring) registerGRPC(ctx context.Context, router *resolver.Router, chainID ibc.ChainID, grpcURL string, store *storage.Store, log *slog.Logger, mtr *metrics.Metrics) error {
	conn, err := grpc.NewClient(grpcURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial grpc %s: %w", grpcURL, err)
	}
	w.closers = append(w.closers, conn.Close)

	cache := wasm.NewCache()
	if err := cache.Warm(ctx, store); err != nil {
		return err
	}
	wasmClients := wasm.NewResolver(clienttypes.NewQueryClient(conn), wasm.NewGRPCCodeQuerier(conn), cache, grpcURL, log.With("chain_id", chainID.String()), mtr)
	router.Register(chainID, resolver.NewGRPC(chainID, grpcURL, conn, wasmClients))
	return nil
}

func newCosmosPlugin(ctx context.Context, ch config.Chain, canon *canonical.Canonicalizer, store *storage.Store, log *slog.Logger, mtr *metrics.Metrics) (chainPlugin, error) {
	client, err := cosmos.Dial(ch.RPCURL)
	if err != nil {
		return nil, err
	}
	return cosmos.New(ctx, client, ibc.ChainID(ch.ID), canon, cosmos.Options{
		Checkpointer: store,
		Logger:       log,
		Metrics:      mtr,
	})
}

func (w *wiring) newEVMPlugin(ctx context.Context, ch config.Chain, canon *canonical.Canonicalizer, store *storage.Store, log *slog.Logger, mtr *metrics.Metrics) (chainPlugin, error) {
	overrides, err := evm.LoadABIs(ch.ABIDirs)
	if err != nil {
		return nil, err
	}
	decoder, err := evm.NewDecoder(common.HexToAddress(ch.IBCHandler), overrides)
	if err != nil {
		return nil, err
	}
	client, err := evm.NewRPCClient(ch.RPCURL)
	if err != nil {
		return nil, err
	}
	w.closers = append(w.closers, func() error { client.Close(); return nil })
	return evm.New(ctx, client, ibc.ChainID(ch.ID), decoder, canon, evm.Options{
		Checkpointer: store,
		Logger:       log,
		Metrics:      mtr,
	})
}

// startOps returns the FetchBlocks call of every chain: the stored cursor when one exists and
// from is zero, otherwise the configured start height (or from) at the chain's current revision.
func startOps(ctx context.Context, cfg *config.Config, w *wiring, store *storage.Store, from uint64, log *slog.Logger) ([]message.Op, error) {
	chains := make(map[ibc.ChainID]config.Chain, len(cfg.Chains))
	for _, ch := range cfg.Chains {
		chains[ibc.ChainID(ch.ID)] = ch
	}

	var ops []message.Op
	for _, p := range w.plugins {
		chainID := p.ChainID()
		start, err := startHeight(ctx, chains[chainID], p, store, from)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", chainID, err)
		}
		log.Info("following chain", "chain_id", chainID.String(), "start_height", start.String())
		ops = append(ops, message.Do(message.FetchBlocks{ChainID: chainID, StartHeight: start}))
	}
	return ops, nil
}

func startHeight(ctx context.Context, ch config.Chain, p chainPlugin, store *storage.Store, from uint64) (ibc.Height, error) {
	latest, err := p.LatestHeight(ctx)
	if err != nil {
		return ibc.Height{}, fmt.Errorf("latest height: %w", err)
	}
	if from > 0 {
		return ibc.NewHeight(latest.RevisionNumber, from), nil
	}
	cursor, ok, err := store.GetCursor(ctx, p.ChainID())
	if err != nil {
		return ibc.Height{}, err
	}
	if ok {
		return cursor, nil
	}
	n, err := ch.ResolveStartHeight(latest.RevisionHeight)
	if err != nil {
		return ibc.Height{}, err
	}
	if n == 0 {
		n = 1
	}
	return ibc.NewHeight(latest.RevisionNumber, n), nil
}

// buildSinks constructs a sender per configured sink.
func buildSinks(cfg *config.Config, out io.Writer) (map[string]sink.Sender, error) {
	sinks := map[string]sink.Sender{}
	for _, s := range cfg.Sinks {
		var (
			sender sink.Sender
			err    error
		)
		switch s.Type {
		case "slack":
			sender, err = sink.NewSlackSender(s.WebhookURL, s.Template)
		case "teams":
			sender, err = sink.NewTeamsSender(s.WebhookURL, s.Template)
		case "webhook":
			sender, err = sink.NewWebhookSender(s.URL, s.Method, s.Template, s.Headers)
		case "stdout":
			sender = sink.NewWriterSender(out)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", s.ID, err)
		}
		sinks[s.ID] = sender
	}
	return sinks, nil
}
