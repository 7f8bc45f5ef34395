package wasm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	"github.com/devblac/ibc-watch/internal/metrics"
	"github.com/devblac/ibc-watch/internal/rpcerr"
	"github.com/devblac/ibc-watch/internal/vm"
	"google.golang.org/grpc"
)

// ClientStateTypeURL is the type URL of an 08-wasm client state.
const ClientStateTypeURL = "/ibc.lightclients.wasm.v1.ClientState"

// ClientStates is the client state query of the 02-client gRPC service.
type ClientStates interface {
	ClientState(ctx context.Context, in *clienttypes.QueryClientStateRequest, opts ...grpc.CallOption) (*clienttypes.QueryClientStateResponse, error)
}

// Resolver answers checksum and client type questions for one chain.
type Resolver struct {
	clients ClientStates
	codes   CodeQuerier
	cache   *Cache
	grpcURL string
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewResolver builds a resolver. grpcURL is only used to annotate errors.
func NewResolver(clients ClientStates, codes CodeQuerier, cache *Cache, grpcURL string, log *slog.Logger, m *metrics.Metrics) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{clients: clients, codes: codes, cache: cache, grpcURL: grpcURL, log: log, metrics: m}
}

// ChecksumOfClient returns the checksum of the code run by an 08-wasm client. Asking for a client
// that is not a wasm client is a defect.
func (r *Resolver) ChecksumOfClient(ctx context.Context, clientID string) (Checksum, error) {
	resp, err := r.clients.ClientState(ctx, &clienttypes.QueryClientStateRequest{ClientId: clientID})
	if err != nil {
		return Checksum{}, rpcerr.Wrap("client_state", fmt.Sprintf("error querying client state of %s", clientID), map[string]any{
			"client_id": clientID,
			"grpc_url":  r.grpcURL,
		})(err)
	}
	if resp.ClientState == nil {
		return Checksum{}, fmt.Errorf("client %s has no client state", clientID)
	}
	if resp.ClientState.TypeUrl != ClientStateTypeURL {
		return Checksum{}, vm.Defect("attempted to get the wasm blob checksum of a non-wasm light client %s (type %s)", clientID, resp.ClientState.TypeUrl)
	}
	// ClientState{data = 1, checksum = 2, latest_height = 3}
	raw, err := bytesField(resp.ClientState.Value, 2)
	if err != nil {
		return Checksum{}, fmt.Errorf("decode wasm client state of %s: %w", clientID, err)
	}
	var sum Checksum
	if len(raw) != len(sum) {
		return Checksum{}, fmt.Errorf("wasm client state of %s: checksum has %d bytes", clientID, len(raw))
	}
	copy(sum[:], raw)
	return sum, nil
}

// ClientTypeOfChecksum returns the client type implemented by the code stored under checksum.
// A nil result without error means the code is unknown or declares no client type; neither is
// cached, nor are transport failures.
func (r *Resolver) ClientTypeOfChecksum(ctx context.Context, checksum Checksum) (*ClientType, error) {
	if ct, ok := r.cache.Get(checksum); ok {
		r.metrics.ChecksumHit()
		return &ct, nil
	}
	r.metrics.ChecksumMiss()

	blob, err := r.codes.Code(ctx, checksum)
	if errors.Is(err, ErrCodeNotFound) {
		r.log.Warn("wasm code not found", "checksum", checksum.String())
		return nil, nil
	}
	if err != nil {
		return nil, rpcerr.Wrap("code", "error querying wasm code", map[string]any{
			"checksum": checksum.String(),
			"grpc_url": r.grpcURL,
		})(err)
	}

	parsed, err := ParseClientType(blob)
	if err != nil {
		r.log.Warn("unable to parse wasm client type", "checksum", checksum.String(), "error", err)
		return nil, nil
	}

	stored, err := r.cache.Insert(ctx, checksum, parsed)
	if err != nil {
		// The entry is cached in memory; only persistence failed.
		r.log.Error("persist wasm client type", "checksum", checksum.String(), "error", err)
	}
	return &stored, nil
}

// ClientTypeOfClient chains ChecksumOfClient and ClientTypeOfChecksum.
func (r *Resolver) ClientTypeOfClient(ctx context.Context, clientID string) (*ClientType, error) {
	sum, err := r.ChecksumOfClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return r.ClientTypeOfChecksum(ctx, sum)
}
