package health

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/devblac/ibc-watch/internal/ibc"
)

// HeadReader reports the latest height a chain node knows of.
type HeadReader interface {
	LatestBlockHeight(ctx context.Context) (ibc.Height, error)
}

// RPCChecker combines the head checks of every watched chain.
type RPCChecker struct {
	chains map[ibc.ChainID]HeadReader
}

// NewRPCChecker creates a checker for the given chains.
func NewRPCChecker(chains map[ibc.ChainID]HeadReader) *RPCChecker {
	return &RPCChecker{chains: chains}
}

// Ping checks all configured chain endpoints and joins every failure.
func (c *RPCChecker) Ping(ctx context.Context) error {
	ids := make([]string, 0, len(c.chains))
	for id := range c.chains {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if _, err := c.chains[ibc.ChainID(id)].LatestBlockHeight(ctx); err != nil {
			errs = append(errs, fmt.Errorf("chain %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
