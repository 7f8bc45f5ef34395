package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devblac/ibc-watch/internal/config"
	"github.com/devblac/ibc-watch/internal/source/cosmos"
	"github.com/devblac/ibc-watch/internal/source/evm"
	"github.com/spf13/cobra"
)

const defaultRPCTimeout = 8 * time.Second

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config and ping chain RPC endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (version %d)\n", cfg.Version)

		failures := 0
		for _, ch := range cfg.Chains {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultRPCTimeout)
			reported, err := pingChain(ctx, ch)
			cancel()
			if err != nil {
				failures++
				fmt.Fprintf(out, "- chain %s (%s): ERROR %v\n", ch.ID, ch.Type, err)
				continue
			}
			if reported != ch.ID {
				failures++
				fmt.Fprintf(out, "- chain %s (%s): node reports chain id %s\n", ch.ID, ch.Type, reported)
				continue
			}
			fmt.Fprintf(out, "- chain %s (%s): OK\n", ch.ID, ch.Type)
		}

		if failures > 0 {
			return fmt.Errorf("validate: %d chain(s) failed connectivity", failures)
		}

		fmt.Fprintln(out, "validate: success")
		return nil
	},
}

// pingChain returns the chain id the node reports.
func pingChain(ctx context.Context, ch config.Chain) (string, error) {
	switch strings.ToLower(ch.Type) {
	case config.ChainTypeCosmos:
		client, err := cosmos.Dial(ch.RPCURL)
		if err != nil {
			return "", err
		}
		status, err := client.Status(ctx)
		if err != nil {
			return "", fmt.Errorf("status: %w", err)
		}
		return status.NodeInfo.Network, nil
	case config.ChainTypeEVM:
		client, err := evm.NewRPCClient(ch.RPCURL)
		if err != nil {
			return "", err
		}
		defer client.Close()
		id, err := client.ChainID(ctx)
		if err != nil {
			return "", fmt.Errorf("call eth_chainId: %w", err)
		}
		return id.String(), nil
	default:
		return "", fmt.Errorf("unsupported type %s", ch.Type)
	}
}
