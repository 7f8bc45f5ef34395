package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/devblac/ibc-watch/internal/config"
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/storage"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the stored cursor of every chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		cursors, err := store.ListCursors(cmd.Context())
		if err != nil {
			return err
		}
		if len(cursors) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no cursors stored")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHAIN\tHEIGHT\tUPDATED")
		for _, c := range cursors {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ChainID, c.Height, c.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset <chain-id>",
	Short: "Forget the cursor and stored events of a chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ResetChain(cmd.Context(), ibc.ChainID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateResetCmd)
}

func openStore() (*storage.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := storage.Open(cfg.Global.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}
