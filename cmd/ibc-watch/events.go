package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/devblac/ibc-watch/internal/storage"
	"github.com/spf13/cobra"
)

var (
	flagEventsChain  string
	flagEventsName   string
	flagEventsLimit  int
	flagEventsFormat string
)

func init() {
	eventsCmd.Flags().StringVar(&flagEventsChain, "chain", "", "Only events observed on this chain id")
	eventsCmd.Flags().StringVar(&flagEventsName, "name", "", "Only events of this name (e.g. packet_send)")
	eventsCmd.Flags().IntVar(&flagEventsLimit, "limit", 100, "Maximum number of events")
	eventsCmd.Flags().StringVar(&flagEventsFormat, "format", "json", "Output format: json or csv")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Export stored chain events as json lines or csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.ListEvents(cmd.Context(), storage.EventFilter{
			ChainID: flagEventsChain,
			Name:    flagEventsName,
			Limit:   flagEventsLimit,
		})
		if err != nil {
			return err
		}
		switch flagEventsFormat {
		case "json":
			return writeEventsJSON(cmd.OutOrStdout(), events)
		case "csv":
			return writeEventsCSV(cmd.OutOrStdout(), events)
		default:
			return fmt.Errorf("unsupported format %q", flagEventsFormat)
		}
	},
}

// writeEventsJSON writes one stored chain event per line.
func writeEventsJSON(w io.Writer, events []storage.Event) error {
	for _, e := range events {
		if _, err := fmt.Fprintln(w, e.PayloadJSON); err != nil {
			return err
		}
	}
	return nil
}

func writeEventsCSV(w io.Writer, events []storage.Event) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "chain_id", "counterparty_chain_id", "ibc_spec_id", "event", "provable_height", "tx_hash", "created_at", "event_json"})
	for _, e := range events {
		var body struct {
			Event struct {
				Value json.RawMessage `json:"@value"`
			} `json:"event"`
		}
		if err := json.Unmarshal([]byte(e.PayloadJSON), &body); err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
		_ = cw.Write([]string{
			e.ID,
			e.ChainID,
			e.CounterpartyChainID,
			e.SpecID,
			e.Name,
			e.ProvableHeight,
			e.TxHash,
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(body.Event.Value),
		})
	}
	cw.Flush()
	return cw.Error()
}
