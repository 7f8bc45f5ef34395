package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/ethereum/go-ethereum/crypto"
)

// Fields flattens a chain event into the namespace rules are evaluated against. Envelope fields
// sit at the top level; the fields of the event itself follow their JSON names, nested objects
// joined with dots (e.g. "packet.source_channel.channel_id").
func Fields(ev ibc.ChainEvent) (map[string]any, error) {
	if ev.Event == nil {
		return nil, fmt.Errorf("chain event on %s has no event", ev.ChainID)
	}
	raw, err := json.Marshal(ev.Event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.Event.EventName(), err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", ev.Event.EventName(), err)
	}

	fields := map[string]any{}
	flatten("", body, fields)
	fields["chain_id"] = ev.ChainID.String()
	fields["counterparty_chain_id"] = ev.CounterpartyChainID.String()
	fields["event"] = ev.Event.EventName()
	fields["spec"] = string(ev.SpecID)
	fields["client_type"] = string(ev.ClientInfo.ClientType)
	fields["ibc_interface"] = ev.ClientInfo.IBCInterface
	fields["tx_hash"] = ev.TxHash.Hex()
	fields["provable_height"] = ev.ProvableHeight.String()
	return fields, nil
}

func flatten(prefix string, v any, out map[string]any) {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, child, out)
		}
	default:
		if prefix != "" {
			out[prefix] = v
		}
	}
}

// Fingerprint identifies an event by its canonical JSON.
func Fingerprint(ev ibc.ChainEvent) (string, []byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", nil, fmt.Errorf("marshal chain event: %w", err)
	}
	return crypto.Keccak256Hash(raw).Hex(), raw, nil
}

var dedupeAliases = map[string]string{
	"txhash": "tx_hash",
	"chain":  "chain_id",
	"height": "provable_height",
}

// buildDedupeKey joins the values of the colon separated field names in pattern. Parts that name
// no field are kept verbatim.
func buildDedupeKey(pattern string, fields map[string]any) string {
	if pattern == "" {
		pattern = "txhash"
	}
	parts := strings.Split(pattern, ":")
	for i, p := range parts {
		name := p
		if alias, ok := dedupeAliases[p]; ok {
			name = alias
		}
		if v, ok := fields[name]; ok {
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, ":")
}
