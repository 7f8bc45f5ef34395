package engine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/devblac/ibc-watch/internal/ibc"
)

func TestCompilePredicates_NumericComparisons(t *testing.T) {
	preds, err := CompilePredicates([]string{"packet.sequence > 10", "packet.sequence < 20"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	args := map[string]any{"packet.sequence": json.Number("15")}
	for _, p := range preds {
		ok, err := p(args)
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		if !ok {
			t.Fatalf("expected predicate to pass")
		}
	}
}

func TestCompilePredicates_InAndContains(t *testing.T) {
	preds, err := CompilePredicates([]string{"counterparty_chain_id in union-testnet-9,11155111", "client_type contains tendermint"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	args := map[string]any{"counterparty_chain_id": "11155111", "client_type": "07-tendermint"}
	for _, p := range preds {
		ok, err := p(args)
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		if !ok {
			t.Fatalf("expected predicate to pass")
		}
	}
}

func TestCompilePredicates_StringEquality(t *testing.T) {
	preds, err := CompilePredicates([]string{"event == packet_send"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	args := map[string]any{"event": "packet_send"}
	ok, err := preds[0](args)
	if err != nil || !ok {
		t.Fatalf("expected true, got %v err=%v", ok, err)
	}
}

func TestCompilePredicates_MissingFieldAndBlanks(t *testing.T) {
	preds, err := CompilePredicates([]string{"packet.sequence >= 18446744073709551615", "", "  "})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("expected blank expressions skipped, got %d", len(preds))
	}
	ok, err := preds[0](map[string]any{"packet.sequence": json.Number("18446744073709551615")})
	if err != nil || !ok {
		t.Fatalf("expected exact uint64 comparison to pass, got %v err=%v", ok, err)
	}
	ok, err = preds[0](map[string]any{"packet.sequence": json.Number("18446744073709551614")})
	if err != nil || ok {
		t.Fatalf("expected off by one sequence to fail, got %v err=%v", ok, err)
	}
	ok, err = preds[0](map[string]any{"other": 1})
	if err != nil || ok {
		t.Fatalf("expected missing field to fail, got %v err=%v", ok, err)
	}
	for _, bad := range []string{"no operator", "== packet_send", "event =="} {
		if _, err := CompilePredicates([]string{bad}); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestCompilePredicates_Heights(t *testing.T) {
	cases := []struct {
		expr   string
		height string
		want   bool
	}{
		{"provable_height >= 1-2500", "1-2500", true},
		{"provable_height >= 1-2500", "1-999", false},
		{"provable_height > 1-999", "1-2500", true},
		{"provable_height < 1-10", "1-9", true},
		{"provable_height == 4-77", "4-77", true},
		{"provable_height != 4-77", "4-78", true},
	}
	for _, tc := range cases {
		preds, err := CompilePredicates([]string{tc.expr})
		if err != nil {
			t.Fatalf("compile %q: %v", tc.expr, err)
		}
		got, err := preds[0](map[string]any{"provable_height": tc.height})
		if err != nil {
			t.Fatalf("%s at %s: %v", tc.expr, tc.height, err)
		}
		if got != tc.want {
			t.Fatalf("%s at %s: got %v, want %v", tc.expr, tc.height, got, tc.want)
		}
	}

	// Lexically "1-999" sorts after "1-2500".
	preds, _ := CompilePredicates([]string{"provable_height > 1-2500"})
	if ok, _ := preds[0](map[string]any{"provable_height": "1-999"}); ok {
		t.Fatalf("heights must not compare as strings")
	}

	_, err := preds[0](map[string]any{"provable_height": "2-1"})
	if !errors.Is(err, ibc.ErrRevisionMismatch) {
		t.Fatalf("expected revision mismatch, got %v", err)
	}

	preds, _ = CompilePredicates([]string{"counterparty_chain_id == union-testnet-9"})
	if ok, err := preds[0](map[string]any{"counterparty_chain_id": "union-testnet-9"}); err != nil || !ok {
		t.Fatalf("chain ids compare as strings, got %v err=%v", ok, err)
	}
}

func TestCompilePredicates_OrderingNeedsComparableValues(t *testing.T) {
	preds, err := CompilePredicates([]string{"packet.source_channel.version > ics20-1", "packet.sequence > 3"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	fields := map[string]any{"packet.source_channel.version": "ics20-2", "packet.sequence": "not a number"}
	for _, p := range preds {
		if ok, err := p(fields); err != nil || ok {
			t.Fatalf("expected false without error, got %v err=%v", ok, err)
		}
	}
}

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(2, 1)
	now := time.Now()

	if !tb.Allow(now) || !tb.Allow(now) {
		t.Fatalf("expected initial tokens available")
	}
	if tb.Allow(now) {
		t.Fatalf("expected third to be rate-limited")
	}

	now = now.Add(1500 * time.Millisecond)
	if !tb.Allow(now) {
		t.Fatalf("expected token after refill")
	}
}
