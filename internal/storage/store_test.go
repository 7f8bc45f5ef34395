package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/wasm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCheckpointAndCursor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveCheckpoint(ctx, "union-testnet-9", ibc.NewHeight(9, 10)); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	h, ok, err := store.GetCursor(ctx, "union-testnet-9")
	if err != nil || !ok {
		t.Fatalf("get cursor failed err=%v ok=%v", err, ok)
	}
	if h != ibc.NewHeight(9, 10) {
		t.Fatalf("unexpected cursor: %s", h)
	}

	if err := store.SaveCheckpoint(ctx, "union-testnet-9", ibc.NewHeight(9, 20)); err != nil {
		t.Fatalf("save checkpoint update: %v", err)
	}
	h, ok, err = store.GetCursor(ctx, "union-testnet-9")
	if err != nil || !ok || h != ibc.NewHeight(9, 20) {
		t.Fatalf("cursor not updated: %s err=%v ok=%v", h, err, ok)
	}

	if _, ok, err := store.GetCursor(ctx, "unknown-1"); err != nil || ok {
		t.Fatalf("expected no cursor, got ok=%v err=%v", ok, err)
	}
	if err := store.SaveCheckpoint(ctx, "", ibc.NewHeight(0, 1)); err == nil {
		t.Fatalf("expected empty chain id to fail")
	}
}

func TestListCursors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SaveCheckpoint(ctx, "b-1", ibc.NewHeight(1, 5))
	_ = store.SaveCheckpoint(ctx, "a-1", ibc.NewHeight(1, 7))

	cursors, err := store.ListCursors(ctx)
	if err != nil {
		t.Fatalf("list cursors: %v", err)
	}
	if len(cursors) != 2 || cursors[0].ChainID != "a-1" || cursors[1].Height != ibc.NewHeight(1, 5) {
		t.Fatalf("unexpected cursors %+v", cursors)
	}
	if cursors[0].UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be set")
	}
}

func TestDedupeTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.MarkDedupe(ctx, "k1", now.Add(1*time.Second)); err != nil {
		t.Fatalf("mark dedupe: %v", err)
	}
	dup, err := store.IsDuplicate(ctx, "k1", now)
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if !dup {
		t.Fatalf("expected duplicate before expiry")
	}

	later := now.Add(2 * time.Second)
	dup, err = store.IsDuplicate(ctx, "k1", later)
	if err != nil {
		t.Fatalf("is duplicate later: %v", err)
	}
	if dup {
		t.Fatalf("expected non-duplicate after expiry")
	}
}

func testEvent(id, fingerprint, chainID string) Event {
	return Event{
		ID:             id,
		Fingerprint:    fingerprint,
		ChainID:        chainID,
		SpecID:         "ibc-classic",
		Name:           "send_packet",
		ProvableHeight: "1-11",
		TxHash:         "0xabc",
		PayloadJSON:    `{"x":1}`,
		CreatedAt:      time.Now(),
	}
}

func TestExactlyOnceEvent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertEvent(ctx, testEvent("e1", "fp", "a-1")); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if err := store.InsertEvent(ctx, testEvent("e2", "fp", "a-1")); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected duplicate event, got %v", err)
	}
	if err := store.InsertEvent(ctx, testEvent("e1", "other", "a-1")); err == nil || errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected id conflict to fail, got %v", err)
	}
}

func TestListEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, chain := range []string{"a-1", "b-1", "a-1"} {
		e := testEvent(string(rune('x'+i)), string(rune('x'+i)), chain)
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.InsertEvent(ctx, e); err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}

	all, err := store.ListEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(all) != 3 || all[0].ID != "z" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	onA, err := store.ListEvents(ctx, EventFilter{ChainID: "a-1", Limit: 1})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(onA) != 1 || onA[0].ID != "z" {
		t.Fatalf("unexpected filtered events %+v", onA)
	}
}

func TestSendsAndReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertEvent(ctx, testEvent("e1", "fp", "a-1")); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	_ = store.SaveCheckpoint(ctx, "a-1", ibc.NewHeight(1, 3))

	send := Send{EventID: "e1", SinkID: "hook", Status: "ok", ResponseCode: 200}
	if err := store.InsertSend(ctx, send); err != nil {
		t.Fatalf("insert send: %v", err)
	}
	if err := store.InsertSend(ctx, send); err == nil {
		t.Fatalf("expected duplicate send insert to fail")
	}

	if err := store.ResetChain(ctx, "a-1"); err != nil {
		t.Fatalf("reset chain: %v", err)
	}
	if _, ok, _ := store.GetCursor(ctx, "a-1"); ok {
		t.Fatalf("expected cursor to be gone")
	}
	events, _ := store.ListEvents(ctx, EventFilter{ChainID: "a-1"})
	if len(events) != 0 {
		t.Fatalf("expected events to be gone, got %d", len(events))
	}
	// The cascade removed the send too.
	if err := store.InsertEvent(ctx, testEvent("e1", "fp", "a-1")); err != nil {
		t.Fatalf("reinsert event: %v", err)
	}
	if err := store.InsertSend(ctx, send); err != nil {
		t.Fatalf("reinsert send: %v", err)
	}
}

func TestChecksumsBacking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sum := wasm.Checksum{1, 2, 3}

	if err := store.SaveChecksum(ctx, sum, "cometbls"); err != nil {
		t.Fatalf("save checksum: %v", err)
	}
	if err := store.SaveChecksum(ctx, sum, "cometbls"); err != nil {
		t.Fatalf("save checksum again: %v", err)
	}
	if err := store.SaveChecksum(ctx, sum, "ethereum"); err == nil {
		t.Fatalf("expected conflicting client type to fail")
	}

	cache := wasm.NewCache()
	if err := cache.Warm(ctx, store); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if ct, ok := cache.Get(sum); !ok || ct != "cometbls" {
		t.Fatalf("unexpected cache entry %q ok=%v", ct, ok)
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	store.Close()
	if err := store.Ping(ctx); err == nil {
		t.Fatalf("expected ping to fail after close")
	}
}
