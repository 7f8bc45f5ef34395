package rpcerr

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap("tx_search", "error fetching transactions at height 10", map[string]any{"height": 10, "page": 2})(cause)

	assert.EqualError(t, err, "error fetching transactions at height 10: connection refused")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, map[string]any{"height": 10, "page": 2}, DataOf(fmt.Errorf("outer: %w", err)))
	assert.Nil(t, Wrap("x", "y", nil)(nil))
	assert.Nil(t, DataOf(cause))
}

func TestLogValue(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	err := Wrap("code", "error querying wasm code", map[string]any{"grpc_url": "localhost:9090"})(errors.New("unavailable"))
	log.Error("call failed", "error", err)

	out := buf.String()
	assert.True(t, strings.Contains(out, "error.op=code"), out)
	assert.True(t, strings.Contains(out, "error.grpc_url=localhost:9090"), out)
}
