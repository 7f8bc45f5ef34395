package ibc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeight(t *testing.T) {
	h := NewHeight(1, 99)
	assert.Equal(t, "1-100", h.Increment().String())
	assert.Equal(t, uint64(99), h.RevisionHeight, "increment returns a copy")

	c, err := h.Compare(NewHeight(1, 100))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = h.Compare(NewHeight(2, 1))
	assert.ErrorIs(t, err, ErrRevisionMismatch)

	parsed, err := ParseHeight("4-1200")
	require.NoError(t, err)
	assert.Equal(t, NewHeight(4, 1200), parsed)

	_, err = ParseHeight("garbage")
	assert.Error(t, err)
}

func TestQueryHeight(t *testing.T) {
	assert.True(t, Latest().IsLatest())
	q := AtHeight(NewHeight(0, 5))
	h, ok := q.Height()
	require.True(t, ok)
	assert.Equal(t, uint64(5), h.RevisionHeight)

	b, err := json.Marshal(map[string]QueryHeight{"a": Latest(), "b": q})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"latest","b":"0-5"}`, string(b))
}

type fakeEvent struct {
	N int `json:"n"`
}

func (fakeEvent) EventName() string { return "fake" }
func (fakeEvent) Spec() SpecID      { return "test" }

func TestChainEventJSON(t *testing.T) {
	ev := ChainEvent{
		ChainID:             "a-1",
		ClientInfo:          ClientInfo{ClientType: "07-tendermint", IBCInterface: "ibc-go-v8/native"},
		CounterpartyChainID: "b-2",
		TxHash:              common.HexToHash("0x01"),
		ProvableHeight:      NewHeight(1, 11),
		SpecID:              "test",
		Event:               fakeEvent{N: 3},
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "a-1", out["chain_id"])
	assert.Equal(t, map[string]any{"@type": "fake", "@value": map[string]any{"n": float64(3)}}, out["event"])

	_, err = json.Marshal(ChainEvent{ChainID: "x"})
	assert.Error(t, err)
}

type fakeQuerier struct {
	state any
}

func (f fakeQuerier) QueryIBCState(_ context.Context, _ ChainID, _ QueryHeight, _ Path) (any, error) {
	return f.state, nil
}

func (fakeQuerier) ClientInfo(context.Context, ChainID, SpecID, string) (ClientInfo, error) {
	return ClientInfo{}, nil
}

func (fakeQuerier) ClientMeta(context.Context, ChainID, SpecID, QueryHeight, string) (ClientMeta, error) {
	return ClientMeta{}, nil
}

type testPath struct{}

func (testPath) Spec() SpecID   { return "test" }
func (testPath) String() string { return "test/path" }

func TestQueryTyped(t *testing.T) {
	ctx := context.Background()

	got, err := Query[fakeEvent](ctx, fakeQuerier{state: fakeEvent{N: 1}}, "a", Latest(), testPath{})
	require.NoError(t, err)
	assert.Equal(t, 1, got.N)

	got, err = Query[fakeEvent](ctx, fakeQuerier{}, "a", Latest(), testPath{})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Query[fakeEvent](ctx, fakeQuerier{state: "wrong"}, "a", Latest(), testPath{})
	assert.Error(t, err)
}
