package native

import (
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/ibc/classic"
	"github.com/devblac/ibc-watch/internal/ibc/union"
	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(typ string, kv ...string) abci.Event {
	ev := abci.Event{Type: typ}
	for i := 0; i+1 < len(kv); i += 2 {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: kv[i], Value: kv[i+1], Index: true})
	}
	return ev
}

func sendPacketEvent() abci.Event {
	return event("send_packet",
		"packet_data_hex", "0a0b",
		"packet_timeout_height", "1-500",
		"packet_timeout_timestamp", "1700000000000000000",
		"packet_sequence", "7",
		"packet_src_port", "transfer",
		"packet_src_channel", "channel-0",
		"packet_dst_port", "transfer",
		"packet_dst_channel", "channel-9",
		"packet_channel_ordering", "ORDER_UNORDERED",
		"connection_id", "connection-3",
	)
}

func TestFromCometEventClassic(t *testing.T) {
	ev, err := FromCometEvent(sendPacketEvent())
	require.NoError(t, err)

	send, ok := ev.(SendPacket)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, classic.SpecID, send.Spec())
	assert.Equal(t, uint64(7), send.Sequence)
	assert.Equal(t, "channel-0", send.SrcChannel)
	assert.Equal(t, "channel-9", send.DstChannel)
	assert.Equal(t, "connection-3", send.ConnectionID)
	assert.Equal(t, ibc.NewHeight(1, 500), send.TimeoutHeight)
	assert.Equal(t, []byte{0x0a, 0x0b}, send.Data)
}

func TestFromCometEventUpdateClientHeights(t *testing.T) {
	ev, err := FromCometEvent(event("update_client",
		"client_id", "07-tendermint-0",
		"client_type", "07-tendermint",
		"consensus_heights", "1-10,1-11",
	))
	require.NoError(t, err)
	assert.Equal(t, []ibc.Height{ibc.NewHeight(1, 10), ibc.NewHeight(1, 11)}, ev.(UpdateClient).ConsensusHeights)

	ev, err = FromCometEvent(event("update_client",
		"client_id", "07-tendermint-0",
		"client_type", "07-tendermint",
		"consensus_height", "1-12",
	))
	require.NoError(t, err)
	assert.Equal(t, []ibc.Height{ibc.NewHeight(1, 12)}, ev.(UpdateClient).ConsensusHeights)
}

func TestFromCometEventLegacyPacketConnection(t *testing.T) {
	raw := sendPacketEvent()
	for i, a := range raw.Attributes {
		if a.Key == "connection_id" {
			raw.Attributes[i].Key = "packet_connection"
		}
	}
	ev, err := FromCometEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "connection-3", ev.(SendPacket).ConnectionID)
}

func TestFromCometEventUnion(t *testing.T) {
	ev, err := FromCometEvent(event("wasm-packet_send",
		"packet_source_channel_id", "1",
		"packet_destination_channel_id", "4",
		"packet_data", "0xdeadbeef",
		"packet_timeout_height", "0",
		"packet_timeout_timestamp", "99",
		"packet_hash", "0x00",
	))
	require.NoError(t, err)
	send, ok := ev.(UnionPacketSend)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, union.SpecID, send.Spec())
	assert.Equal(t, union.ChannelID(1), send.Packet.SourceChannelID)
	assert.Equal(t, union.ChannelID(4), send.Packet.DestinationChannelID)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, []byte(send.Packet.Data))
}

func TestFromCometEventIgnoresUnrelated(t *testing.T) {
	for _, typ := range []string{"transfer", "message", "wasm-transfer", "coin_received"} {
		ev, err := FromCometEvent(event(typ, "amount", "1uatom"))
		require.NoError(t, err)
		assert.Nil(t, ev, typ)
	}
}

func TestFromCometEventMalformed(t *testing.T) {
	tests := []struct {
		name string
		ev   abci.Event
	}{
		{name: "missing_attribute", ev: event("create_client", "client_id", "07-tendermint-0")},
		{name: "bad_height", ev: event("create_client", "client_id", "x", "client_type", "y", "consensus_height", "nope")},
		{name: "bad_sequence", ev: event("acknowledge_packet", "packet_sequence", "-1")},
		{name: "bad_union_id", ev: event("wasm-create_client", "client_id", "abc", "client_type", "cometbls")},
		{name: "bad_union_hex", ev: event("wasm-write_ack",
			"packet_source_channel_id", "1", "packet_destination_channel_id", "2",
			"packet_data", "zz", "packet_timeout_height", "0", "packet_timeout_timestamp", "0",
			"acknowledgement", "0x01")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := FromCometEvent(tt.ev)
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, ErrMalformedEvent)
			assert.ErrorIs(t, err, vm.ErrDefect)
		})
	}
}
