package evm

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/devblac/ibc-watch/internal/native"
	"github.com/devblac/ibc-watch/internal/vm"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var testHandler = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func builtinABI(t *testing.T) *abi.ABI {
	t.Helper()
	a, err := HandlerABI()
	if err != nil {
		t.Fatalf("handler abi: %v", err)
	}
	return a
}

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := NewDecoder(testHandler, nil)
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	return d
}

func addrTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func idTopic(id uint32) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(uint64(id)))
}

// handlerLog builds a log of the named built-in event. Indexed values go into topics, the rest are
// packed in declaration order.
func handlerLog(t *testing.T, name string, topics []common.Hash, values ...any) types.Log {
	t.Helper()
	ev, ok := builtinABI(t).Events[name]
	if !ok {
		t.Fatalf("no event %s", name)
	}
	data, err := ev.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", name, err)
	}
	return types.Log{
		Address: testHandler,
		Topics:  append([]common.Hash{ev.ID}, topics...),
		Data:    data,
	}
}

func packetSendLog(t *testing.T, src, dst uint32, payload []byte) types.Log {
	return handlerLog(t, "PacketSend", []common.Hash{idTopic(src), idTopic(dst)}, payload, uint64(0), uint64(1_700_000_000))
}

func TestDecoderDecodesPacketSend(t *testing.T) {
	d := newTestDecoder(t)

	ev, err := d.Decode(packetSendLog(t, 3, 6, []byte("hello")))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	send, ok := ev.(native.UnionPacketSend)
	if !ok {
		t.Fatalf("unexpected event %T", ev)
	}
	if send.Packet.SourceChannelID != 3 || send.Packet.DestinationChannelID != 6 {
		t.Fatalf("unexpected channels %d -> %d", send.Packet.SourceChannelID, send.Packet.DestinationChannelID)
	}
	if string(send.Packet.Data) != "hello" {
		t.Fatalf("unexpected data %q", send.Packet.Data)
	}
	if send.Packet.TimeoutTimestamp != 1_700_000_000 {
		t.Fatalf("unexpected timeout %d", send.Packet.TimeoutTimestamp)
	}
}

func TestDecoderDecodesChannelOpenInit(t *testing.T) {
	d := newTestDecoder(t)
	port := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	lg := handlerLog(t, "ChannelOpenInit", []common.Hash{addrTopic(port), idTopic(9)}, []byte("wasm.union1xyz"), uint32(2), "ucs01-relay-1")
	ev, err := d.Decode(lg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	open, ok := ev.(native.UnionChannelOpenInit)
	if !ok {
		t.Fatalf("unexpected event %T", ev)
	}
	if common.BytesToAddress(open.PortID) != port {
		t.Fatalf("unexpected port %x", open.PortID)
	}
	if open.ChannelID != 9 || open.ConnectionID != 2 || open.Version != "ucs01-relay-1" {
		t.Fatalf("unexpected event %+v", open)
	}
	if string(open.CounterpartyPortID) != "wasm.union1xyz" {
		t.Fatalf("unexpected counterparty port %q", open.CounterpartyPortID)
	}
}

func TestDecoderDecodesClientEvents(t *testing.T) {
	d := newTestDecoder(t)

	ev, err := d.Decode(handlerLog(t, "CreateClient", []common.Hash{idTopic(1)}, "cometbls", "union-testnet-9"))
	if err != nil {
		t.Fatalf("decode create: %v", err)
	}
	create := ev.(native.UnionCreateClient)
	if create.ClientID != 1 || create.ClientType != "cometbls" || create.CounterpartyChainID != "union-testnet-9" {
		t.Fatalf("unexpected create %+v", create)
	}

	ev, err = d.Decode(handlerLog(t, "ConnectionOpenTry", []common.Hash{idTopic(5), idTopic(1)}, uint32(4), uint32(2)))
	if err != nil {
		t.Fatalf("decode try: %v", err)
	}
	try := ev.(native.UnionConnectionOpenTry)
	if try.ConnectionID != 5 || try.ClientID != 1 || try.CounterpartyClientID != 4 || try.CounterpartyConnectionID != 2 {
		t.Fatalf("unexpected try %+v", try)
	}
}

func TestDecoderIgnoresOtherLogs(t *testing.T) {
	d := newTestDecoder(t)

	foreign := packetSendLog(t, 1, 2, nil)
	foreign.Address = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	register := handlerLog(t, "RegisterClient", nil, "cometbls", common.HexToAddress("0x01"))

	for name, lg := range map[string]types.Log{
		"foreign address": foreign,
		"no topics":       {Address: testHandler},
		"register client": register,
	} {
		ev, err := d.Decode(lg)
		if err != nil || ev != nil {
			t.Fatalf("%s: expected nothing, got %v, %v", name, ev, err)
		}
	}
}

func TestDecoderRejectsMalformedLogs(t *testing.T) {
	d := newTestDecoder(t)

	lg := packetSendLog(t, 1, 2, []byte("x"))
	lg.Data = lg.Data[:40]
	_, err := d.Decode(lg)
	if !errors.Is(err, ErrMalformedLog) || !vm.IsDefect(err) {
		t.Fatalf("expected malformed log defect, got %v", err)
	}

	lg = packetSendLog(t, 1, 2, []byte("x"))
	lg.Topics = lg.Topics[:2]
	if _, err := d.Decode(lg); !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("expected malformed log for missing topic, got %v", err)
	}
}

func TestDecoderUsesOverrides(t *testing.T) {
	dir := t.TempDir()
	override := `[
		{"type":"event","name":"UpdateClient","inputs":[
			{"name":"clientId","type":"uint32","indexed":true},
			{"name":"clientType","type":"string","indexed":false},
			{"name":"height","type":"uint64","indexed":false},
			{"name":"consensusStateCommitment","type":"bytes32","indexed":false}
		]}
	]`
	if err := os.WriteFile(filepath.Join(dir, "handler.json"), []byte(override), 0o600); err != nil {
		t.Fatalf("write abi: %v", err)
	}
	abis, err := LoadABIs([]string{dir})
	if err != nil {
		t.Fatalf("load abis: %v", err)
	}
	d, err := NewDecoder(testHandler, abis)
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	// The built-in signature no longer matches.
	ev, err := d.Decode(handlerLog(t, "UpdateClient", []common.Hash{idTopic(1)}, "cometbls", uint64(42)))
	if err != nil || ev != nil {
		t.Fatalf("expected built-in signature to be ignored, got %v, %v", ev, err)
	}

	updated, _ := FindEvent(abis, "UpdateClient")
	data, err := updated.Inputs.NonIndexed().Pack("cometbls", uint64(42), [32]byte{1})
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	ev, err = d.Decode(types.Log{Address: testHandler, Topics: []common.Hash{updated.ID, idTopic(1)}, Data: data})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if up := ev.(native.UnionUpdateClient); up.Height != 42 || up.ClientID != 1 {
		t.Fatalf("unexpected update %+v", up)
	}
}
