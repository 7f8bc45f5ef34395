package wasm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"
)

const codeMethod = "/ibc.lightclients.wasm.v1.Query/Code"

// ErrCodeNotFound is returned when no code is stored under a checksum.
var ErrCodeNotFound = errors.New("wasm code not found")

// CodeQuerier fetches a stored wasm blob by checksum.
type CodeQuerier interface {
	Code(ctx context.Context, checksum Checksum) ([]byte, error)
}

// GRPCCodeQuerier queries the 08-wasm module over gRPC. Messages are encoded by hand so the
// module's generated types (which pull in wasmvm) are not needed.
type GRPCCodeQuerier struct {
	conn grpc.ClientConnInterface
}

func NewGRPCCodeQuerier(conn grpc.ClientConnInterface) *GRPCCodeQuerier {
	return &GRPCCodeQuerier{conn: conn}
}

func (q *GRPCCodeQuerier) Code(ctx context.Context, checksum Checksum) ([]byte, error) {
	// QueryCodeRequest{checksum: hex string = 1}
	req := protowire.AppendTag(nil, 1, protowire.BytesType)
	req = protowire.AppendString(req, checksum.String())

	var resp rawMessage
	err := q.conn.Invoke(ctx, codeMethod, rawMessage(req), &resp, grpc.ForceCodec(rawCodec{}))
	if status.Code(err) == codes.NotFound {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	// QueryCodeResponse{data: bytes = 1}
	data, err := bytesField(resp, 1)
	if err != nil {
		return nil, fmt.Errorf("decode code response: %w", err)
	}
	if data == nil {
		return nil, ErrCodeNotFound
	}
	return data, nil
}

// bytesField returns the last occurrence of a length-delimited field.
func bytesField(msg []byte, field protowire.Number) ([]byte, error) {
	var out []byte
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		msg = msg[n:]
		if num == field && typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(msg)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			out = v
			msg = msg[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, msg)
		if m < 0 {
			return nil, protowire.ParseError(m)
		}
		msg = msg[m:]
	}
	return out, nil
}

type rawMessage []byte

// rawCodec passes already encoded protobuf bytes through gRPC untouched.
type rawCodec struct{}

func (rawCodec) Name() string { return "proto" }

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case rawMessage:
		return m, nil
	case *rawMessage:
		return *m, nil
	default:
		return nil, fmt.Errorf("raw codec: unexpected %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(*rawMessage)
	if !ok {
		return fmt.Errorf("raw codec: unexpected %T", v)
	}
	*m = append((*m)[:0], data...)
	return nil
}
