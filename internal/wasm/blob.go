package wasm

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// ClientTypeSection is the custom section a light client blob declares its client type in.
const ClientTypeSection = "client_type"

const maxBlobSize = 16 << 20

var (
	wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}
	gzipMagic = []byte{0x1f, 0x8b}

	// ErrNoClientType is returned for a well-formed module that does not declare a client type.
	ErrNoClientType = errors.New("no client type section")
)

// ParseClientType reads the client type declared by a (possibly gzipped) wasm module.
func ParseClientType(blob []byte) (ClientType, error) {
	if bytes.HasPrefix(blob, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(blob))
		if err != nil {
			return "", fmt.Errorf("gzip header: %w", err)
		}
		defer zr.Close()
		blob, err = io.ReadAll(io.LimitReader(zr, maxBlobSize+1))
		if err != nil {
			return "", fmt.Errorf("gunzip: %w", err)
		}
		if len(blob) > maxBlobSize {
			return "", fmt.Errorf("module exceeds %d bytes", maxBlobSize)
		}
	}

	if len(blob) < 8 || !bytes.Equal(blob[:4], wasmMagic) {
		return "", errors.New("not a wasm module")
	}
	rest := blob[8:]
	for len(rest) > 0 {
		id := rest[0]
		size, n := protowire.ConsumeVarint(rest[1:])
		if n < 0 || uint64(len(rest)-1-n) < size {
			return "", errors.New("truncated section")
		}
		body := rest[1+n : 1+n+int(size)]
		rest = rest[1+n+int(size):]
		if id != 0 {
			continue
		}
		nameLen, m := protowire.ConsumeVarint(body)
		if m < 0 || uint64(len(body)-m) < nameLen {
			return "", errors.New("truncated custom section name")
		}
		if string(body[m:m+int(nameLen)]) != ClientTypeSection {
			continue
		}
		payload := bytes.TrimSpace(body[m+int(nameLen):])
		if len(payload) == 0 {
			return "", errors.New("empty client type section")
		}
		return ClientType(payload), nil
	}
	return "", ErrNoClientType
}
