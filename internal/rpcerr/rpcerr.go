// Package rpcerr carries a failed remote call together with a machine-readable context payload.
package rpcerr

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Error is a failure of a call to a chain or state backend.
type Error struct {
	// Op names the remote operation, e.g. "tx_search".
	Op string
	// Message is a human-readable description.
	Message string
	// Data holds the call context (height, page, client id, url...).
	Data map[string]any
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// LogValue renders the error with its payload as slog attributes.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("message", e.Error())}
	if e.Op != "" {
		attrs = append(attrs, slog.String("op", e.Op))
	}
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Data[k]))
	}
	return slog.GroupValue(attrs...)
}

// Wrap returns a constructor that wraps a cause with the given context. It mirrors the way call
// sites build errors right where the call is made:
//
//	res, err := client.TxSearch(...)
//	if err != nil {
//		return nil, rpcerr.Wrap("tx_search", "error fetching transactions", data)(err)
//	}
func Wrap(op, message string, data map[string]any) func(error) error {
	return func(err error) error {
		if err == nil {
			return nil
		}
		return &Error{Op: op, Message: message, Data: data, Err: err}
	}
}

// DataOf returns the payload of the first *Error in err's chain.
func DataOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Data
	}
	return nil
}
