package ibc

import (
	"errors"
	"fmt"

	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
)

// ErrRevisionMismatch is returned when heights of different revisions are compared.
var ErrRevisionMismatch = errors.New("revision mismatch")

// Height is a block height qualified by the chain revision.
type Height struct {
	RevisionNumber uint64 `json:"revision_number"`
	RevisionHeight uint64 `json:"revision_height"`
}

func NewHeight(revision, height uint64) Height {
	return Height{RevisionNumber: revision, RevisionHeight: height}
}

// ParseHeight parses the "<revision>-<height>" form used in event attributes.
func ParseHeight(s string) (Height, error) {
	h, err := clienttypes.ParseHeight(s)
	if err != nil {
		return Height{}, fmt.Errorf("parse height %q: %w", s, err)
	}
	return Height{RevisionNumber: h.RevisionNumber, RevisionHeight: h.RevisionHeight}, nil
}

// Increment returns the next block of the same revision.
func (h Height) Increment() Height {
	return Height{RevisionNumber: h.RevisionNumber, RevisionHeight: h.RevisionHeight + 1}
}

func (h Height) IsZero() bool {
	return h.RevisionNumber == 0 && h.RevisionHeight == 0
}

// Compare orders two heights of the same revision.
func (h Height) Compare(o Height) (int, error) {
	if h.RevisionNumber != o.RevisionNumber {
		return 0, fmt.Errorf("%w: %s vs %s", ErrRevisionMismatch, h, o)
	}
	switch {
	case h.RevisionHeight < o.RevisionHeight:
		return -1, nil
	case h.RevisionHeight > o.RevisionHeight:
		return 1, nil
	default:
		return 0, nil
	}
}

func (h Height) String() string {
	return fmt.Sprintf("%d-%d", h.RevisionNumber, h.RevisionHeight)
}

// QueryHeight selects the state a query reads: the latest state or the state at a height.
type QueryHeight struct {
	at *Height
}

func Latest() QueryHeight { return QueryHeight{} }

func AtHeight(h Height) QueryHeight { return QueryHeight{at: &h} }

func (q QueryHeight) IsLatest() bool { return q.at == nil }

// Height returns the pinned height; ok is false for Latest.
func (q QueryHeight) Height() (Height, bool) {
	if q.at == nil {
		return Height{}, false
	}
	return *q.at, true
}

func (q QueryHeight) String() string {
	if q.at == nil {
		return "latest"
	}
	return q.at.String()
}

// MarshalJSON encodes the query height as "latest" or "<revision>-<height>".
func (q QueryHeight) MarshalJSON() ([]byte, error) {
	return []byte(`"` + q.String() + `"`), nil
}
