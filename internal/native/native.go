// Package native holds IBC events exactly as chains emit them, before any state is resolved.
//
// Two vocabularies exist: the ibc-go ("classic") events and the union events. Event is closed;
// every concrete type lives in this package.
package native

import (
	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/ibc/classic"
	"github.com/devblac/ibc-watch/internal/ibc/union"
)

// Event is a native IBC event of either vocabulary.
type Event interface {
	// Name is the event type as found on chain.
	Name() string
	Spec() ibc.SpecID
	native()
}

// ClassicEvent is implemented by every classic event.
type ClassicEvent interface {
	Event
	classic()
}

// UnionEvent is implemented by every union event.
type UnionEvent interface {
	Event
	union()
}

type classicEvent struct{}

func (classicEvent) Spec() ibc.SpecID { return classic.SpecID }
func (classicEvent) native()          {}
func (classicEvent) classic()         {}

type unionEvent struct{}

func (unionEvent) Spec() ibc.SpecID { return union.SpecID }
func (unionEvent) native()          {}
func (unionEvent) union()           {}
