// Package message instantiates the operation algebra for the watcher: calls addressed to the core
// or to a plugin, and canonical chain events as data.
package message

import (
	"fmt"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/vm"
)

// Call is pending work. The set of core calls is closed; plugin specific work travels inside a
// PluginMessage.
type Call interface {
	call()
}

// FetchBlocks asks the plugin watching ChainID to start following blocks from StartHeight.
type FetchBlocks struct {
	ChainID     ibc.ChainID
	StartHeight ibc.Height
}

// WaitForHeight resolves once ChainID reached Height, or its finalized head did when Finalized is
// set.
type WaitForHeight struct {
	ChainID   ibc.ChainID
	Height    ibc.Height
	Finalized bool
}

// PluginCall is the payload of a PluginMessage.
type PluginCall interface {
	fmt.Stringer
}

// PluginMessage addresses Call to the plugin registered under Plugin.
type PluginMessage struct {
	Plugin string
	Call   PluginCall
}

func (FetchBlocks) call()   {}
func (WaitForHeight) call() {}
func (PluginMessage) call() {}

func (c FetchBlocks) String() string {
	return fmt.Sprintf("fetch_blocks(%s, %s)", c.ChainID, c.StartHeight)
}

func (c WaitForHeight) String() string {
	return fmt.Sprintf("wait_for_height(%s, %s, finalized=%t)", c.ChainID, c.Height, c.Finalized)
}

func (c PluginMessage) String() string {
	return fmt.Sprintf("%s:%s", c.Plugin, c.Call)
}

// Data is a terminal value.
type Data = ibc.ChainEvent

type (
	Op      = vm.Op[Call, Data]
	Handler = vm.Handler[Call, Data]
	Result  = vm.PassResult[Call, Data]
)

func Do(c Call) Op { return vm.NewCall[Call, Data](c) }

func Emit(d Data) Op { return vm.NewData[Call, Data](d) }

func Seq(ops ...Op) Op { return vm.NewSeq(ops...) }

func Conc(ops ...Op) Op { return vm.NewConc(ops...) }

func Noop() Op { return vm.Noop[Call, Data]() }

// ToPlugin wraps c into a call addressed to plugin.
func ToPlugin(plugin string, c PluginCall) Op {
	return Do(PluginMessage{Plugin: plugin, Call: c})
}

// PluginCallOf unwraps c if it is a PluginMessage addressed to plugin.
func PluginCallOf(c Call, plugin string) (PluginCall, bool) {
	m, ok := c.(PluginMessage)
	if !ok || m.Plugin != plugin {
		return nil, false
	}
	return m.Call, true
}
