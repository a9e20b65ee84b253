package commander

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// PropagationFault describes a handler that panicked during dispatch.
// The chain recovers the panic and moves on to the next handler.
type PropagationFault struct {
	Chain   string
	Handler string
	Type    string // command or notification type being dispatched
	Value   any    // recovered panic value
}

func (f *PropagationFault) Error() string {
	return fmt.Sprintf("commander %q in chain %q panicked on %q: %v", f.Handler, f.Chain, f.Type, f.Value)
}

// FaultHandler observes recovered handler panics
type FaultHandler func(fault *PropagationFault)

// Option configures a Chain
type Option func(*Chain)

// WithFaultHandler registers a callback invoked for each recovered panic
func WithFaultHandler(fn FaultHandler) Option {
	return func(c *Chain) { c.onFault = fn }
}

type entry struct {
	cmdr    *Commander
	removed atomic.Bool
}

// Chain is an ordered stack of commanders. The most recently pushed
// commander is dispatched first.
type Chain struct {
	name    string
	mu      sync.RWMutex
	entries []*entry // bottom first
	onFault FaultHandler
}

// NewChain creates an empty chain
func NewChain(name string, opts ...Option) *Chain {
	c := &Chain{name: name}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the chain label used in logs
func (c *Chain) Name() string { return c.name }

// Push puts a commander on top of the stack. Pushing the same commander
// twice registers it twice.
func (c *Chain) Push(cmdr *Commander) {
	if cmdr == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, &entry{cmdr: cmdr})
}

// Remove drops every occurrence of the commander. Removing a commander that
// is not on the stack is a no-op.
func (c *Chain) Remove(cmdr *Commander) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0:0]
	for _, e := range c.entries {
		if e.cmdr == cmdr {
			// tombstone so an in-flight dispatch skips it
			e.removed.Store(true)
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
}

// Size returns the number of registered commanders
func (c *Chain) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// snapshot returns the entries top first
func (c *Chain) snapshot() []*entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*entry, len(c.entries))
	for i, e := range c.entries {
		out[len(c.entries)-1-i] = e
	}
	return out
}

// DispatchCommand offers cmd to each command-capable commander from the top
// of the stack down, halting as soon as one returns Stop. It returns Stop if
// the command was stopped.
func (c *Chain) DispatchCommand(cmd Command) Propagation {
	for _, e := range c.snapshot() {
		if e.removed.Load() || !e.cmdr.HandlesCommands() {
			continue
		}
		if c.invokeCommand(e.cmdr, cmd) == Stop {
			return Stop
		}
	}
	return Continue
}

// DispatchNotification pipes n through each notification-capable commander
// from the top down. Each commander sees the value produced by the one above
// it. If any commander vetoes, dispatch halts and ok is false.
func (c *Chain) DispatchNotification(n Notification) (Notification, bool) {
	current := n
	for _, e := range c.snapshot() {
		if e.removed.Load() || !e.cmdr.HandlesNotifications() {
			continue
		}
		next, ok := c.invokeNotification(e.cmdr, current)
		if !ok {
			return Notification{}, false
		}
		current = next
	}
	return current, true
}

// AsCommander exposes the whole chain as a single commander, so a chain can
// be nested inside another one. A stop or veto inside the nested chain
// propagates to the outer chain. Nesting a chain inside itself recurses
// forever.
func (c *Chain) AsCommander(name string) *Commander {
	return Both(name, c.DispatchCommand, c.DispatchNotification)
}

func (c *Chain) invokeCommand(cmdr *Commander, cmd Command) (p Propagation) {
	defer func() {
		if r := recover(); r != nil {
			c.fault(cmdr, cmd.Type, r)
			p = Continue
		}
	}()
	return cmdr.onCommand(cmd)
}

func (c *Chain) invokeNotification(cmdr *Commander, n Notification) (out Notification, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.fault(cmdr, n.Type, r)
			// a faulting commander passes the value through unchanged
			out, ok = n, true
		}
	}()
	return cmdr.onNotification(n)
}

func (c *Chain) fault(cmdr *Commander, typ string, value any) {
	fault := &PropagationFault{
		Chain:   c.name,
		Handler: cmdr.name,
		Type:    typ,
		Value:   value,
	}

	log.Error().
		Str("chain", c.name).
		Str("commander", cmdr.name).
		Str("type", typ).
		Interface("panic", value).
		Msg("commander panicked during dispatch")

	if c.onFault != nil {
		c.onFault(fault)
	}
}
