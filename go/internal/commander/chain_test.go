package commander

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder appends its name to a shared log every time it sees a command
func recorder(name string, seen *[]string, result Propagation) *Commander {
	return OnCommand(name, func(cmd Command) Propagation {
		*seen = append(*seen, name)
		return result
	})
}

func TestChain_PushRemoveSize(t *testing.T) {
	c := NewChain("test")
	a := OnCommand("a", func(Command) Propagation { return Continue })
	b := OnCommand("b", func(Command) Propagation { return Continue })
	absent := OnCommand("absent", func(Command) Propagation { return Continue })

	require.Equal(t, 0, c.Size())

	c.Push(a)
	c.Push(b)
	require.Equal(t, 2, c.Size())

	c.Remove(absent)
	assert.Equal(t, 2, c.Size(), "removing an absent commander must not change size")

	c.Remove(a)
	assert.Equal(t, 1, c.Size())

	c.Remove(a)
	assert.Equal(t, 1, c.Size())

	c.Push(nil)
	assert.Equal(t, 1, c.Size(), "nil commanders are ignored")
}

func TestChain_RemoveDropsEveryInstance(t *testing.T) {
	c := NewChain("test")
	a := OnCommand("a", func(Command) Propagation { return Continue })
	b := OnCommand("b", func(Command) Propagation { return Continue })

	c.Push(a)
	c.Push(b)
	c.Push(a)
	require.Equal(t, 3, c.Size())

	c.Remove(a)
	assert.Equal(t, 1, c.Size())
}

func TestChain_DispatchCommand_TopDown(t *testing.T) {
	var seen []string
	c := NewChain("test")
	c.Push(recorder("A", &seen, Continue))
	c.Push(recorder("B", &seen, Continue))

	got := c.DispatchCommand(Command{Type: "tap"})

	assert.Equal(t, Continue, got)
	assert.Equal(t, []string{"B", "A"}, seen)
}

func TestChain_DispatchCommand_StopPropagation(t *testing.T) {
	var aReceived, bReceived bool
	c := NewChain("test")
	c.Push(OnCommand("A", func(Command) Propagation {
		aReceived = true
		return Continue
	}))
	c.Push(OnCommand("B", func(Command) Propagation {
		bReceived = true
		return Stop
	}))

	got := c.DispatchCommand(Command{Type: "tap"})

	assert.Equal(t, Stop, got)
	assert.True(t, bReceived)
	assert.False(t, aReceived, "A sits below B and must not see a stopped command")
}

func TestChain_DispatchCommand_SkipsNotificationOnly(t *testing.T) {
	var seen []string
	c := NewChain("test")
	c.Push(recorder("A", &seen, Continue))
	c.Push(OnNotification("notif-only", func(n Notification) (Notification, bool) {
		seen = append(seen, "notif-only")
		return n, true
	}))

	c.DispatchCommand(Command{Type: "tap"})

	assert.Equal(t, []string{"A"}, seen)
}

func TestChain_DispatchCommand_IdempotentRedispatch(t *testing.T) {
	var seen []string
	c := NewChain("test")
	c.Push(recorder("A", &seen, Continue))
	c.Push(recorder("B", &seen, Continue))
	c.Push(recorder("C", &seen, Continue))

	cmd := Command{Type: "tap", Payload: 1}
	c.DispatchCommand(cmd)
	first := append([]string(nil), seen...)
	seen = nil
	c.DispatchCommand(cmd)

	assert.Equal(t, first, seen)
	assert.Equal(t, []string{"C", "B", "A"}, seen)
}

func TestChain_DispatchNotification_Veto(t *testing.T) {
	aCalled := false
	c := NewChain("test")
	c.Push(OnNotification("A", func(n Notification) (Notification, bool) {
		aCalled = true
		return n, true
	}))
	c.Push(OnNotification("B", func(n Notification) (Notification, bool) {
		return Notification{}, false
	}))

	_, ok := c.DispatchNotification(Notification{Type: "n", Payload: 3})

	assert.False(t, ok)
	assert.False(t, aCalled)
}

func TestChain_DispatchNotification_Pipeline(t *testing.T) {
	c := NewChain("test")
	c.Push(OnNotification("A", func(n Notification) (Notification, bool) {
		n.Payload = n.Payload.(int) * 2
		return n, true
	}))
	c.Push(OnNotification("B", func(n Notification) (Notification, bool) {
		n.Payload = n.Payload.(int) + 1
		return n, true
	}))

	out, ok := c.DispatchNotification(Notification{Type: "n", Payload: 3})

	require.True(t, ok)
	assert.Equal(t, 8, out.Payload)
}

func TestChain_DispatchNotification_EmptyChainPassesThrough(t *testing.T) {
	c := NewChain("empty")
	out, ok := c.DispatchNotification(Notification{Type: "n", Payload: "x"})
	require.True(t, ok)
	assert.Equal(t, "x", out.Payload)
}

func TestChain_MutationDuringDispatch(t *testing.T) {
	var seen []string
	c := NewChain("test")
	a := recorder("A", &seen, Continue)
	late := recorder("late", &seen, Continue)

	c.Push(a)
	c.Push(OnCommand("B", func(Command) Propagation {
		seen = append(seen, "B")
		c.Remove(a)
		c.Push(late)
		return Continue
	}))

	c.DispatchCommand(Command{Type: "tap"})
	assert.Equal(t, []string{"B"}, seen, "removed commander is skipped and pushed one waits for the next dispatch")

	seen = nil
	c.DispatchCommand(Command{Type: "tap"})
	assert.Equal(t, []string{"late", "B"}, seen)
}

func TestChain_PanicIsIsolated(t *testing.T) {
	var faults []*PropagationFault
	var seen []string
	c := NewChain("test", WithFaultHandler(func(f *PropagationFault) {
		faults = append(faults, f)
	}))
	c.Push(recorder("A", &seen, Continue))
	c.Push(OnCommand("broken", func(Command) Propagation {
		panic("boom")
	}))

	got := c.DispatchCommand(Command{Type: "tap"})

	assert.Equal(t, Continue, got)
	assert.Equal(t, []string{"A"}, seen)
	require.Len(t, faults, 1)
	assert.Equal(t, "broken", faults[0].Handler)
	assert.Equal(t, "tap", faults[0].Type)
	assert.Contains(t, faults[0].Error(), "boom")
}

func TestChain_NotificationPanicPassesValueThrough(t *testing.T) {
	c := NewChain("test")
	c.Push(OnNotification("A", func(n Notification) (Notification, bool) {
		n.Payload = n.Payload.(int) * 10
		return n, true
	}))
	c.Push(OnNotification("broken", func(Notification) (Notification, bool) {
		panic("boom")
	}))

	out, ok := c.DispatchNotification(Notification{Type: "n", Payload: 2})

	require.True(t, ok)
	assert.Equal(t, 20, out.Payload)
}

func TestChain_Nested(t *testing.T) {
	var seen []string
	app := NewChain("app")
	app.Push(recorder("app-root", &seen, Continue))

	view := NewChain("view")
	view.Push(app.AsCommander("app"))
	view.Push(recorder("view", &seen, Continue))

	view.DispatchCommand(Command{Type: "tap"})
	assert.Equal(t, []string{"view", "app-root"}, seen)

	seen = nil
	inner := NewChain("inner")
	inner.Push(recorder("inner-stop", &seen, Stop))
	outer := NewChain("outer")
	outer.Push(recorder("bottom", &seen, Continue))
	outer.Push(inner.AsCommander("inner"))

	assert.Equal(t, Stop, outer.DispatchCommand(Command{Type: "tap"}))
	assert.Equal(t, []string{"inner-stop"}, seen)
}

type both struct{ commands int }

func (b *both) HandleCommand(Command) Propagation { b.commands++; return Continue }

func (b *both) HandleNotification(n Notification) (Notification, bool) { return n, false }

func TestFrom_ResolvesCapabilities(t *testing.T) {
	h := &both{}
	cmdr := From("both", h)
	assert.True(t, cmdr.HandlesCommands())
	assert.True(t, cmdr.HandlesNotifications())

	none := From("none", struct{}{})
	assert.False(t, none.HandlesCommands())
	assert.False(t, none.HandlesNotifications())

	c := NewChain("test")
	c.Push(none)
	c.Push(cmdr)
	c.DispatchCommand(Command{Type: "x"})
	assert.Equal(t, 1, h.commands)

	_, ok := c.DispatchNotification(Notification{Type: "x"})
	assert.False(t, ok)
}
