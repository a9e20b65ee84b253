package commander

// Propagation is returned by command handlers to tell the chain whether
// lower-priority handlers should see the command.
type Propagation int

const (
	// Continue lets the command reach the next handler down the stack.
	Continue Propagation = iota
	// Stop halts dispatch after the current handler.
	Stop
)

func (p Propagation) String() string {
	if p == Stop {
		return "stop"
	}
	return "continue"
}

// Command is a fan-out message routed through a chain until a handler stops it
type Command struct {
	Type    string
	Payload any
}

// Notification is a pipelined message; each handler may rewrite or veto it
type Notification struct {
	Type    string
	Payload any
}

// CommandFunc handles a command and decides whether it keeps propagating
type CommandFunc func(cmd Command) Propagation

// NotificationFunc returns the (possibly rewritten) notification, or false to veto it
type NotificationFunc func(n Notification) (Notification, bool)

// CommandHandler is implemented by types that can process commands
type CommandHandler interface {
	HandleCommand(cmd Command) Propagation
}

// NotificationHandler is implemented by types that can process notifications
type NotificationHandler interface {
	HandleNotification(n Notification) (Notification, bool)
}

// Commander is a handler registered on a Chain. Its capabilities are fixed
// when it is built, so the chain never inspects handlers during dispatch.
// Chains compare commanders by pointer identity.
type Commander struct {
	name           string
	onCommand      CommandFunc
	onNotification NotificationFunc
}

// OnCommand builds a commander that only handles commands
func OnCommand(name string, fn CommandFunc) *Commander {
	return &Commander{name: name, onCommand: fn}
}

// OnNotification builds a commander that only handles notifications
func OnNotification(name string, fn NotificationFunc) *Commander {
	return &Commander{name: name, onNotification: fn}
}

// Both builds a commander handling commands and notifications
func Both(name string, cmd CommandFunc, notif NotificationFunc) *Commander {
	return &Commander{name: name, onCommand: cmd, onNotification: notif}
}

// From adapts any value implementing CommandHandler and/or
// NotificationHandler. A value implementing neither yields a commander that
// the chain skips for both dispatch modes.
func From(name string, v any) *Commander {
	c := &Commander{name: name}
	if h, ok := v.(CommandHandler); ok {
		c.onCommand = h.HandleCommand
	}
	if h, ok := v.(NotificationHandler); ok {
		c.onNotification = h.HandleNotification
	}
	return c
}

// Name returns the label used in logs
func (c *Commander) Name() string { return c.name }

// HandlesCommands reports whether the commander has a command capability
func (c *Commander) HandlesCommands() bool { return c.onCommand != nil }

// HandlesNotifications reports whether the commander has a notification capability
func (c *Commander) HandlesNotifications() bool { return c.onNotification != nil }
