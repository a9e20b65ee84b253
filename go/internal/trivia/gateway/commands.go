package gateway

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/commander"
	"github.com/mcdev12/trivia/go/internal/trivia/events"
	"github.com/mcdev12/trivia/go/internal/trivia/room"
)

// Inbound is the payload of every command dispatched for a client frame
type Inbound struct {
	Conn     *Connection
	Envelope events.Envelope
}

func invalid(reason string) events.Event {
	return events.Event{Type: events.GameInvalid, Data: events.GameInvalidPayload{Reason: reason}}
}

// newAppChain builds the chain shared by every connection. It sits at the
// bottom of each inbound chain, so it only sees what the role commander let
// through.
func newAppChain(cm *ConnectionManager) *commander.Chain {
	app := commander.NewChain("app")
	app.Push(commander.OnCommand("unknown-event", func(cmd commander.Command) commander.Propagation {
		in := cmd.Payload.(Inbound)
		log.Debug().
			Str("connection_id", in.Conn.ID).
			Str("role", string(in.Conn.Role)).
			Str("event_type", cmd.Type).
			Msg("unsupported event")
		cm.reply(in.Conn, invalid("unsupported event "+cmd.Type))
		return commander.Stop
	}))
	app.Push(commander.OnCommand("trace", func(cmd commander.Command) commander.Propagation {
		in := cmd.Payload.(Inbound)
		log.Trace().
			Str("connection_id", in.Conn.ID).
			Str("event_type", cmd.Type).
			RawJSON("data", rawOrNull(in.Envelope.Data)).
			Msg("client event")
		return commander.Continue
	}))
	return app
}

func rawOrNull(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}

// inboundChain stacks the role commander over the shared app chain
func (cm *ConnectionManager) inboundChain(c *Connection) *commander.Chain {
	chain := commander.NewChain("inbound:" + c.ID)
	chain.Push(cm.app.AsCommander("app"))
	if c.Role == RoleDisplay {
		chain.Push(displayCommands(cm))
	} else {
		chain.Push(playerCommands(cm))
	}
	return chain
}

func playerCommands(cm *ConnectionManager) *commander.Commander {
	return commander.OnCommand("player", func(cmd commander.Command) commander.Propagation {
		in := cmd.Payload.(Inbound)

		switch events.Type(cmd.Type) {
		case events.UserConnect:
			var p events.UserConnectPayload
			if err := in.Envelope.Payload(&p); err != nil {
				cm.reply(in.Conn, invalid(err.Error()))
				return commander.Stop
			}
			cm.room.Send(room.Connect{ConnID: in.Conn.ID, Name: p.Name})

		case events.UserAnswered:
			var p events.UserAnsweredPayload
			if err := in.Envelope.Payload(&p); err != nil {
				cm.reply(in.Conn, invalid(err.Error()))
				return commander.Stop
			}
			if p.Answer == nil {
				cm.reply(in.Conn, invalid("missing answer"))
				return commander.Stop
			}
			cm.room.Send(room.Answer{ConnID: in.Conn.ID, Index: *p.Answer})

		default:
			return commander.Continue
		}
		return commander.Stop
	})
}

func displayCommands(cm *ConnectionManager) *commander.Commander {
	return commander.OnCommand("display", func(cmd commander.Command) commander.Propagation {
		id := cmd.Payload.(Inbound).Conn.ID

		var msg room.Msg
		switch events.Type(cmd.Type) {
		case events.DisplayRegister:
			msg = room.RegisterDisplay{ConnID: id}
		case events.GameStart:
			msg = room.StartGame{ConnID: id}
		case events.QuestionClose:
			msg = room.CloseQuestion{ConnID: id}
		case events.QuestionNext:
			msg = room.NextQuestion{ConnID: id}
		case events.SessionRegenerate:
			msg = room.Regenerate{ConnID: id}
		default:
			return commander.Continue
		}
		cm.room.Send(msg)
		return commander.Stop
	})
}

// outboundChain filters events by role before they reach the socket
func outboundChain(c *Connection) *commander.Chain {
	chain := commander.NewChain("outbound:" + c.ID)
	if c.Role == RolePlayer {
		chain.Push(commander.OnNotification("player-filter", func(n commander.Notification) (commander.Notification, bool) {
			// players never learn who has answered
			return n, events.Type(n.Type) != events.DisplayUserAnswered
		}))
	}
	return chain
}
