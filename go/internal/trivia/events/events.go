package events

import (
	"encoding/json"
	"fmt"
)

// Type is the name of a wire event
type Type string

const (
	// player -> authority
	UserConnect  Type = "user.connect"
	UserAnswered Type = "user.answered"

	// display -> authority
	DisplayRegister   Type = "display"
	GameStart         Type = "game.start"
	QuestionClose     Type = "question.close"
	QuestionNext      Type = "question.next"
	SessionRegenerate Type = "session.regenerate" // also broadcast by the authority

	// authority -> clients
	UserConnected       Type = "user.connected"
	UserDisconnected    Type = "user.disconnected"
	Question            Type = "question"
	QuestionAnswered    Type = "question.answered"
	QuestionTimeLeft    Type = "question.time-left"
	Leaderboard         Type = "leaderboard"
	DisplayUserAnswered Type = "display.user-answered"
	GameInvalid         Type = "game.invalid"
	GameOver            Type = "game.over"
)

// Event is an outbound event before it is encoded for the wire
type Event struct {
	Type Type
	Data any
}

// Envelope is the JSON frame exchanged over the socket
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event into an envelope frame
func Encode(ev Event) ([]byte, error) {
	env := Envelope{Type: ev.Type}
	if ev.Data != nil {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", ev.Type, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a frame into its envelope
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope missing type")
	}
	return env, nil
}

// Payload unmarshals the envelope data into v
func (e Envelope) Payload(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: unmarshal payload: %w", e.Type, err)
	}
	return nil
}
