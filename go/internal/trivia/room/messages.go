package room

import "github.com/mcdev12/trivia/go/internal/trivia"

type Msg interface{ isRoomMsg() }

// RegisterDisplay is sent once by a display client on load. The first
// display creates the session.
type RegisterDisplay struct{ ConnID string }

// Connect is a player's user.connect
type Connect struct {
	ConnID string
	Name   string
}

// Answer is a player's user.answered
type Answer struct {
	ConnID string
	Index  int
}

// StartGame plays the question bank from the top
type StartGame struct{ ConnID string }

// CloseQuestion closes the open question before the countdown ends
type CloseQuestion struct{ ConnID string }

// NextQuestion skips the intermission
type NextQuestion struct{ ConnID string }

// Regenerate drops the session; every client has to reconnect
type Regenerate struct{ ConnID string }

// Leave is sent when a socket closes
type Leave struct{ ConnID string }

// Shutdown stops the room
type Shutdown struct{}

// GetState asks for a copy of the room state
type GetState struct {
	Reply chan Snapshot
}

type tick struct{ gen uint64 }

type intermissionDone struct{ gen uint64 }

func (RegisterDisplay) isRoomMsg()  {}
func (Connect) isRoomMsg()          {}
func (Answer) isRoomMsg()           {}
func (StartGame) isRoomMsg()        {}
func (CloseQuestion) isRoomMsg()    {}
func (NextQuestion) isRoomMsg()     {}
func (Regenerate) isRoomMsg()       {}
func (Leave) isRoomMsg()            {}
func (Shutdown) isRoomMsg()         {}
func (GetState) isRoomMsg()         {}
func (tick) isRoomMsg()             {}
func (intermissionDone) isRoomMsg() {}

// Snapshot is a copy of the room state, safe to read anywhere
type Snapshot struct {
	Session  *trivia.View // nil until a display registers
	Running  bool
	Played   int // questions opened in the current game
	Total    int // questions in the bank
	Displays int
}
