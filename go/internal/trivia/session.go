package trivia

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/trivia/events"
)

// State is the question state of a session
type State string

const (
	StateIdle           State = "idle"
	StateQuestionOpen   State = "question_open"
	StateQuestionClosed State = "question_closed"
)

const maxNameLength = 32

// Rules configures timing and scoring
type Rules struct {
	QuestionTimeSec  int
	PointsPerCorrect int
	SpeedBonus       int // extra points per second left when the answer was given
}

// DefaultRules returns the rules used when none are configured
func DefaultRules() Rules {
	return Rules{
		QuestionTimeSec:  20,
		PointsPerCorrect: 10,
		SpeedBonus:       1,
	}
}

// User is a connected player
type User struct {
	Name   string
	Score  int
	ConnID string
}

// Emission is an event the authority has to deliver. An empty To means
// every client of the session.
type Emission struct {
	To    string
	Event events.Event
}

func broadcast(t events.Type, data any) Emission {
	return Emission{Event: events.Event{Type: t, Data: data}}
}

func sendTo(connID string, t events.Type, data any) Emission {
	return Emission{To: connID, Event: events.Event{Type: t, Data: data}}
}

// QuestionResult summarizes a closed question
type QuestionResult struct {
	SessionID string
	Question  Question
	Users     []events.UserResult
}

// CorrectCount returns how many players answered correctly
func (r QuestionResult) CorrectCount() int {
	n := 0
	for _, u := range r.Users {
		if u.Correct {
			n++
		}
	}
	return n
}

type answer struct {
	index    int
	timeLeft int
}

// View is a read-only copy of the session state
type View struct {
	SessionID string
	State     State
	TimeLeft  int
	Question  *Question
	Users     []User
	Answered  []string
}

// Session is the canonical game state. It is not safe for concurrent use;
// the room goroutine owns it.
type Session struct {
	ID    string
	rules Rules
	state State

	users    map[string]*User  // by name
	byConn   map[string]string // conn id -> name
	departed map[string]int    // scores of players who left, restored on reconnect

	current  *Question
	answers  map[string]answer
	timeLeft int
}

// NewSession creates an idle session
func NewSession(id string, rules Rules) *Session {
	if rules.QuestionTimeSec <= 0 {
		rules.QuestionTimeSec = DefaultRules().QuestionTimeSec
	}
	return &Session{
		ID:       id,
		rules:    rules,
		state:    StateIdle,
		users:    make(map[string]*User),
		byConn:   make(map[string]string),
		departed: make(map[string]int),
		answers:  make(map[string]answer),
	}
}

// State returns the current question state
func (s *Session) State() State { return s.state }

// TimeLeft returns the seconds left on the open question
func (s *Session) TimeLeft() int { return s.timeLeft }

// OpenQuestion returns the public payload of the open question
func (s *Session) OpenQuestion() (events.QuestionPayload, bool) {
	if s.state != StateQuestionOpen || s.current == nil {
		return events.QuestionPayload{}, false
	}
	return s.current.public(s.timeLeft), true
}

// Connect adds a player, or hands an existing name over to a new
// connection. The last connection for a name wins and the score is kept.
func (s *Session) Connect(connID, name string) ([]Emission, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	var out []Emission

	// same socket reconnecting under another name
	if prev, ok := s.byConn[connID]; ok && prev != name {
		out = append(out, s.remove(connID)...)
	}

	user, exists := s.users[name]
	switch {
	case exists && user.ConnID != connID:
		log.Warn().
			Str("session_id", s.ID).
			Str("name", name).
			Str("previous_conn", user.ConnID).
			Str("conn_id", connID).
			Msg("duplicate identity, last connect wins")
		delete(s.byConn, user.ConnID)
		out = append(out, sendTo(user.ConnID, events.GameInvalid, events.GameInvalidPayload{
			Reason: "name taken over by another connection",
		}))
		user.ConnID = connID
	case !exists:
		user = &User{Name: name, Score: s.departed[name], ConnID: connID}
		delete(s.departed, name)
		s.users[name] = user
	}
	s.byConn[connID] = name

	out = append(out, broadcast(events.UserConnected, events.UserConnectedPayload{
		Name:  user.Name,
		Score: user.Score,
	}))

	// late joiners get the open question
	if s.state == StateQuestionOpen && s.current != nil {
		out = append(out, sendTo(connID, events.Question, s.current.public(s.timeLeft)))
	}
	return out, nil
}

// Disconnect removes the player bound to connID. Unknown connections are
// ignored.
func (s *Session) Disconnect(connID string) []Emission {
	return s.remove(connID)
}

func (s *Session) remove(connID string) []Emission {
	name, ok := s.byConn[connID]
	if !ok {
		return nil
	}
	delete(s.byConn, connID)
	if user, ok := s.users[name]; ok {
		s.departed[name] = user.Score
		delete(s.users, name)
	}
	return []Emission{broadcast(events.UserDisconnected, events.UserDisconnectedPayload{Name: name})}
}

// Open starts a question. Answers from the previous question are dropped.
func (s *Session) Open(q Question) ([]Emission, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.state == StateQuestionOpen {
		return nil, ErrQuestionOpen
	}

	seconds := q.TimeSec
	if seconds == 0 {
		seconds = s.rules.QuestionTimeSec
	}

	s.current = &q
	s.answers = make(map[string]answer)
	s.timeLeft = seconds
	s.state = StateQuestionOpen

	return []Emission{broadcast(events.Question, q.public(seconds))}, nil
}

// Answer records a player's answer. A second answer to the same question
// replaces the first.
func (s *Session) Answer(connID string, index int) ([]Emission, error) {
	name, ok := s.byConn[connID]
	if !ok {
		return nil, ErrUnknownUser
	}

	switch s.state {
	case StateIdle:
		return nil, ErrInvalidState
	case StateQuestionClosed:
		return nil, ErrQuestionClosed
	}

	if index < 0 || index >= len(s.current.Answers) {
		return nil, fmt.Errorf("%w: %d", ErrAnswerOutOfRange, index)
	}

	s.answers[name] = answer{index: index, timeLeft: s.timeLeft}
	return []Emission{broadcast(events.DisplayUserAnswered, events.DisplayUserAnsweredPayload{Name: name})}, nil
}

// AllAnswered reports whether every connected player answered the open question
func (s *Session) AllAnswered() bool {
	if s.state != StateQuestionOpen || len(s.users) == 0 {
		return false
	}
	for name := range s.users {
		if _, ok := s.answers[name]; !ok {
			return false
		}
	}
	return true
}

// Tick moves the countdown one second. expired is true once it hits zero.
func (s *Session) Tick() (out []Emission, expired bool) {
	if s.state != StateQuestionOpen {
		return nil, false
	}
	if s.timeLeft > 0 {
		s.timeLeft--
	}
	out = []Emission{broadcast(events.QuestionTimeLeft, events.TimeLeftPayload{Time: s.timeLeft})}
	return out, s.timeLeft == 0
}

// Close ends the open question, scores it and reveals the answer
func (s *Session) Close() ([]Emission, QuestionResult, error) {
	if s.state != StateQuestionOpen {
		return nil, QuestionResult{}, ErrInvalidState
	}

	q := *s.current
	results := make([]events.UserResult, 0, len(s.answers))
	for name, a := range s.answers {
		correct := a.index == q.Correct
		results = append(results, events.UserResult{User: name, Answer: a.index, Correct: correct})
		if !correct {
			continue
		}
		points := s.rules.PointsPerCorrect + a.timeLeft*s.rules.SpeedBonus
		if user, ok := s.users[name]; ok {
			user.Score += points
		} else {
			s.departed[name] += points
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].User < results[j].User })

	s.state = StateQuestionClosed
	s.timeLeft = 0

	out := []Emission{
		broadcast(events.QuestionAnswered, events.QuestionAnsweredPayload{
			ID:            q.ID,
			Question:      q.Text,
			Answers:       q.Answers,
			CorrectAnswer: q.Correct,
			Users:         results,
		}),
		broadcast(events.Leaderboard, s.Leaderboard()),
	}
	return out, QuestionResult{SessionID: s.ID, Question: q, Users: results}, nil
}

// Finish returns the session to idle and announces the final standings
func (s *Session) Finish() []Emission {
	s.state = StateIdle
	s.current = nil
	s.answers = make(map[string]answer)
	s.timeLeft = 0
	return []Emission{broadcast(events.GameOver, events.GameOverPayload{Leaderboard: s.FinalStandings()})}
}

// ResetScores zeroes every score before a new game
func (s *Session) ResetScores() {
	for _, u := range s.users {
		u.Score = 0
	}
	s.departed = make(map[string]int)
}

// Leaderboard returns connected players by score, best first
func (s *Session) Leaderboard() []events.Standing {
	out := make([]events.Standing, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, events.Standing{Name: u.Name, Score: u.Score})
	}
	sortStandings(out)
	return out
}

// FinalStandings is the leaderboard plus players who left since the scores
// were last reset, so a game's points are never lost to a disconnect.
func (s *Session) FinalStandings() []events.Standing {
	out := make([]events.Standing, 0, len(s.users)+len(s.departed))
	for _, u := range s.users {
		out = append(out, events.Standing{Name: u.Name, Score: u.Score})
	}
	for name, score := range s.departed {
		out = append(out, events.Standing{Name: name, Score: score})
	}
	sortStandings(out)
	return out
}

func sortStandings(out []events.Standing) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
}

// Answers returns a copy of the recorded answers by player name
func (s *Session) Answers() map[string]int {
	out := make(map[string]int, len(s.answers))
	for name, a := range s.answers {
		out[name] = a.index
	}
	return out
}

// Snapshot copies the session for readers outside the room goroutine
func (s *Session) Snapshot() View {
	v := View{
		SessionID: s.ID,
		State:     s.state,
		TimeLeft:  s.timeLeft,
	}
	if s.current != nil {
		q := *s.current
		q.Answers = append([]string(nil), s.current.Answers...)
		v.Question = &q
	}
	for _, u := range s.users {
		v.Users = append(v.Users, *u)
	}
	sort.Slice(v.Users, func(i, j int) bool { return v.Users[i].Name < v.Users[j].Name })
	for name := range s.answers {
		v.Answered = append(v.Answered, name)
	}
	sort.Strings(v.Answered)
	return v
}
