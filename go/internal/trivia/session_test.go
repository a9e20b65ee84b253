package trivia

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/trivia/go/internal/trivia/events"
)

func sampleQuestion() Question {
	return Question{
		ID:      "q1",
		Text:    "Which planet is known as the red planet?",
		Answers: []string{"Venus", "Mars", "Jupiter"},
		Correct: 1,
		TimeSec: 10,
	}
}

func findEmission(t *testing.T, out []Emission, typ events.Type) Emission {
	t.Helper()
	for _, e := range out {
		if e.Event.Type == typ {
			return e
		}
	}
	t.Fatalf("no %s emission in %+v", typ, out)
	return Emission{}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("session-1", Rules{QuestionTimeSec: 20, PointsPerCorrect: 10, SpeedBonus: 1})
	_, err := s.Connect("c-alice", "alice")
	require.NoError(t, err)
	_, err = s.Connect("c-bob", "bob")
	require.NoError(t, err)
	return s
}

func TestSession_QuestionLifecycle(t *testing.T) {
	s := newTestSession(t)

	out, err := s.Open(sampleQuestion())
	require.NoError(t, err)
	assert.Equal(t, StateQuestionOpen, s.State())
	assert.Empty(t, s.Answers())

	q := findEmission(t, out, events.Question)
	assert.Empty(t, q.To, "question is broadcast")
	payload := q.Event.Data.(events.QuestionPayload)
	assert.Equal(t, []string{"Venus", "Mars", "Jupiter"}, payload.Answers)
	assert.Equal(t, 10, payload.Time)

	_, err = s.Answer("c-alice", 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice": 1}, s.Answers())

	out, result, err := s.Close()
	require.NoError(t, err)
	assert.Equal(t, StateQuestionClosed, s.State())

	answered := findEmission(t, out, events.QuestionAnswered).Event.Data.(events.QuestionAnsweredPayload)
	assert.Equal(t, 1, answered.CorrectAnswer)
	require.Len(t, answered.Users, 1)
	assert.Equal(t, events.UserResult{User: "alice", Answer: 1, Correct: true}, answered.Users[0])
	assert.Equal(t, 1, result.CorrectCount())

	board := findEmission(t, out, events.Leaderboard).Event.Data.([]events.Standing)
	assert.Equal(t, []events.Standing{{Name: "alice", Score: 20}, {Name: "bob", Score: 0}}, board)
}

func TestSession_OpenResetsAnswers(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)
	_, err = s.Answer("c-bob", 0)
	require.NoError(t, err)
	_, _, err = s.Close()
	require.NoError(t, err)

	_, err = s.Open(sampleQuestion())
	require.NoError(t, err)
	assert.Empty(t, s.Answers())
}

func TestSession_AnswerOverwrites(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)

	_, err = s.Answer("c-alice", 0)
	require.NoError(t, err)
	_, err = s.Answer("c-alice", 2)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"alice": 2}, s.Answers())
}

func TestSession_AnswerRejections(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Answer("c-alice", 1)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.True(t, Rejected(err))
	assert.Empty(t, s.Answers())
	assert.Equal(t, StateIdle, s.State())

	_, err = s.Open(sampleQuestion())
	require.NoError(t, err)

	_, err = s.Answer("c-unknown", 1)
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = s.Answer("c-alice", 3)
	assert.ErrorIs(t, err, ErrAnswerOutOfRange)

	_, _, err = s.Close()
	require.NoError(t, err)

	_, err = s.Answer("c-alice", 1)
	assert.ErrorIs(t, err, ErrQuestionClosed)
	assert.False(t, Rejected(err), "late answers are dropped without a reply")
}

func TestSession_AnswerNotifiesWithoutRevealing(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)

	out, err := s.Answer("c-bob", 2)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, events.DisplayUserAnswered, out[0].Event.Type)
	assert.Equal(t, events.DisplayUserAnsweredPayload{Name: "bob"}, out[0].Event.Data)
}

func TestSession_TickCountsDown(t *testing.T) {
	s := newTestSession(t)
	q := sampleQuestion()
	q.TimeSec = 2
	_, err := s.Open(q)
	require.NoError(t, err)

	out, expired := s.Tick()
	assert.False(t, expired)
	assert.Equal(t, events.TimeLeftPayload{Time: 1}, out[0].Event.Data)

	out, expired = s.Tick()
	assert.True(t, expired)
	assert.Equal(t, events.TimeLeftPayload{Time: 0}, out[0].Event.Data)

	_, _, err = s.Close()
	require.NoError(t, err)
	out, expired = s.Tick()
	assert.Nil(t, out)
	assert.False(t, expired)
}

func TestSession_AllAnswered(t *testing.T) {
	s := newTestSession(t)
	assert.False(t, s.AllAnswered())

	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)
	_, err = s.Answer("c-alice", 1)
	require.NoError(t, err)
	assert.False(t, s.AllAnswered())

	_, err = s.Answer("c-bob", 0)
	require.NoError(t, err)
	assert.True(t, s.AllAnswered())
}

func TestSession_DuplicateIdentityKeepsScore(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)
	_, err = s.Answer("c-alice", 1)
	require.NoError(t, err)
	_, _, err = s.Close()
	require.NoError(t, err)

	out, err := s.Connect("c-alice-2", "alice")
	require.NoError(t, err)

	kicked := findEmission(t, out, events.GameInvalid)
	assert.Equal(t, "c-alice", kicked.To)
	connected := findEmission(t, out, events.UserConnected).Event.Data.(events.UserConnectedPayload)
	assert.Equal(t, 20, connected.Score)

	_, err = s.Answer("c-alice", 0)
	assert.ErrorIs(t, err, ErrUnknownUser, "the replaced connection no longer speaks for alice")
}

func TestSession_ReconnectRestoresScore(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)
	_, err = s.Answer("c-bob", 1)
	require.NoError(t, err)
	_, _, err = s.Close()
	require.NoError(t, err)

	out := s.Disconnect("c-bob")
	require.Len(t, out, 1)
	assert.Equal(t, events.UserDisconnectedPayload{Name: "bob"}, out[0].Event.Data)
	assert.Len(t, s.Leaderboard(), 1)

	assert.Nil(t, s.Disconnect("c-bob"))

	out, err = s.Connect("c-bob-2", "bob")
	require.NoError(t, err)
	connected := findEmission(t, out, events.UserConnected).Event.Data.(events.UserConnectedPayload)
	assert.Equal(t, 20, connected.Score)
}

func TestSession_LateJoinerReceivesOpenQuestion(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)
	s.Tick()

	out, err := s.Connect("c-carol", "carol")
	require.NoError(t, err)

	q := findEmission(t, out, events.Question)
	assert.Equal(t, "c-carol", q.To)
	assert.Equal(t, 9, q.Event.Data.(events.QuestionPayload).Time)
}

func TestSession_ConnectRejectsBadNames(t *testing.T) {
	s := NewSession("s", DefaultRules())
	_, err := s.Connect("c1", "   ")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = s.Connect("c1", "a-name-that-is-definitely-way-too-long-for-a-board")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestSession_OpenRejectsInvalidAndDouble(t *testing.T) {
	s := newTestSession(t)

	bad := sampleQuestion()
	bad.Correct = 7
	_, err := s.Open(bad)
	assert.ErrorIs(t, err, ErrInvalidQuestion)

	_, err = s.Open(sampleQuestion())
	require.NoError(t, err)
	_, err = s.Open(sampleQuestion())
	assert.ErrorIs(t, err, ErrQuestionOpen)
}

func TestSession_FinishReturnsToIdle(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)
	_, _, err = s.Close()
	require.NoError(t, err)

	out := s.Finish()
	assert.Equal(t, StateIdle, s.State())
	over := findEmission(t, out, events.GameOver).Event.Data.(events.GameOverPayload)
	assert.Len(t, over.Leaderboard, 2)

	s.ResetScores()
	for _, st := range s.Leaderboard() {
		assert.Zero(t, st.Score)
	}
}

func TestSession_FinalStandingsKeepPlayersWhoLeft(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)
	_, err = s.Answer("c-bob", 1)
	require.NoError(t, err)
	_, _, err = s.Close()
	require.NoError(t, err)

	s.Disconnect("c-bob")

	// the live leaderboard only lists connected players
	assert.Equal(t, []events.Standing{{Name: "alice", Score: 0}}, s.Leaderboard())

	over := findEmission(t, s.Finish(), events.GameOver).Event.Data.(events.GameOverPayload)
	assert.Equal(t, []events.Standing{{Name: "bob", Score: 20}, {Name: "alice", Score: 0}}, over.Leaderboard)

	// a new game forgets them
	s.ResetScores()
	assert.Equal(t, []events.Standing{{Name: "alice", Score: 0}}, s.FinalStandings())
}

func TestSession_SpeedBonus(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Open(sampleQuestion())
	require.NoError(t, err)

	_, err = s.Answer("c-alice", 1) // 10 seconds left
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		s.Tick()
	}
	_, err = s.Answer("c-bob", 1) // 4 seconds left
	require.NoError(t, err)

	_, _, err = s.Close()
	require.NoError(t, err)

	assert.Equal(t, []events.Standing{{Name: "alice", Score: 20}, {Name: "bob", Score: 14}}, s.Leaderboard())
}
