package trivia_client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/trivia/go/internal/trivia/events"
)

func envelope(t *testing.T, typ events.Type, data any) events.Envelope {
	t.Helper()
	frame, err := events.Encode(events.Event{Type: typ, Data: data})
	require.NoError(t, err)
	env, err := events.Decode(frame)
	require.NoError(t, err)
	return env
}

func TestProjection_QuestionRound(t *testing.T) {
	p := NewProjection()

	for _, env := range []events.Envelope{
		envelope(t, events.UserConnected, events.UserConnectedPayload{Name: "bob"}),
		envelope(t, events.UserConnected, events.UserConnectedPayload{Name: "alice", Score: 5}),
		envelope(t, events.Question, events.QuestionPayload{ID: "q1", Text: "?", Answers: []string{"a", "b"}, Time: 20}),
		envelope(t, events.QuestionTimeLeft, events.TimeLeftPayload{Time: 19}),
		envelope(t, events.DisplayUserAnswered, events.DisplayUserAnsweredPayload{Name: "alice"}),
	} {
		require.NoError(t, p.Apply(env))
	}

	v := p.View()
	require.NotNil(t, v.Question)
	assert.Equal(t, "q1", v.Question.ID)
	assert.Equal(t, 19, v.TimeLeft)
	assert.Equal(t, []string{"alice"}, v.Answered)
	assert.Equal(t, []events.Standing{{Name: "alice", Score: 5}, {Name: "bob", Score: 0}}, v.Users)

	require.NoError(t, p.Apply(envelope(t, events.QuestionAnswered, events.QuestionAnsweredPayload{
		ID:            "q1",
		CorrectAnswer: 1,
		Users:         []events.UserResult{{User: "alice", Answer: 1, Correct: true}},
	})))
	require.NoError(t, p.Apply(envelope(t, events.Leaderboard, []events.Standing{{Name: "alice", Score: 15}, {Name: "bob", Score: 0}})))

	v = p.View()
	assert.Nil(t, v.Question)
	assert.Zero(t, v.TimeLeft)
	require.NotNil(t, v.LastResult)
	assert.Equal(t, 1, v.LastResult.CorrectAnswer)
	assert.Equal(t, []events.Standing{{Name: "alice", Score: 15}, {Name: "bob", Score: 0}}, v.Leaderboard)
	assert.Equal(t, []events.Standing{{Name: "alice", Score: 15}, {Name: "bob", Score: 0}}, v.Users)

	// the next question clears the answered marks
	require.NoError(t, p.Apply(envelope(t, events.Question, events.QuestionPayload{ID: "q2", Text: "?", Answers: []string{"a", "b"}, Time: 10})))
	assert.Empty(t, p.View().Answered)
}

func TestProjection_DisconnectAndRegenerate(t *testing.T) {
	p := NewProjection()
	require.NoError(t, p.Apply(envelope(t, events.UserConnected, events.UserConnectedPayload{Name: "alice"})))
	require.NoError(t, p.Apply(envelope(t, events.UserConnected, events.UserConnectedPayload{Name: "bob"})))
	require.NoError(t, p.Apply(envelope(t, events.UserDisconnected, events.UserDisconnectedPayload{Name: "bob"})))

	assert.Equal(t, []events.Standing{{Name: "alice"}}, p.View().Users)

	require.NoError(t, p.Apply(envelope(t, events.SessionRegenerate, events.SessionRegeneratePayload{})))
	v := p.View()
	assert.True(t, v.Regenerated)
	assert.Empty(t, v.Users)
}

func TestProjection_BadPayload(t *testing.T) {
	p := NewProjection()
	err := p.Apply(events.Envelope{Type: events.QuestionTimeLeft, Data: []byte(`"soon"`)})
	assert.Error(t, err)

	// unknown events are ignored
	assert.NoError(t, p.Apply(events.Envelope{Type: "something.else"}))
}
