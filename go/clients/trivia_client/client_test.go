package trivia_client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/trivia/go/internal/commander"
	"github.com/mcdev12/trivia/go/internal/trivia"
	"github.com/mcdev12/trivia/go/internal/trivia/events"
	"github.com/mcdev12/trivia/go/internal/trivia/gateway"
	"github.com/mcdev12/trivia/go/internal/trivia/questions"
	"github.com/mcdev12/trivia/go/internal/trivia/room"
	"github.com/mcdev12/trivia/go/internal/trivia/store"
)

func startServer(t *testing.T) string {
	t.Helper()

	bank, err := questions.New(trivia.Question{
		ID:      "q1",
		Text:    "Largest planet?",
		Answers: []string{"Earth", "Jupiter"},
		Correct: 1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cfg := gateway.DefaultConfig()
	cfg.Room = room.Config{
		Rules: trivia.Rules{QuestionTimeSec: 30, PointsPerCorrect: 10},
		Bank:  bank,
		Clock: clockwork.NewFakeClock(),
		Store: store.NewMemoryStore(),
	}
	svc := gateway.NewService(ctx, cfg)
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Start(ctx)
	}()

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return srv.URL
}

func connect(t *testing.T, url string, role gateway.Role) (*Client, <-chan events.Envelope) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c, err := Dial(ctx, url, role)
	require.NoError(t, err)

	seen := make(chan events.Envelope, 64)
	c.Chain().Push(commander.OnCommand("watch", func(cmd commander.Command) commander.Propagation {
		seen <- cmd.Payload.(events.Envelope)
		return commander.Continue
	}))

	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return c, seen
}

func waitFor(t *testing.T, seen <-chan events.Envelope, typ events.Type) events.Envelope {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case env := <-seen:
			if env.Type == typ {
				return env
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestClient_PlaysAGame(t *testing.T) {
	url := startServer(t)

	display, displaySeen := connect(t, url, gateway.RoleDisplay)
	require.NoError(t, display.RegisterDisplay())
	waitFor(t, displaySeen, events.Leaderboard)

	player, playerSeen := connect(t, url, gateway.RolePlayer)
	require.NoError(t, player.Join("alice"))
	waitFor(t, playerSeen, events.UserConnected)

	require.NoError(t, display.StartGame())
	q := waitFor(t, playerSeen, events.Question)

	var open events.QuestionPayload
	require.NoError(t, q.Payload(&open))
	assert.Equal(t, []string{"Earth", "Jupiter"}, open.Answers)
	assert.Equal(t, 30, open.Time)

	require.NoError(t, player.Answer(1))
	waitFor(t, playerSeen, events.GameOver)
	waitFor(t, displaySeen, events.GameOver)

	// handlers above the projection see an event first
	require.Eventually(t, func() bool { return player.Projection().View().GameOver }, time.Second, 5*time.Millisecond)

	view := player.Projection().View()
	assert.Nil(t, view.Question)
	assert.Equal(t, []events.Standing{{Name: "alice", Score: 10}}, view.Leaderboard)
	assert.Empty(t, view.Answered, "players are never told who answered")
	require.NotNil(t, view.LastResult)
	assert.Equal(t, []events.UserResult{{User: "alice", Answer: 1, Correct: true}}, view.LastResult.Users)

	assert.Equal(t, []string{"alice"}, display.Projection().View().Answered)

	ctx := context.Background()
	state, err := player.SessionState(ctx)
	require.NoError(t, err)
	assert.True(t, state.Active)
	assert.Equal(t, string(trivia.StateIdle), state.State)

	require.Eventually(t, func() bool {
		results, err := player.Results(ctx, 10)
		return err == nil && len(results) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestClient_InvalidActionIsProjected(t *testing.T) {
	url := startServer(t)

	player, seen := connect(t, url, gateway.RolePlayer)
	require.NoError(t, player.Answer(0))
	waitFor(t, seen, events.GameInvalid)

	require.Eventually(t, func() bool {
		return player.Projection().View().LastInvalid == trivia.ErrInvalidState.Error()
	}, time.Second, 5*time.Millisecond)
}

func TestClient_SendAfterClose(t *testing.T) {
	url := startServer(t)

	c, err := Dial(context.Background(), url, gateway.RolePlayer)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Join("alice"), ErrClosed)
}

func TestSocketURL(t *testing.T) {
	got, err := socketURL("http://localhost:8080", gateway.RoleDisplay)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/trivia?role=display", got)

	got, err = socketURL("https://quiz.example.com/", gateway.RolePlayer)
	require.NoError(t, err)
	assert.Equal(t, "wss://quiz.example.com/ws/trivia?role=player", got)

	_, err = socketURL("ftp://quiz.example.com", gateway.RolePlayer)
	assert.Error(t, err)
}
