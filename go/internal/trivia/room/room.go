package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/trivia"
	"github.com/mcdev12/trivia/go/internal/trivia/events"
	"github.com/mcdev12/trivia/go/internal/trivia/questions"
	"github.com/mcdev12/trivia/go/internal/trivia/store"
)

// Broadcaster delivers events to connected clients
type Broadcaster interface {
	Broadcast(ev events.Event)
	SendTo(connID string, ev events.Event)
}

// Publisher mirrors broadcast events to an external bus
type Publisher interface {
	Publish(sessionID string, ev events.Event)
}

// Config holds the room's collaborators and game settings
type Config struct {
	Rules        trivia.Rules
	Intermission time.Duration
	Bank         *questions.Bank
	Clock        clockwork.Clock
	Store        store.Store // optional
	Relay        Publisher   // optional
}

// Room is the session authority. A single goroutine owns the session, so
// every mutation happens in inbox order.
type Room struct {
	inbox chan Msg
	cfg   Config
	clock clockwork.Clock
	out   Broadcaster

	session  *trivia.Session
	displays map[string]bool
	running  bool
	played   int

	// countdown / intermission
	gen         uint64
	ticker      clockwork.Ticker
	timer       clockwork.Timer
	cancelTimer context.CancelFunc

	ctx     context.Context
	cancel  context.CancelFunc
	persist sync.WaitGroup
	done    chan struct{}
}

// New starts a room goroutine bound to parent
func New(parent context.Context, cfg Config, out Broadcaster) *Room {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Intermission <= 0 {
		cfg.Intermission = 5 * time.Second
	}
	if cfg.Rules == (trivia.Rules{}) {
		cfg.Rules = trivia.DefaultRules()
	}

	r := &Room{
		inbox:    make(chan Msg, 64),
		cfg:      cfg,
		clock:    cfg.Clock,
		out:      out,
		displays: make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go r.loop()
	return r
}

// Inbox exposes the inbox so the gateway or tests can send messages
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Send delivers msg unless the room has stopped
func (r *Room) Send(msg Msg) {
	select {
	case r.inbox <- msg:
	case <-r.done:
	}
}

// State returns a snapshot of the room, or false if the room has stopped
func (r *Room) State(ctx context.Context) (Snapshot, bool) {
	reply := make(chan Snapshot, 1)
	select {
	case r.inbox <- GetState{Reply: reply}:
	case <-r.done:
		return Snapshot{}, false
	case <-ctx.Done():
		return Snapshot{}, false
	}
	select {
	case snap := <-reply:
		return snap, true
	case <-r.done:
		return Snapshot{}, false
	case <-ctx.Done():
		return Snapshot{}, false
	}
}

// Done is closed once the room goroutine exits
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case RegisterDisplay:
				r.registerDisplay(msg.ConnID)

			case Connect:
				r.connect(msg.ConnID, msg.Name)

			case Answer:
				r.answer(msg.ConnID, msg.Index)

			case StartGame:
				r.startGame(msg.ConnID)

			case CloseQuestion:
				if err := r.requireDisplay(msg.ConnID); err != nil {
					r.reject(msg.ConnID, err)
					break
				}
				if r.session.State() == trivia.StateQuestionOpen {
					r.closeQuestion()
				}

			case NextQuestion:
				if err := r.requireDisplay(msg.ConnID); err != nil {
					r.reject(msg.ConnID, err)
					break
				}
				if r.running && r.session.State() == trivia.StateQuestionClosed {
					r.openNext()
				}

			case Regenerate:
				if err := r.requireDisplay(msg.ConnID); err != nil {
					r.reject(msg.ConnID, err)
					break
				}
				r.regenerate()

			case Leave:
				r.leave(msg.ConnID)

			case tick:
				if msg.gen != r.gen || r.session == nil {
					break // stale
				}
				out, expired := r.session.Tick()
				r.deliver(out)
				if expired {
					r.closeQuestion()
				}

			case intermissionDone:
				if msg.gen != r.gen || !r.running {
					break
				}
				r.openNext()

			case GetState:
				msg.Reply <- r.snapshot()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) registerDisplay(connID string) {
	if r.session == nil {
		r.session = trivia.NewSession(uuid.NewString(), r.cfg.Rules)
		log.Info().Str("session_id", r.session.ID).Msg("session created")
	}
	r.displays[connID] = true

	r.out.SendTo(connID, events.Event{Type: events.Leaderboard, Data: r.session.Leaderboard()})
	if q, ok := r.session.OpenQuestion(); ok {
		r.out.SendTo(connID, events.Event{Type: events.Question, Data: q})
	}

	log.Info().
		Str("session_id", r.session.ID).
		Str("conn_id", connID).
		Int("displays", len(r.displays)).
		Msg("display registered")
}

func (r *Room) connect(connID, name string) {
	if r.session == nil {
		r.reject(connID, trivia.ErrInvalidState)
		return
	}
	out, err := r.session.Connect(connID, name)
	if err != nil {
		r.reject(connID, err)
		return
	}
	r.deliver(out)
	log.Info().
		Str("session_id", r.session.ID).
		Str("conn_id", connID).
		Str("name", name).
		Msg("user connected")
}

func (r *Room) answer(connID string, index int) {
	if r.session == nil {
		r.reject(connID, trivia.ErrInvalidState)
		return
	}
	out, err := r.session.Answer(connID, index)
	if err != nil {
		if trivia.Rejected(err) {
			r.reject(connID, err)
			return
		}
		log.Debug().Err(err).Str("conn_id", connID).Msg("answer dropped")
		return
	}
	r.deliver(out)
	if r.session.AllAnswered() {
		log.Debug().Str("session_id", r.session.ID).Msg("every player answered, closing early")
		r.closeQuestion()
	}
}

func (r *Room) startGame(connID string) {
	if err := r.requireDisplay(connID); err != nil {
		r.reject(connID, err)
		return
	}
	if r.cfg.Bank == nil || r.cfg.Bank.Len() == 0 {
		r.reject(connID, trivia.ErrNoQuestions)
		return
	}
	if r.running {
		r.reject(connID, trivia.ErrGameAlreadyRunning)
		return
	}

	r.session.ResetScores()
	r.running = true
	r.played = 0
	log.Info().
		Str("session_id", r.session.ID).
		Int("questions", r.cfg.Bank.Len()).
		Msg("game started")
	r.openNext()
}

func (r *Room) openNext() {
	q, ok := r.cfg.Bank.At(r.played)
	if !ok {
		r.finishGame()
		return
	}
	r.played++

	out, err := r.session.Open(q)
	if err != nil {
		log.Error().Err(err).Str("question_id", q.ID).Msg("failed to open question")
		r.finishGame()
		return
	}
	r.deliver(out)
	r.startCountdown()
}

func (r *Room) closeQuestion() {
	r.stopTimers()
	out, result, err := r.session.Close()
	if err != nil {
		log.Warn().Err(err).Msg("close requested with no open question")
		return
	}
	r.deliver(out)
	r.saveResult(result)

	if !r.running {
		return
	}
	if r.played < r.cfg.Bank.Len() {
		r.startIntermission()
		return
	}
	r.finishGame()
}

func (r *Room) finishGame() {
	r.stopTimers()
	r.running = false
	out := r.session.Finish()
	r.deliver(out)

	if over, ok := out[0].Event.Data.(events.GameOverPayload); ok {
		r.saveScores(r.session.ID, over.Leaderboard)
	}
	log.Info().Str("session_id", r.session.ID).Msg("game over")
}

func (r *Room) regenerate() {
	r.stopTimers()
	old := r.session.ID
	r.broadcast(events.Event{
		Type: events.SessionRegenerate,
		Data: events.SessionRegeneratePayload{Reason: "session regenerated"},
	})
	r.session = nil
	r.running = false
	r.played = 0
	clear(r.displays)
	log.Info().Str("session_id", old).Msg("session regenerated")
}

func (r *Room) leave(connID string) {
	delete(r.displays, connID)
	if r.session == nil {
		return
	}
	r.deliver(r.session.Disconnect(connID))
	if r.session.AllAnswered() {
		r.closeQuestion()
	}
}

func (r *Room) requireDisplay(connID string) error {
	if r.session == nil {
		return trivia.ErrInvalidState
	}
	if !r.displays[connID] {
		return trivia.ErrNotDisplay
	}
	return nil
}

// reject answers the sender only; rejections are never broadcast
func (r *Room) reject(connID string, err error) {
	r.out.SendTo(connID, events.Event{Type: events.GameInvalid, Data: events.GameInvalidPayload{Reason: err.Error()}})
	log.Debug().Err(err).Str("conn_id", connID).Msg("action rejected")
}

func (r *Room) deliver(out []trivia.Emission) {
	for _, e := range out {
		if e.To == "" {
			r.broadcast(e.Event)
			continue
		}
		r.out.SendTo(e.To, e.Event)
	}
}

func (r *Room) broadcast(ev events.Event) {
	r.out.Broadcast(ev)
	if r.cfg.Relay != nil && r.session != nil {
		r.cfg.Relay.Publish(r.session.ID, ev)
	}
}

func (r *Room) saveResult(res trivia.QuestionResult) {
	if r.cfg.Store == nil {
		return
	}
	rec := store.QuestionRecord{
		ID:            uuid.New(),
		SessionID:     res.SessionID,
		QuestionID:    res.Question.ID,
		Text:          res.Question.Text,
		Photo:         res.Question.Photo,
		CorrectAnswer: res.Question.Correct,
		AnsweredCount: len(res.Users),
		CorrectCount:  res.CorrectCount(),
		ClosedAt:      r.clock.Now(),
	}

	r.persist.Add(1)
	go func() {
		defer r.persist.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), 5*time.Second)
		defer cancel()
		if err := r.cfg.Store.SaveQuestionResult(ctx, rec); err != nil {
			log.Error().Err(err).Str("question_id", rec.QuestionID).Msg("failed to save question result")
		}
	}()
}

func (r *Room) saveScores(sessionID string, standings []events.Standing) {
	if r.cfg.Store == nil {
		return
	}
	finishedAt := r.clock.Now()

	r.persist.Add(1)
	go func() {
		defer r.persist.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), 5*time.Second)
		defer cancel()
		if err := r.cfg.Store.SaveFinalScores(ctx, sessionID, standings, finishedAt); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("failed to save final scores")
		}
	}()
}

func (r *Room) snapshot() Snapshot {
	snap := Snapshot{
		Running:  r.running,
		Played:   r.played,
		Displays: len(r.displays),
	}
	if r.cfg.Bank != nil {
		snap.Total = r.cfg.Bank.Len()
	}
	if r.session != nil {
		v := r.session.Snapshot()
		snap.Session = &v
	}
	return snap
}

func (r *Room) shutdown() {
	r.stopTimers()
	r.cancel()
	r.persist.Wait()
	log.Info().Msg("room stopped")
}
