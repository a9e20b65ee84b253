package trivia_client

import (
	"sort"
	"sync"

	"github.com/mcdev12/trivia/go/internal/trivia/events"
)

// Projection is the client's read-only view of the session, rebuilt from
// the events the server sends. It never changes game state.
type Projection struct {
	mu sync.RWMutex

	scores      map[string]int
	question    *events.QuestionPayload
	timeLeft    int
	answered    map[string]bool
	leaderboard []events.Standing
	lastResult  *events.QuestionAnsweredPayload
	lastInvalid string
	over        bool
	regenerated bool
}

// View is a copy of the projection
type View struct {
	Users       []events.Standing // by name
	Question    *events.QuestionPayload
	TimeLeft    int
	Answered    []string // display only
	Leaderboard []events.Standing
	LastResult  *events.QuestionAnsweredPayload
	LastInvalid string
	GameOver    bool
	Regenerated bool
}

func NewProjection() *Projection {
	return &Projection{
		scores:   make(map[string]int),
		answered: make(map[string]bool),
	}
}

// Apply folds one server event into the projection. Events the projection
// does not track are ignored.
func (p *Projection) Apply(env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch env.Type {
	case events.UserConnected:
		var d events.UserConnectedPayload
		if err := env.Payload(&d); err != nil {
			return err
		}
		p.scores[d.Name] = d.Score

	case events.UserDisconnected:
		var d events.UserDisconnectedPayload
		if err := env.Payload(&d); err != nil {
			return err
		}
		delete(p.scores, d.Name)
		delete(p.answered, d.Name)

	case events.Question:
		var d events.QuestionPayload
		if err := env.Payload(&d); err != nil {
			return err
		}
		p.question = &d
		p.timeLeft = d.Time
		p.answered = make(map[string]bool)
		p.over = false

	case events.QuestionTimeLeft:
		var d events.TimeLeftPayload
		if err := env.Payload(&d); err != nil {
			return err
		}
		p.timeLeft = d.Time

	case events.DisplayUserAnswered:
		var d events.DisplayUserAnsweredPayload
		if err := env.Payload(&d); err != nil {
			return err
		}
		p.answered[d.Name] = true

	case events.QuestionAnswered:
		var d events.QuestionAnsweredPayload
		if err := env.Payload(&d); err != nil {
			return err
		}
		p.lastResult = &d
		p.question = nil
		p.timeLeft = 0

	case events.Leaderboard:
		var d []events.Standing
		if len(env.Data) > 0 {
			if err := env.Payload(&d); err != nil {
				return err
			}
		}
		p.leaderboard = d
		for _, s := range d {
			p.scores[s.Name] = s.Score
		}

	case events.GameOver:
		var d events.GameOverPayload
		if err := env.Payload(&d); err != nil {
			return err
		}
		p.leaderboard = d.Leaderboard
		p.question = nil
		p.over = true

	case events.GameInvalid:
		var d events.GameInvalidPayload
		if err := env.Payload(&d); err != nil {
			return err
		}
		p.lastInvalid = d.Reason

	case events.SessionRegenerate:
		p.scores = make(map[string]int)
		p.answered = make(map[string]bool)
		p.question = nil
		p.timeLeft = 0
		p.leaderboard = nil
		p.lastResult = nil
		p.regenerated = true
	}
	return nil
}

// View returns a copy of the projection
func (p *Projection) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v := View{
		TimeLeft:    p.timeLeft,
		Leaderboard: append([]events.Standing(nil), p.leaderboard...),
		LastInvalid: p.lastInvalid,
		GameOver:    p.over,
		Regenerated: p.regenerated,
	}
	if p.question != nil {
		q := *p.question
		q.Answers = append([]string(nil), p.question.Answers...)
		v.Question = &q
	}
	if p.lastResult != nil {
		r := *p.lastResult
		r.Users = append([]events.UserResult(nil), p.lastResult.Users...)
		v.LastResult = &r
	}
	for name, score := range p.scores {
		v.Users = append(v.Users, events.Standing{Name: name, Score: score})
	}
	sort.Slice(v.Users, func(i, j int) bool { return v.Users[i].Name < v.Users[j].Name })
	for name := range p.answered {
		v.Answered = append(v.Answered, name)
	}
	sort.Strings(v.Answered)
	return v
}
