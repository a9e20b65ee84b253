package main

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/commander"
	"github.com/mcdev12/trivia/go/internal/trivia/events"
)

type answerer interface {
	Answer(index int) error
}

// bot answers every question with a random choice after a random delay
type bot struct {
	name     string
	client   answerer
	clock    clockwork.Clock
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration

	mu      sync.Mutex
	pending clockwork.Timer
	done    chan struct{}
	once    sync.Once
}

func newBot(name string, client answerer, clock clockwork.Clock, seed uint64, minDelay, maxDelay time.Duration) *bot {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &bot{
		name:     name,
		client:   client,
		clock:    clock,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		minDelay: minDelay,
		maxDelay: maxDelay,
		done:     make(chan struct{}),
	}
}

func (b *bot) commander() *commander.Commander {
	return commander.OnCommand("bot:"+b.name, b.handle)
}

func (b *bot) handle(cmd commander.Command) commander.Propagation {
	env := cmd.Payload.(events.Envelope)

	switch env.Type {
	case events.Question:
		var q events.QuestionPayload
		if err := env.Payload(&q); err != nil || len(q.Answers) == 0 {
			log.Warn().Err(err).Str("bot", b.name).Msg("unusable question")
			return commander.Continue
		}
		b.schedule(b.rng.IntN(len(q.Answers)), b.delay(q.Time))

	case events.QuestionAnswered:
		b.cancel()

	case events.GameInvalid:
		var p events.GameInvalidPayload
		_ = env.Payload(&p)
		log.Warn().Str("bot", b.name).Str("reason", p.Reason).Msg("action rejected")

	case events.GameOver, events.SessionRegenerate:
		b.cancel()
		log.Info().Str("bot", b.name).Str("event", string(env.Type)).Msg("bot leaving")
		b.once.Do(func() { close(b.done) })
	}
	return commander.Continue
}

// delay picks a wait inside [minDelay, maxDelay], kept under the question time
func (b *bot) delay(questionSec int) time.Duration {
	d := b.minDelay
	if span := b.maxDelay - b.minDelay; span > 0 {
		d += time.Duration(b.rng.Int64N(int64(span)))
	}
	if limit := time.Duration(questionSec)*time.Second - 500*time.Millisecond; questionSec > 0 && d > limit {
		d = max(limit, 0)
	}
	return d
}

func (b *bot) schedule(index int, delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending != nil {
		b.pending.Stop()
	}
	b.pending = b.clock.AfterFunc(delay, func() {
		if err := b.client.Answer(index); err != nil {
			log.Error().Err(err).Str("bot", b.name).Msg("failed to answer")
			return
		}
		log.Debug().Str("bot", b.name).Int("answer", index).Dur("after", delay).Msg("answered")
	})
}

func (b *bot) cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
}

// Done is closed when the game the bot joined is over
func (b *bot) Done() <-chan struct{} { return b.done }
