package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/trivia/events"
)

// Message is one relayed game event
type Message struct {
	ID        uuid.UUID
	SessionID string
	Type      events.Type
	Frame     []byte // the same JSON envelope clients receive
	CreatedAt time.Time
}

// Subject returns the NATS subject for the message under prefix
func (m Message) Subject(prefix string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, m.SessionID, m.Type)
}

// Sink delivers relayed messages to an external bus
type Sink interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NoopSink drops everything; used when no bus is configured
type NoopSink struct{}

func (NoopSink) Publish(ctx context.Context, msg Message) error { return nil }
func (NoopSink) Close() error                                   { return nil }

// Relay queues broadcast events and forwards them to a Sink off the room
// goroutine, so a slow bus never stalls the game.
type Relay struct {
	sink           Sink
	queue          chan Message
	clock          clockwork.Clock
	publishTimeout time.Duration
}

// New creates a relay with the given queue size
func New(sink Sink, bufferSize int, clock clockwork.Clock) *Relay {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relay{
		sink:           sink,
		queue:          make(chan Message, bufferSize),
		clock:          clock,
		publishTimeout: 5 * time.Second,
	}
}

// Publish enqueues an event. It never blocks; when the queue is full the
// event is dropped and logged.
func (r *Relay) Publish(sessionID string, ev events.Event) {
	frame, err := events.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("failed to encode relayed event")
		return
	}

	msg := Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      ev.Type,
		Frame:     frame,
		CreatedAt: r.clock.Now(),
	}

	select {
	case r.queue <- msg:
	default:
		log.Warn().
			Str("session_id", sessionID).
			Str("event_type", string(ev.Type)).
			Msg("relay queue full, dropping event")
	}
}

// Run forwards queued messages until ctx is cancelled
func (r *Relay) Run(ctx context.Context) {
	log.Info().Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event relay shutting down")
			return
		case msg := <-r.queue:
			pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
			if err := r.sink.Publish(pubCtx, msg); err != nil {
				log.Error().
					Err(err).
					Str("session_id", msg.SessionID).
					Str("event_type", string(msg.Type)).
					Msg("failed to relay event")
			}
			cancel()
		}
	}
}
