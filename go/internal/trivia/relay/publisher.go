package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConfig describes the NATS server and the stream game events land in
type JetStreamConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
	// KeepFor bounds how long a finished game's events stay replayable
	KeepFor time.Duration
	// KeepPerSubject caps messages per session and event type; -1 keeps all
	KeepPerSubject int64
	// DedupeWindow matches relayed event IDs against redeliveries
	DedupeWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:            nats.DefaultURL,
		Stream:         "TRIVIA_EVENTS",
		SubjectPrefix:  "trivia.events",
		KeepFor:        24 * time.Hour,
		KeepPerSubject: 500,
		DedupeWindow:   time.Minute,
	}
}

// StreamConfig is the stream layout: one subject per session and event
// type, under SubjectPrefix.<session>.<type>
func (c JetStreamConfig) StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:              c.Stream,
		Description:       "Trivia session events relayed from the room",
		Subjects:          []string{c.SubjectPrefix + ".>"},
		Retention:         jetstream.LimitsPolicy,
		Discard:           jetstream.DiscardOld,
		MaxAge:            c.KeepFor,
		MaxMsgsPerSubject: c.KeepPerSubject,
		Storage:           jetstream.FileStorage,
		Duplicates:        c.DedupeWindow,
	}
}

// JetStreamSink publishes relayed game events to a JetStream stream
type JetStreamSink struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamSink connects to NATS and creates the stream, or brings an
// existing one in line with cfg
func NewJetStreamSink(ctx context.Context, cfg JetStreamConfig) (*JetStreamSink, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("trivia-relay"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("relay lost NATS, events are dropped until it reconnects")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("relay reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, cfg.StreamConfig())
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("set up stream %s: %w", cfg.Stream, err)
	}
	log.Info().
		Str("stream", stream.CachedInfo().Config.Name).
		Uint64("messages", stream.CachedInfo().State.Msgs).
		Msg("relay stream ready")

	return &JetStreamSink{nc: nc, js: js, config: cfg}, nil
}

func (s *JetStreamSink) Publish(ctx context.Context, msg Message) error {
	subject := msg.Subject(s.config.SubjectPrefix)

	ack, err := s.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    msg.Frame,
		Header: nats.Header{
			"Event-Type": []string{string(msg.Type)},
			"Session-ID": []string{msg.SessionID},
		},
	},
		jetstream.WithMsgID(msg.ID.String()),
		jetstream.WithExpectStream(s.config.Stream),
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Uint64("sequence", ack.Sequence).
		Msg("event relayed")
	return nil
}

// Connected reports whether the NATS connection is up
func (s *JetStreamSink) Connected() bool {
	return s.nc != nil && s.nc.IsConnected()
}

func (s *JetStreamSink) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}
