package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/trivia/gateway"
	"github.com/mcdev12/trivia/go/internal/trivia/questions"
	"github.com/mcdev12/trivia/go/internal/trivia/relay"
	"github.com/mcdev12/trivia/go/internal/trivia/room"
)

// RelayLink reports whether the event relay can reach its bus
type RelayLink interface {
	Connected() bool
}

type Services struct {
	Gateway *gateway.Service
	Relay   *relay.Relay // nil when NATS_URL is unset
	Link    RelayLink    // nil when NATS_URL is unset

	closers []func()
}

// Close releases the store and the NATS connection
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupServices(ctx context.Context, cfg Config) (*Services, error) {
	// Wire up: question bank, results store, relay → room → gateway
	bank, err := questions.LoadFile(cfg.QuestionsFile)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("file", cfg.QuestionsFile).
		Int("questions", bank.Len()).
		Msg("question bank loaded")

	services := &Services{}
	clock := clockwork.NewRealClock()

	results, closeStore, err := setupStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.closers = append(services.closers, closeStore)

	roomCfg := room.Config{
		Rules:        cfg.rules(),
		Intermission: cfg.Intermission,
		Bank:         bank,
		Clock:        clock,
		Store:        results,
	}

	if cfg.NatsURL != "" {
		jsCfg := relay.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NatsURL

		sink, err := relay.NewJetStreamSink(ctx, jsCfg)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to set up event relay: %w", err)
		}
		services.closers = append(services.closers, func() {
			if err := sink.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close relay sink")
			}
		})

		services.Relay = relay.New(sink, 1024, clock)
		services.Link = sink
		roomCfg.Relay = services.Relay
		log.Info().Str("nats_url", cfg.NatsURL).Str("stream", jsCfg.Stream).Msg("event relay enabled")
	}

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.Room = roomCfg
	services.Gateway = gateway.NewService(ctx, gatewayCfg)

	return services, nil
}
