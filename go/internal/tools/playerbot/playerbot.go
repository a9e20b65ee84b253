package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/clients/trivia_client"
	"github.com/mcdev12/trivia/go/internal/trivia/gateway"
)

// playerbot joins a running trivia session with N players that answer at random
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	server := flag.String("server", getEnv("TRIVIA_URL", "http://localhost:8080"), "trivia server base URL")
	count := flag.Int("bots", 5, "number of players")
	prefix := flag.String("prefix", "bot", "player name prefix")
	minDelay := flag.Duration("min-delay", time.Second, "shortest time before answering")
	maxDelay := flag.Duration("max-delay", 8*time.Second, "longest time before answering")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	seed := uint64(time.Now().UnixNano())

	var wg sync.WaitGroup
	for i := 1; i <= *count; i++ {
		name := fmt.Sprintf("%s-%d", *prefix, i)

		c, err := trivia_client.Dial(ctx, *server, gateway.RolePlayer)
		if err != nil {
			log.Fatal().Err(err).Str("bot", name).Msg("failed to connect")
		}

		b := newBot(name, c, clock, seed+uint64(i), *minDelay, *maxDelay)
		c.Chain().Push(b.commander())

		wg.Add(1)
		go func() {
			defer wg.Done()
			runBot(ctx, c, b)
		}()

		if err := c.Join(name); err != nil {
			log.Error().Err(err).Str("bot", name).Msg("failed to join")
		}
	}

	log.Info().Int("bots", *count).Str("server", *server).Msg("bots joined")
	wg.Wait()
	log.Info().Msg("all bots finished")
}

func runBot(ctx context.Context, c *trivia_client.Client, b *bot) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("bot", b.name).Msg("connection lost")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
