package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/dbconfig"
	"github.com/mcdev12/trivia/go/internal/trivia/store"
)

// setupStore opens the results store. The returned func releases it.
func setupStore(ctx context.Context, cfg Config) (store.Store, func(), error) {
	if cfg.ResultsStore == storeMemory {
		log.Info().Msg("results kept in memory")
		return store.NewMemoryStore(), func() {}, nil
	}

	dbCfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}

	pg, err := store.OpenPostgres(ctx, dbCfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")

	return pg, func() {
		if err := pg.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}, nil
}
