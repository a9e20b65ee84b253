package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcdev12/trivia/go/internal/trivia"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)

// Config is the server configuration, read from the environment
type Config struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	QuestionsFile    string        `env:"QUESTIONS_FILE"     envDefault:"questions.yaml"`
	QuestionTimeSec  int           `env:"QUESTION_TIME_SEC"  envDefault:"20"`
	PointsPerCorrect int           `env:"POINTS_PER_CORRECT" envDefault:"10"`
	SpeedBonus       int           `env:"SPEED_BONUS"        envDefault:"1"`
	Intermission     time.Duration `env:"INTERMISSION"       envDefault:"5s"`

	// NATS_URL empty disables the event relay
	NatsURL      string `env:"NATS_URL"`
	ResultsStore string `env:"RESULTS_STORE" envDefault:"memory"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	switch cfg.ResultsStore {
	case storeMemory, storePostgres:
	default:
		return Config{}, fmt.Errorf("RESULTS_STORE must be %q or %q, got %q", storeMemory, storePostgres, cfg.ResultsStore)
	}
	if cfg.QuestionTimeSec <= 0 {
		return Config{}, fmt.Errorf("QUESTION_TIME_SEC must be positive, got %d", cfg.QuestionTimeSec)
	}
	if cfg.PointsPerCorrect < 0 || cfg.SpeedBonus < 0 {
		return Config{}, fmt.Errorf("scoring must not be negative")
	}
	return cfg, nil
}

func (c Config) rules() trivia.Rules {
	return trivia.Rules{
		QuestionTimeSec:  c.QuestionTimeSec,
		PointsPerCorrect: c.PointsPerCorrect,
		SpeedBonus:       c.SpeedBonus,
	}
}
