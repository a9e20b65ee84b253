package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/sqlutil"
	"github.com/mcdev12/trivia/go/internal/trivia/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS question_results (
	id              UUID PRIMARY KEY,
	session_id      TEXT        NOT NULL,
	question_id     TEXT        NOT NULL,
	text            TEXT        NOT NULL,
	photo           TEXT,
	correct_answer  INTEGER     NOT NULL,
	answered_count  INTEGER     NOT NULL,
	correct_count   INTEGER     NOT NULL,
	closed_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS question_results_closed_at_idx ON question_results (closed_at DESC);

CREATE TABLE IF NOT EXISTS final_scores (
	session_id  TEXT        NOT NULL,
	name        TEXT        NOT NULL,
	score       INTEGER     NOT NULL,
	rank        INTEGER     NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, name)
);
`

// PostgresStore archives results in Postgres
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with lib/pq and verifies the connection
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an open database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the result tables if they do not exist
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate result tables: %w", err)
	}
	log.Info().Msg("result tables ready")
	return nil
}

// Ping checks the connection
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the underlying database
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) SaveQuestionResult(ctx context.Context, rec QuestionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO question_results (
			id, session_id, question_id, text, photo,
			correct_answer, answered_count, correct_count, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.SessionID, rec.QuestionID, rec.Text, sqlutil.ToSqlString(rec.Photo),
		rec.CorrectAnswer, rec.AnsweredCount, rec.CorrectCount, rec.ClosedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert question result: %w", err)
	}
	return nil
}

func (p *PostgresStore) SaveFinalScores(ctx context.Context, sessionID string, standings []events.Standing, finishedAt time.Time) error {
	records := ranked(sessionID, standings, finishedAt)
	return sqlutil.Run(ctx, p.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM final_scores WHERE session_id = $1`, sessionID); err != nil {
			return fmt.Errorf("failed to clear final scores: %w", err)
		}
		for _, r := range records {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO final_scores (session_id, name, score, rank, finished_at)
				VALUES ($1, $2, $3, $4, $5)`,
				r.SessionID, r.Name, r.Score, r.Rank, r.FinishedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert final score for %s: %w", r.Name, err)
			}
		}
		return nil
	})
}

func (p *PostgresStore) RecentResults(ctx context.Context, limit int) ([]QuestionRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, session_id, question_id, text, photo,
		       correct_answer, answered_count, correct_count, closed_at
		FROM question_results
		ORDER BY closed_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query question results: %w", err)
	}
	defer rows.Close()

	var out []QuestionRecord
	for rows.Next() {
		var (
			rec   QuestionRecord
			photo sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.QuestionID, &rec.Text, &photo,
			&rec.CorrectAnswer, &rec.AnsweredCount, &rec.CorrectCount, &rec.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question result: %w", err)
		}
		rec.Photo = sqlutil.FromSqlString(photo)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question results: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) FinalScores(ctx context.Context, sessionID string) ([]ScoreRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT session_id, name, score, rank, finished_at
		FROM final_scores
		WHERE session_id = $1
		ORDER BY rank, name`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query final scores: %w", err)
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		var r ScoreRecord
		if err := rows.Scan(&r.SessionID, &r.Name, &r.Score, &r.Rank, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan final score: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate final scores: %w", err)
	}
	return out, nil
}
