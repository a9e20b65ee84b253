package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/trivia/go/internal/trivia/events"
)

// ErrInvalidLimit is returned when a listing limit is not positive
var ErrInvalidLimit = errors.New("limit must be positive")

// QuestionRecord is the archived outcome of a closed question
type QuestionRecord struct {
	ID            uuid.UUID
	SessionID     string
	QuestionID    string
	Text          string
	Photo         string
	CorrectAnswer int
	AnsweredCount int
	CorrectCount  int
	ClosedAt      time.Time
}

// ScoreRecord is a player's final score in a finished game
type ScoreRecord struct {
	SessionID  string
	Name       string
	Score      int
	Rank       int
	FinishedAt time.Time
}

// Store archives game results
type Store interface {
	SaveQuestionResult(ctx context.Context, rec QuestionRecord) error
	SaveFinalScores(ctx context.Context, sessionID string, standings []events.Standing, finishedAt time.Time) error
	RecentResults(ctx context.Context, limit int) ([]QuestionRecord, error)
	FinalScores(ctx context.Context, sessionID string) ([]ScoreRecord, error)
}

// ranked converts standings (best first) into score records. Equal scores
// share a rank and the next score skips past them: 1, 1, 3.
func ranked(sessionID string, standings []events.Standing, finishedAt time.Time) []ScoreRecord {
	out := make([]ScoreRecord, len(standings))
	for i, s := range standings {
		rank := i + 1
		if i > 0 && s.Score == standings[i-1].Score {
			rank = out[i-1].Rank
		}
		out[i] = ScoreRecord{
			SessionID:  sessionID,
			Name:       s.Name,
			Score:      s.Score,
			Rank:       rank,
			FinishedAt: finishedAt,
		}
	}
	return out
}

// MemoryStore keeps results in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	questions []QuestionRecord
	scores    map[string][]ScoreRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string][]ScoreRecord)}
}

func (m *MemoryStore) SaveQuestionResult(ctx context.Context, rec QuestionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, rec)
	return nil
}

func (m *MemoryStore) SaveFinalScores(ctx context.Context, sessionID string, standings []events.Standing, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[sessionID] = ranked(sessionID, standings, finishedAt)
	return nil
}

func (m *MemoryStore) RecentResults(ctx context.Context, limit int) ([]QuestionRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	m.mu.RLock()
	out := append([]QuestionRecord(nil), m.questions...)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ClosedAt.After(out[j].ClosedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) FinalScores(ctx context.Context, sessionID string) ([]ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ScoreRecord(nil), m.scores[sessionID]...), nil
}
