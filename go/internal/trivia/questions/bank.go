package questions

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/trivia/go/internal/trivia"
)

// ErrEmptyBank is returned when a question file holds no questions
var ErrEmptyBank = errors.New("question bank is empty")

type fileQuestion struct {
	ID      string   `yaml:"id"`
	Text    string   `yaml:"text"`
	Answers []string `yaml:"answers"`
	Correct int      `yaml:"correct"`
	Photo   string   `yaml:"photo"`
	Time    int      `yaml:"time"`
}

type file struct {
	Questions []fileQuestion `yaml:"questions"`
}

// Bank is an ordered list of playable questions
type Bank struct {
	questions []trivia.Question
}

// LoadFile reads a YAML question bank from disk
func LoadFile(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question bank: %w", err)
	}
	defer f.Close()

	bank, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return bank, nil
}

// Parse decodes and validates a YAML question bank
func Parse(r io.Reader) (*Bank, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyBank
		}
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if len(doc.Questions) == 0 {
		return nil, ErrEmptyBank
	}

	b := &Bank{questions: make([]trivia.Question, 0, len(doc.Questions))}
	for i, fq := range doc.Questions {
		q := trivia.Question{
			ID:      fq.ID,
			Text:    fq.Text,
			Answers: fq.Answers,
			Correct: fq.Correct,
			Photo:   fq.Photo,
			TimeSec: fq.Time,
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		b.questions = append(b.questions, q)
	}
	return b, nil
}

// New builds a bank from questions already in memory
func New(qs ...trivia.Question) (*Bank, error) {
	if len(qs) == 0 {
		return nil, ErrEmptyBank
	}
	for i, q := range qs {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return &Bank{questions: append([]trivia.Question(nil), qs...)}, nil
}

// Len returns the number of questions
func (b *Bank) Len() int { return len(b.questions) }

// At returns the question at index i
func (b *Bank) At(i int) (trivia.Question, bool) {
	if i < 0 || i >= len(b.questions) {
		return trivia.Question{}, false
	}
	return b.questions[i], true
}
