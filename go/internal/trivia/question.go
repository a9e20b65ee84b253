package trivia

import (
	"fmt"

	"github.com/mcdev12/trivia/go/internal/trivia/events"
)

// Question is a multiple choice question with its answer key
type Question struct {
	ID      string
	Text    string
	Answers []string
	Correct int
	Photo   string
	TimeSec int // 0 means use the session default
}

// Validate checks that the question can be played
func (q Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidQuestion)
	}
	if len(q.Answers) < 2 {
		return fmt.Errorf("%w: %q needs at least two answers", ErrInvalidQuestion, q.Text)
	}
	if q.Correct < 0 || q.Correct >= len(q.Answers) {
		return fmt.Errorf("%w: %q correct answer %d out of range", ErrInvalidQuestion, q.Text, q.Correct)
	}
	if q.TimeSec < 0 {
		return fmt.Errorf("%w: %q negative time", ErrInvalidQuestion, q.Text)
	}
	return nil
}

// public returns the payload broadcast when the question opens
func (q Question) public(seconds int) events.QuestionPayload {
	answers := make([]string, len(q.Answers))
	copy(answers, q.Answers)
	return events.QuestionPayload{
		ID:      q.ID,
		Text:    q.Text,
		Answers: answers,
		Photo:   q.Photo,
		Time:    seconds,
	}
}
