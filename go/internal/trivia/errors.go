package trivia

import "errors"

var (
	// ErrInvalidState is returned for player actions while no question is open.
	// The authority answers it with game.invalid to the sender only.
	ErrInvalidState       = errors.New("no active game")
	ErrUnknownUser        = errors.New("user not connected")
	ErrInvalidName        = errors.New("invalid user name")
	ErrAnswerOutOfRange   = errors.New("answer out of range")
	ErrQuestionClosed     = errors.New("question already closed")
	ErrQuestionOpen       = errors.New("question already open")
	ErrInvalidQuestion    = errors.New("invalid question")
	ErrNotDisplay         = errors.New("action reserved for the display")
	ErrGameAlreadyRunning = errors.New("game already running")
	ErrNoQuestions        = errors.New("no questions loaded")
)

// Rejected reports whether err should be answered with game.invalid
func Rejected(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrAnswerOutOfRange) ||
		errors.Is(err, ErrNotDisplay) ||
		errors.Is(err, ErrGameAlreadyRunning) ||
		errors.Is(err, ErrNoQuestions)
}
