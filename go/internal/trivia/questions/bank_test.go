package questions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/trivia/go/internal/trivia"
)

const sampleBank = `
questions:
  - id: mars
    text: Which planet is known as the red planet?
    answers: [Venus, Mars, Jupiter]
    correct: 1
    time: 15
  - text: What is 2 + 2?
    answers: ["3", "4"]
    correct: 1
    photo: https://example.com/math.png
`

func TestParse(t *testing.T) {
	bank, err := Parse(strings.NewReader(sampleBank))
	require.NoError(t, err)
	require.Equal(t, 2, bank.Len())

	first, ok := bank.At(0)
	require.True(t, ok)
	assert.Equal(t, "mars", first.ID)
	assert.Equal(t, 15, first.TimeSec)
	assert.Equal(t, 1, first.Correct)

	second, ok := bank.At(1)
	require.True(t, ok)
	assert.NotEmpty(t, second.ID, "missing ids are generated")
	assert.Equal(t, "https://example.com/math.png", second.Photo)

	_, ok = bank.At(2)
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{name: "empty document", doc: "", wantErr: ErrEmptyBank},
		{name: "no questions", doc: "questions: []", wantErr: ErrEmptyBank},
		{
			name:    "correct out of range",
			doc:     "questions:\n  - text: q\n    answers: [a, b]\n    correct: 2\n",
			wantErr: trivia.ErrInvalidQuestion,
		},
		{
			name:    "single answer",
			doc:     "questions:\n  - text: q\n    answers: [a]\n",
			wantErr: trivia.ErrInvalidQuestion,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.doc))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleBank), 0o600))

	bank, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bank.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrEmptyBank)

	bank, err := New(trivia.Question{Text: "q", Answers: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, bank.Len())
}
