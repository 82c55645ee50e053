package cli

import (
	"testing"

	"adaptive-quiz-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestions(t *testing.T) {
	raw := `
questions:
  - id: q1
    question: "What is 2 + 2?"
    options: ["3", "4", "5", "22"]
    correctAnswer: 1
    subject: Mathematics
    difficulty: easy
  - question: "Retired question"
    options: ["a", "b", "c", "d"]
    correctAnswer: 0
    subject: History
    difficulty: hard
    isActive: false
`
	qs, err := parseQuestions([]byte(raw))
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "q1", qs[0].ID)
	assert.True(t, qs[0].IsActive)
	assert.Equal(t, domain.DifficultyEasy, qs[0].Difficulty)
	assert.NotEmpty(t, qs[1].ID)
	assert.False(t, qs[1].IsActive)
}

func TestParseQuestionsValidates(t *testing.T) {
	raw := `
questions:
  - id: q1
    question: "Too few options"
    options: ["a", "b"]
    correctAnswer: 1
    subject: Mathematics
    difficulty: easy
`
	_, err := parseQuestions([]byte(raw))
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestSampleQuestionsAreValid(t *testing.T) {
	for _, q := range sampleQuestions() {
		assert.NoError(t, q.Validate(), q.ID)
	}
}
