package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion() Question {
	return Question{
		ID:           "q1",
		Text:         "What is 2 + 2?",
		Options:      []string{"3", "4", "5", "6"},
		CorrectIndex: 1,
		Subject:      "Mathematics",
		Difficulty:   DifficultyEasy,
		IsActive:     true,
	}
}

func TestQuestionValidate(t *testing.T) {
	require.NoError(t, validQuestion().Validate())

	cases := map[string]func(q *Question){
		"empty text":        func(q *Question) { q.Text = "  " },
		"three options":     func(q *Question) { q.Options = q.Options[:3] },
		"blank option":      func(q *Question) { q.Options[2] = "" },
		"index too large":   func(q *Question) { q.CorrectIndex = 4 },
		"negative index":    func(q *Question) { q.CorrectIndex = -1 },
		"missing subject":   func(q *Question) { q.Subject = "" },
		"unknown difficuty": func(q *Question) { q.Difficulty = "expert" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			q := validQuestion()
			q.Options = append([]string(nil), q.Options...)
			mutate(&q)
			err := q.Validate()
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestApplyUsageRunningAverages(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	q := validQuestion()

	q.ApplyUsage(true, 30, now)
	assert.Equal(t, 1, q.UsageCount)
	assert.Equal(t, 100, q.CorrectRate)
	assert.Equal(t, 30, q.AverageTime)
	assert.Equal(t, now, q.LastUsed)

	q.ApplyUsage(false, 10, now)
	assert.Equal(t, 2, q.UsageCount)
	assert.Equal(t, 50, q.CorrectRate)
	assert.Equal(t, 20, q.AverageTime)

	q.ApplyUsage(false, 20, now)
	assert.Equal(t, 33, q.CorrectRate)
	assert.Equal(t, 20, q.AverageTime)
}

func TestViewHidesAnswerKey(t *testing.T) {
	q := validQuestion()
	view := q.View()
	assert.Equal(t, q.Options, view.Options)
	view.Options[0] = "changed"
	assert.Equal(t, "3", q.Options[0], "view must not alias the question options")
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := QuizSession{UsedQuestionIDs: []string{"a"}, Answers: []AnswerRecord{{QuestionID: "a"}}}
	c := s.Clone()
	c.UsedQuestionIDs[0] = "b"
	c.Answers[0].QuestionID = "b"
	assert.Equal(t, "a", s.UsedQuestionIDs[0])
	assert.Equal(t, "a", s.Answers[0].QuestionID)
	assert.Equal(t, "b", c.CurrentQuestionID())
	assert.True(t, c.Answered("b"))
	assert.False(t, s.Answered("b"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("lookup: %w", ErrSessionNotFound)))
	assert.Equal(t, KindNotFound, KindOf(ErrQuestionNotFound))
	assert.Equal(t, KindNoQuestions, KindOf(ErrNoQuestionsAvailable))
	assert.Equal(t, KindValidation, KindOf(Invalid("selectedAnswer", "must be between 0 and 3")))
	assert.Equal(t, KindValidation, KindOf(ErrQuestionAlreadyAnswered))
	assert.Equal(t, KindStore, KindOf(StoreFailure("fetch", errors.New("connection refused"))))
	assert.Equal(t, KindUnauthorized, KindOf(ErrInvalidToken))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	// StoreFailure keeps kinds that already mean something to the caller.
	assert.Equal(t, KindNotFound, KindOf(StoreFailure("find", ErrQuestionNotFound)))
}
